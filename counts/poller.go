// Package counts keeps the badge counters shown next to the checklist and
// approval tabs up to date by polling the backend.
package counts

import (
	"context"
	"sync"
	"time"

	"github.com/cagkantasci/smartop/apiclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const DefaultInterval = 30 * time.Second

// Counts are ephemeral badge values, recomputed on every poll.
type Counts struct {
	PendingChecklists int       `json:"pendingChecklists"`
	PendingApprovals  int       `json:"pendingApprovals"`
	UpdatedAt         time.Time `json:"-"`
}

// API is the slice of the backend the poller reads.
type API interface {
	ActiveMachines(ctx context.Context) ([]apiclient.Machine, error)
	PendingSubmissions(ctx context.Context) ([]apiclient.Submission, error)
}

type Listener func(Counts)

// Poller fetches both counts on Start and then on every interval tick.
type Poller struct {
	api      API
	interval time.Duration
	log      zerolog.Logger

	lock      sync.Mutex
	counts    Counts
	listeners map[int]Listener
	nextID    int

	fetchLock sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

type PollerOption func(*Poller)

func WithPollerLogger(l zerolog.Logger) PollerOption {
	return func(p *Poller) {
		p.log = l
	}
}

// NewPoller returns a stopped poller. A non-positive interval selects
// DefaultInterval.
func NewPoller(api API, interval time.Duration, options ...PollerOption) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	p := &Poller{
		api:       api,
		interval:  interval,
		log:       log.Logger.With().Str("component", "counts").Logger(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Start fetches immediately and then every interval until ctx is done or
// Stop is called. Starting a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.lock.Lock()
	if p.cancel != nil {
		p.lock.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.lock.Unlock()

	go p.run(ctx, done)
}

// Stop cancels the loop and waits for an in-flight fetch to finish.
func (p *Poller) Stop() {
	p.lock.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.lock.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.Refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

// Refresh runs one fetch of both counts. A read that fails keeps its previous
// value. Overlapping calls are serialised.
func (p *Poller) Refresh(ctx context.Context) Counts {
	p.fetchLock.Lock()
	defer p.fetchLock.Unlock()

	if ctx.Err() != nil {
		return p.Counts()
	}

	var (
		machines    []apiclient.Machine
		submissions []apiclient.Submission
		machinesErr error
		subsErr     error
	)

	var g errgroup.Group
	g.Go(func() error {
		machines, machinesErr = p.api.ActiveMachines(ctx)
		return errors.Wrap(machinesErr, "active machines")
	})
	g.Go(func() error {
		submissions, subsErr = p.api.PendingSubmissions(ctx)
		return errors.Wrap(subsErr, "pending submissions")
	})
	if err := g.Wait(); err != nil {
		p.log.Warn().Err(err).Msg("badge count fetch failed, keeping previous counts")
	}

	p.lock.Lock()
	next := p.counts
	if machinesErr == nil {
		next.PendingChecklists = len(machines)
	}
	if subsErr == nil {
		next.PendingApprovals = countPending(submissions)
	}
	if machinesErr == nil || subsErr == nil {
		next.UpdatedAt = time.Now()
	}
	changed := next.PendingChecklists != p.counts.PendingChecklists || next.PendingApprovals != p.counts.PendingApprovals
	p.counts = next
	listeners := p.snapshotListeners()
	p.lock.Unlock()

	if changed {
		for _, l := range listeners {
			l(next)
		}
	}
	return next
}

// Counts returns the latest values.
func (p *Poller) Counts() Counts {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.counts
}

// Subscribe registers l for count changes and returns its disposer.
func (p *Poller) Subscribe(l Listener) (dispose func()) {
	p.lock.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = l
	p.lock.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.lock.Lock()
			delete(p.listeners, id)
			p.lock.Unlock()
		})
	}
}

// must hold p.lock
func (p *Poller) snapshotListeners() []Listener {
	out := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		out = append(out, l)
	}
	return out
}

func countPending(submissions []apiclient.Submission) int {
	n := 0
	for _, s := range submissions {
		if s.Pending() {
			n++
		}
	}
	return n
}
