package push

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Notification is a push message received by the device.
type Notification struct {
	ID         string
	Title      string
	Body       string
	Data       map[string]any
	ReceivedAt time.Time
}

// Response is the user's interaction with a delivered notification.
type Response struct {
	Notification Notification
	ActionID     string
}

type (
	Handler         func(Notification)
	ResponseHandler func(Response)
	TaskHandler     func(ctx context.Context, n Notification) error
)

// Hub fans notifications out to subscribers and runs the background tasks
// registered at bootstrap. It is constructed once and injected where needed.
type Hub struct {
	lock       sync.RWMutex
	next       int
	listeners  map[int]Handler
	responders map[int]ResponseHandler
	tasks      map[string]TaskHandler
	log        zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		listeners:  make(map[int]Handler),
		responders: make(map[int]ResponseHandler),
		tasks:      make(map[string]TaskHandler),
		log:        log.Logger.With().Str("component", "push_hub").Logger(),
	}
}

// Subscribe registers h for received notifications. The returned func removes
// it and may be called more than once.
func (h *Hub) Subscribe(handler Handler) (unsubscribe func()) {
	h.lock.Lock()
	id := h.next
	h.next++
	h.listeners[id] = handler
	h.lock.Unlock()

	return h.disposer(func() { delete(h.listeners, id) })
}

// SubscribeResponses registers handler for notification taps and actions.
func (h *Hub) SubscribeResponses(handler ResponseHandler) (unsubscribe func()) {
	h.lock.Lock()
	id := h.next
	h.next++
	h.responders[id] = handler
	h.lock.Unlock()

	return h.disposer(func() { delete(h.responders, id) })
}

func (h *Hub) disposer(remove func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			h.lock.Lock()
			remove()
			h.lock.Unlock()
		})
	}
}

// Deliver hands n to every current subscriber.
func (h *Hub) Deliver(n Notification) {
	if n.ReceivedAt.IsZero() {
		n.ReceivedAt = time.Now()
	}

	h.lock.RLock()
	handlers := make([]Handler, 0, len(h.listeners))
	for _, l := range h.listeners {
		handlers = append(handlers, l)
	}
	h.lock.RUnlock()

	for _, handler := range handlers {
		handler(n)
	}
}

// Respond hands r to every current response subscriber.
func (h *Hub) Respond(r Response) {
	h.lock.RLock()
	handlers := make([]ResponseHandler, 0, len(h.responders))
	for _, l := range h.responders {
		handlers = append(handlers, l)
	}
	h.lock.RUnlock()

	for _, handler := range handlers {
		handler(r)
	}
}

// RegisterBackgroundTask installs the handler run for notifications received
// while the app is in the background. Call it once during bootstrap.
func (h *Hub) RegisterBackgroundTask(name string, handler TaskHandler) error {
	if name == "" || handler == nil {
		return errors.Wrap(apperrors.ErrInvalidInput, "background task needs a name and a handler")
	}

	h.lock.Lock()
	defer h.lock.Unlock()
	if _, exists := h.tasks[name]; exists {
		return errors.Errorf("background task %q already registered", name)
	}
	h.tasks[name] = handler
	h.log.Debug().Str("task", name).Msg("background task registered")
	return nil
}

// RunBackgroundTask executes a registered task for n.
func (h *Hub) RunBackgroundTask(ctx context.Context, name string, n Notification) error {
	h.lock.RLock()
	handler, ok := h.tasks[name]
	h.lock.RUnlock()

	if !ok {
		return errors.Wrapf(apperrors.ErrNotFound, "background task %q", name)
	}
	if err := handler(ctx, n); err != nil {
		h.log.Err(err).Str("task", name).Msg("background task failed")
		return err
	}
	return nil
}
