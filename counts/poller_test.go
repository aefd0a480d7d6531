package counts_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cagkantasci/smartop/apiclient"
	"github.com/cagkantasci/smartop/counts"
	"github.com/cagkantasci/smartop/internal/config"
	"github.com/cagkantasci/smartop/securestore/storefake"
	"github.com/cagkantasci/smartop/token"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	lock        sync.Mutex
	machines    []apiclient.Machine
	submissions []apiclient.Submission
	machinesErr error
	subsErr     error
	fetches     atomic.Int32
}

func (a *fakeAPI) ActiveMachines(context.Context) ([]apiclient.Machine, error) {
	a.fetches.Add(1)
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.machines, a.machinesErr
}

func (a *fakeAPI) PendingSubmissions(context.Context) ([]apiclient.Submission, error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.submissions, a.subsErr
}

func (a *fakeAPI) fail(machinesErr, subsErr error) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.machinesErr, a.subsErr = machinesErr, subsErr
}

func TestRefresh_SameCountForEveryEnvelopeShape(t *testing.T) {
	shapes := map[string]string{
		"bare array":      `[{"id":"s1","status":"pending"},{"id":"s2"},{"id":"s3","status":"approved"}]`,
		"submissions key": `{"submissions":[{"id":"s1","status":"pending"},{"id":"s2"},{"id":"s3","status":"approved"}]}`,
		"data key":        `{"data":[{"id":"s1","status":"pending"},{"id":"s2"},{"id":"s3","status":"approved"}]}`,
		"nested data key": `{"data":{"submissions":[{"id":"s1","status":"pending"},{"id":"s2"},{"id":"s3","status":"approved"}]}}`,
	}

	for name, body := range shapes {
		t.Run(name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/api/v1/machines", func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "active", r.URL.Query().Get("status"))
				_, _ = w.Write([]byte(`{"machines":[{"id":"m1"},{"id":"m2"},{"id":"m3"}]}`))
			})
			mux.HandleFunc("/api/v1/checklists/submissions", func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			srv := httptest.NewServer(mux)
			t.Cleanup(srv.Close)

			client, err := apiclient.New(config.API{BaseURL: srv.URL + "/api/v1", RequestTimeout: 5 * time.Second}, token.NewStore(storefake.NewFakeStore()))
			require.NoError(t, err)

			got := counts.NewPoller(client, time.Minute).Refresh(context.Background())
			require.Equal(t, 2, got.PendingApprovals)
			require.Equal(t, 3, got.PendingChecklists)
		})
	}
}

func TestRefresh_FailedReadKeepsPreviousCount(t *testing.T) {
	api := &fakeAPI{
		machines:    []apiclient.Machine{{ID: "m1"}, {ID: "m2"}},
		submissions: []apiclient.Submission{{ID: "s1"}},
	}
	p := counts.NewPoller(api, time.Minute)
	ctx := context.Background()

	first := p.Refresh(ctx)
	require.Equal(t, 2, first.PendingChecklists)
	require.Equal(t, 1, first.PendingApprovals)

	api.fail(errors.New("503"), nil)
	api.lock.Lock()
	api.submissions = nil
	api.lock.Unlock()

	second := p.Refresh(ctx)
	require.Equal(t, 2, second.PendingChecklists)
	require.Equal(t, 0, second.PendingApprovals)

	api.fail(errors.New("503"), errors.New("timeout"))
	third := p.Refresh(ctx)
	require.Equal(t, second, third)
}

func TestSubscribe_NotifiesOnChangeUntilDisposed(t *testing.T) {
	api := &fakeAPI{machines: []apiclient.Machine{{ID: "m1"}}}
	p := counts.NewPoller(api, time.Minute)

	var seen []counts.Counts
	dispose := p.Subscribe(func(c counts.Counts) { seen = append(seen, c) })

	p.Refresh(context.Background())
	require.Len(t, seen, 1)
	require.Equal(t, 1, seen[0].PendingChecklists)

	dispose()
	dispose()
	api.lock.Lock()
	api.machines = nil
	api.lock.Unlock()
	p.Refresh(context.Background())
	require.Len(t, seen, 1)
}

func TestSubscribe_UnchangedCountsDoNotNotify(t *testing.T) {
	api := &fakeAPI{
		machines:    []apiclient.Machine{{ID: "m1"}},
		submissions: []apiclient.Submission{{ID: "s1", Status: apiclient.SubmissionPending}},
	}
	p := counts.NewPoller(api, time.Minute)

	var seen []counts.Counts
	p.Subscribe(func(c counts.Counts) { seen = append(seen, c) })

	first := p.Refresh(context.Background())
	second := p.Refresh(context.Background())
	require.Len(t, seen, 1)
	require.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}

func TestStartStop_NoFetchAfterStop(t *testing.T) {
	api := &fakeAPI{}
	p := counts.NewPoller(api, 5*time.Millisecond)

	p.Start(context.Background())
	p.Start(context.Background())
	require.Eventually(t, func() bool { return api.fetches.Load() >= 3 }, time.Second, time.Millisecond)

	p.Stop()
	stopped := api.fetches.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, stopped, api.fetches.Load())

	p.Stop()
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	api := &fakeAPI{}
	p := counts.NewPoller(api, 0)
	p.Start(context.Background())
	require.Eventually(t, func() bool { return api.fetches.Load() == 1 }, time.Second, time.Millisecond)
	p.Stop()
	require.Equal(t, int32(1), api.fetches.Load())
}
