package push_test

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/cagkantasci/smartop/push"
	"github.com/stretchr/testify/require"
)

func TestHub_SubscribeAndDispose(t *testing.T) {
	hub := push.NewHub()

	var first, second []string
	unsubFirst := hub.Subscribe(func(n push.Notification) { first = append(first, n.ID) })
	unsubSecond := hub.Subscribe(func(n push.Notification) { second = append(second, n.ID) })
	defer unsubSecond()

	hub.Deliver(push.Notification{ID: "n1", Title: "Checklist pending"})
	unsubFirst()
	unsubFirst()
	hub.Deliver(push.Notification{ID: "n2"})

	require.Equal(t, []string{"n1"}, first)
	require.Equal(t, []string{"n1", "n2"}, second)
}

func TestHub_Responses(t *testing.T) {
	hub := push.NewHub()

	var got []push.Response
	unsub := hub.SubscribeResponses(func(r push.Response) { got = append(got, r) })
	hub.Respond(push.Response{Notification: push.Notification{ID: "n1"}, ActionID: "open"})
	unsub()
	hub.Respond(push.Response{Notification: push.Notification{ID: "n2"}})

	require.Len(t, got, 1)
	require.Equal(t, "open", got[0].ActionID)
}

func TestHub_DeliverStampsReceivedAt(t *testing.T) {
	hub := push.NewHub()
	var got push.Notification
	hub.Subscribe(func(n push.Notification) { got = n })
	hub.Deliver(push.Notification{ID: "n1"})
	require.False(t, got.ReceivedAt.IsZero())
}

func TestHub_BackgroundTasks(t *testing.T) {
	ctx := context.Background()
	hub := push.NewHub()

	var ran []string
	require.NoError(t, hub.RegisterBackgroundTask("badge-refresh", func(_ context.Context, n push.Notification) error {
		ran = append(ran, n.ID)
		return nil
	}))
	require.Error(t, hub.RegisterBackgroundTask("badge-refresh", func(context.Context, push.Notification) error { return nil }))
	require.ErrorIs(t, hub.RegisterBackgroundTask("", nil), apperrors.ErrInvalidInput)

	require.NoError(t, hub.RunBackgroundTask(ctx, "badge-refresh", push.Notification{ID: "n1"}))
	require.Equal(t, []string{"n1"}, ran)

	require.ErrorIs(t, hub.RunBackgroundTask(ctx, "missing", push.Notification{}), apperrors.ErrNotFound)

	boom := errors.New("boom")
	require.NoError(t, hub.RegisterBackgroundTask("failing", func(context.Context, push.Notification) error { return boom }))
	require.ErrorIs(t, hub.RunBackgroundTask(ctx, "failing", push.Notification{}), boom)
}
