package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func TestHub_FanOutAndFilter(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	all, err := hub.Subscribe(ctx, nil)
	require.NoError(t, err)
	groupsOnly, err := hub.Subscribe(ctx, func(ev Event) bool { return ev.Type == GroupBounds })
	require.NoError(t, err)

	require.NoError(t, hub.Publish(NewEvent("r", TaskPosition, "t1", time.Now())))
	require.NoError(t, hub.Publish(NewEvent("r", GroupBounds, "g1", time.Now())))

	require.Equal(t, "t1", recv(t, all).EntityID)
	require.Equal(t, "g1", recv(t, all).EntityID)
	require.Equal(t, "g1", recv(t, groupsOnly).EntityID)
}

func TestHub_UnsubscribeOnContextCancel(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := hub.Subscribe(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, hub.Subscribers())

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
	_, ok := <-ch
	require.False(t, ok)
}

func TestHub_ShutdownClosesSubscribers(t *testing.T) {
	hub := NewHub()
	ch, err := hub.Subscribe(context.Background(), nil)
	require.NoError(t, err)

	hub.Shutdown()
	_, ok := <-ch
	require.False(t, ok)
	require.ErrorIs(t, hub.Publish(NewEvent("r", TaskPosition, "t", time.Now())), ErrClosed)
	_, err = hub.Subscribe(context.Background(), nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestHub_FullBufferDrops(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()
	_, err := hub.Subscribe(context.Background(), nil)
	require.NoError(t, err)

	for i := 0; i < defaultSubscriberBuffer+5; i++ {
		require.NoError(t, hub.Publish(NewEvent("r", TaskPosition, "t", time.Now())))
	}
	require.Equal(t, int64(5), hub.Dropped())
}
