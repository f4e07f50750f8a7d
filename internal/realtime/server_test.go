package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clarity-canvas/internal/model"

	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T) (*Server, string) {
	t.Helper()
	srv := NewServer(nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Hub().Shutdown()
		ts.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func runConn(t *testing.T, ctx context.Context, c *Conn) <-chan Event {
	t.Helper()
	out := make(chan Event, 16)
	go func() { _ = c.Run(ctx, func(ev Event) { out <- ev }) }()
	return out
}

func TestRelay_BroadcastsIncludingSender(t *testing.T) {
	srv, url := startRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := Dial(ctx, url, nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := Dial(ctx, url, nil)
	require.NoError(t, err)
	defer b.Close()

	aIn := runConn(t, ctx, a)
	bIn := runConn(t, ctx, b)
	require.Eventually(t, func() bool { return srv.Hub().Subscribers() == 2 }, 2*time.Second, 5*time.Millisecond)

	ev := NewEvent("dev-a", TaskPosition, "task-1", time.Now())
	ev.Position = &model.Point{X: 10, Y: 20}
	require.NoError(t, a.Publish(ev))

	echo := recv(t, aIn)
	require.Equal(t, ev.ID, echo.ID)
	require.Equal(t, "dev-a", echo.ReplicaID)

	remote := recv(t, bIn)
	require.Equal(t, ev.ID, remote.ID)
	require.Equal(t, model.Point{X: 10, Y: 20}, *remote.Position)
}

func TestRelay_PublishRejectsInvalidEvent(t *testing.T) {
	_, url := startRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, url, nil)
	require.NoError(t, err)
	defer c.Close()

	ev := NewEvent("dev-a", TaskPosition, "task-1", time.Now())
	require.ErrorIs(t, c.Publish(ev), ErrInvalidEvent)
}

func TestRelay_RunStopsOnContextCancel(t *testing.T) {
	_, url := startRelay(t)
	ctx, cancel := context.WithCancel(context.Background())

	c, err := Dial(ctx, url, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, func(Event) {}) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestRelay_Healthz(t *testing.T) {
	srv := NewServer(nil, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
