package progress

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narrative-lab/internal/domain"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHub_ReplaysLatestAndBroadcasts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	hub.BatchStarted(3)
	// Give the hub loop a moment to record the event before the client connects.
	require.Eventually(t, func() bool { return len(hub.broadcast) == 0 }, time.Second, 5*time.Millisecond)

	conn := dial(t, srv)

	first := readEvent(t, conn)
	assert.Equal(t, EventBatchStarted, first.Type)
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 1, hub.Clients())

	hub.SymbolDone(domain.SymbolResult{Symbol: "NVDA", Success: true, OutcomesCount: 2})
	ev := readEvent(t, conn)
	require.Equal(t, EventSymbol, ev.Type)
	require.NotNil(t, ev.Result)
	assert.Equal(t, "NVDA", ev.Result.Symbol)
	assert.Equal(t, 2, ev.Result.OutcomesCount)
	assert.False(t, ev.At.IsZero())

	hub.BatchFinished(domain.NewBatchSummary([]domain.SymbolResult{{Symbol: "NVDA", Success: true, OutcomesCount: 2}}, time.Now(), time.Now()))
	ev = readEvent(t, conn)
	require.Equal(t, EventBatchFinished, ev.Type)
	require.NotNil(t, ev.Summary)
	assert.Equal(t, 2, ev.Summary.TotalOutcomes)
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	hub.BatchStarted(1)
	require.Eventually(t, func() bool { return len(hub.broadcast) == 0 }, time.Second, 5*time.Millisecond)

	conn := dial(t, srv)
	readEvent(t, conn)
	require.Equal(t, 1, hub.Clients())

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishWithoutRunDoesNotBlock(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.SymbolDone(domain.SymbolResult{Symbol: "X"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with no hub loop running")
	}
}
