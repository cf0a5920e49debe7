// Package progress streams batch progress to websocket clients.
package progress

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"narrative-lab/internal/domain"
)

// Event types.
const (
	EventBatchStarted  = "batch_started"
	EventSymbol        = "symbol"
	EventBatchFinished = "batch_finished"
)

// Event is one message on the progress feed.
type Event struct {
	Type    string               `json:"type"`
	At      time.Time            `json:"at"`
	Total   int                  `json:"total,omitempty"`
	Result  *domain.SymbolResult `json:"result,omitempty"`
	Summary *domain.BatchSummary `json:"summary,omitempty"`
}

// Hub fans out progress events to connected websocket clients.
// Run must be started before clients connect.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan Event
	done       chan struct{}
	clients    map[*client]struct{}
	latest     *Event // replayed to new clients
	count      atomic.Int64
	logger     zerolog.Logger
	upgrader   websocket.Upgrader
	now        func() time.Time
}

// NewHub creates a hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Run is the hub loop. Returns when ctx is done, closing all clients.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			if h.latest != nil {
				c.send <- *h.latest
			}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case ev := <-h.broadcast:
			h.latest = &ev
			for c := range h.clients {
				select {
				case c.send <- ev:
				default:
					// Slow client, disconnect so the hub never blocks
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Store(int64(len(h.clients)))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Publish queues an event without blocking. Events are dropped when the queue is full.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = h.now()
	}
	select {
	case h.broadcast <- ev:
	default:
		h.logger.Warn().Str("type", ev.Type).Msg("progress queue full, dropping event")
	}
}

// BatchStarted publishes the start of a batch over total symbols.
func (h *Hub) BatchStarted(total int) {
	h.Publish(Event{Type: EventBatchStarted, Total: total})
}

// SymbolDone publishes a per-symbol result.
func (h *Hub) SymbolDone(r domain.SymbolResult) {
	h.Publish(Event{Type: EventSymbol, Result: &r})
}

// BatchFinished publishes the final summary.
func (h *Hub) BatchFinished(s *domain.BatchSummary) {
	h.Publish(Event{Type: EventBatchFinished, Summary: s})
}

// ServeHTTP upgrades the request to a websocket and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan Event, 64),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}
