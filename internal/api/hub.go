package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/dharsanguruparan/InstallTracker/internal/model"
)

const (
	subscriberBuffer = 32
	writeTimeout     = 5 * time.Second
)

// Hub fans change events out to websocket clients. A client that falls
// behind by more than subscriberBuffer events is disconnected and is
// expected to reload.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]chan model.ChangeEvent
	logger *slog.Logger
}

// NewHub constructs an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]chan model.ChangeEvent),
		logger: logger.With("component", "hub"),
	}
}

// Publish implements tracker.Notifier.
func (h *Hub) Publish(ev model.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("dropping slow subscriber", "subscriber", id)
			close(ch)
			delete(h.subs, id)
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) subscribe() (string, <-chan model.ChangeEvent) {
	id := uuid.NewString()
	ch := make(chan model.ChangeEvent, subscriberBuffer)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *Hub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
}

// ServeHTTP upgrades the request and streams events as JSON messages.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	id, events := h.subscribe()
	defer h.unsubscribe(id)
	h.logger.Debug("subscriber connected", "subscriber", id)

	// Clients never send; CloseRead handles pings and notices disconnects.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusPolicyViolation, "subscriber too slow")
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				h.logger.Debug("subscriber write failed", "subscriber", id, "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev model.ChangeEvent) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
