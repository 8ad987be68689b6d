package sse

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// clientBuffer is the per-client event queue depth. A client that falls
// further behind than this starts losing events instead of blocking the
// broadcaster.
const clientBuffer = 256

// pingInterval is how often an idle stream gets a comment line so proxies
// keep the connection open.
const pingInterval = 25 * time.Second

// Client is one connected event-stream subscriber.
type Client struct {
	ID     string
	Events chan []byte
}

// Hub fans named events out to every connected server-sent-events client.
// It is also the http.Handler for the stream endpoint.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub returns an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: log, clients: make(map[string]*Client)}
}

// Register adds a client to the broadcast set.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.log.Debug("sse client connected", slog.String("client", c.ID))
}

// Unregister removes a client and closes its channel so a serving loop
// drains out. Unregistering an unknown client is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	close(c.Events)
	h.log.Debug("sse client disconnected", slog.String("client", c.ID))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast frames a named event with a JSON payload and queues it to every
// client. A client whose queue is full loses the event rather than slowing
// the rest of the system down.
func (h *Hub) Broadcast(event string, data []byte) {
	msg := fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event, data)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.Events <- msg:
		default:
			h.log.Warn("sse client lagging, event dropped",
				slog.String("client", c.ID),
				slog.String("event", event))
		}
	}
}

// ServeHTTP streams events to one client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := &Client{ID: uuid.NewString(), Events: make(chan []byte, clientBuffer)}
	h.Register(client)
	defer h.Unregister(client)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case msg, ok := <-client.Events:
			if !ok {
				return
			}
			w.Write(msg)
			// Drain queued events so a burst batches into one write.
		drain:
			for {
				select {
				case extra, ok := <-client.Events:
					if !ok {
						flusher.Flush()
						return
					}
					w.Write(extra)
				default:
					break drain
				}
			}
			flusher.Flush()
		case <-ping.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
