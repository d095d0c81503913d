// Package live pushes reaction updates to connected browsers over
// websockets.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/MilekOfficial/SwapSnap/gallery"
)

// Event types.
const (
	EventConnected       = "connected"
	EventViewing         = "viewing"
	EventReactionUpdated = "reaction.updated"
)

// An Event is a message sent to clients.
type Event struct {
	Type      string                    `json:"type"`
	PhotoID   string                    `json:"photo_id,omitempty"`
	Reactions []gallery.Reaction        `json:"reactions,omitempty"`
	Summary   []gallery.ReactionSummary `json:"summary,omitempty"`
	Timestamp time.Time                 `json:"timestamp"`
}

type viewing struct {
	client  *Client
	photoID string
}

// Hub tracks connected clients and fans events out to them. All client
// bookkeeping happens on the goroutine running Run.
type Hub struct {
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	viewing    chan viewing
	done       chan struct{}

	mu       sync.Mutex
	stopping bool
	conns    sync.WaitGroup
}

// NewHub returns a hub. Nothing is delivered until Run is called.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		viewing:    make(chan viewing),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and events until ctx is done, then closes
// every client and waits for their connections to end.
func (h *Hub) Run(ctx context.Context) error {
	defer func() {
		h.mu.Lock()
		h.stopping = true
		h.mu.Unlock()
		close(h.done)
		h.conns.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return nil

		case c := <-h.register:
			h.clients[c] = true
			h.deliver(c, mustMarshal(h.logger, Event{Type: EventConnected, Timestamp: time.Now()}))
			h.logger.Debug("Live client connected", "clients", len(h.clients))

		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
			}

		case v := <-h.viewing:
			if !h.clients[v.client] {
				continue
			}
			v.client.viewing = v.photoID
			h.deliver(v.client, mustMarshal(h.logger, Event{Type: EventViewing, PhotoID: v.photoID, Timestamp: time.Now()}))

		case ev := <-h.broadcast:
			data := mustMarshal(h.logger, ev)
			for c := range h.clients {
				if c.viewing != "" && c.viewing != ev.PhotoID {
					continue
				}
				h.deliver(c, data)
			}
		}
	}
}

// track counts a new connection unless the hub is stopping.
func (h *Hub) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopping {
		return false
	}
	h.conns.Add(1)
	return true
}

// Publish queues ev for delivery. Events are dropped when the queue is
// full or the hub has stopped.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- ev:
	case <-h.done:
	default:
		h.logger.Warn("Live event dropped", "type", ev.Type, "photo_id", ev.PhotoID)
	}
}

// PublishReactions announces the current reaction set of photoID.
func (h *Hub) PublishReactions(photoID string, reactions []gallery.Reaction) {
	h.Publish(Event{
		Type:      EventReactionUpdated,
		PhotoID:   photoID,
		Reactions: reactions,
		Summary:   gallery.Summarize(reactions),
	})
}

// deliver hands data to c, dropping clients that cannot keep up.
func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("Live client too slow, disconnecting")
		h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
}

func mustMarshal(logger *slog.Logger, v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("Could not encode live event", "error", err.Error())
		return []byte("{}")
	}
	return b
}
