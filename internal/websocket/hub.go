package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Event kinds pushed to connected browsers.
const (
	EventNoteCreated    = "note_created"
	EventSignedIn       = "signed_in"
	EventSignedOut      = "signed_out"
	EventTokenRefreshed = "token_refreshed"
)

// Event is a real-time notification delivered to a user's open tabs.
type Event struct {
	Kind   string    `json:"kind"`
	NoteID int64     `json:"note_id,omitempty"`
	At     time.Time `json:"at"`
}

// NoteCreated builds the event sent when a user saves a new note.
func NoteCreated(noteID int64) Event {
	return Event{Kind: EventNoteCreated, NoteID: noteID, At: time.Now().UTC()}
}

// AuthEvent builds an event for a session lifecycle change.
func AuthEvent(kind string) Event {
	return Event{Kind: kind, At: time.Now().UTC()}
}

// Hub tracks active WebSocket clients grouped by user. Events are only
// delivered to connections belonging to the event's user, so one user's
// notes never reach another user's browser.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client under its user ID.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.userID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
		}
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	h.mu.Unlock()
}

// Publish sends an event to every connection the given user has open.
func (h *Hub) Publish(userID string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop event to avoid blocking
		}
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
