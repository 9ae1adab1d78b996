package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   nil,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "u-1")
	c2 := mockClient(hub, "u-1")

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, "u-1")
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestPublishReachesOwnerOnly(t *testing.T) {
	hub := NewHub(slog.Default())

	owner := mockClient(hub, "u-1")
	ownerTab := mockClient(hub, "u-1")
	other := mockClient(hub, "u-2")
	hub.Register(owner)
	hub.Register(ownerTab)
	hub.Register(other)

	hub.Publish("u-1", NoteCreated(42))

	// Both of the owner's connections receive the event
	for _, c := range []*Client{owner, ownerTab} {
		select {
		case data := <-c.send:
			var got Event
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Kind != EventNoteCreated {
				t.Errorf("expected kind %s, got %s", EventNoteCreated, got.Kind)
			}
			if got.NoteID != 42 {
				t.Errorf("expected note_id 42, got %d", got.NoteID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}

	// The other user's connection stays silent
	select {
	case <-other.send:
		t.Error("event leaked to another user's connection")
	default:
	}

	hub.Unregister(owner)
	hub.Unregister(ownerTab)
	hub.Unregister(other)
}

func TestPublishEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Publish("u-1", AuthEvent(EventSignedOut))
}

func TestPublishFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, "u-1")
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Publish("u-1", NoteCreated(int64(i)))
	}

	// This should drop the event, not panic or block
	hub.Publish("u-1", NoteCreated(999))

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d events, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestAuthEvent(t *testing.T) {
	ev := AuthEvent(EventSignedIn)
	if ev.Kind != EventSignedIn {
		t.Errorf("expected kind %s, got %s", EventSignedIn, ev.Kind)
	}
	if ev.NoteID != 0 {
		t.Errorf("expected zero note_id, got %d", ev.NoteID)
	}
	if ev.At.IsZero() {
		t.Error("expected At to be set")
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	// Spawn goroutines that register, publish, and unregister concurrently
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "u-1")
			hub.Register(c)
			hub.Publish("u-1", NoteCreated(0))
			// Drain any events
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
