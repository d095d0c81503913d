package live

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/neilotoole/slogt"

	"github.com/MilekOfficial/SwapSnap/gallery"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(slogt.New(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	expect(t, conn, EventConnected)
	return conn
}

func expect(t *testing.T, conn *websocket.Conn, typ string) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("Could not read %s event: %v", typ, err)
	}
	if ev.Type != typ {
		t.Fatalf("Got event %q, want %q", ev.Type, typ)
	}
	return ev
}

func TestHub_PublishReactions(t *testing.T) {
	hub, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)

	reactions := []gallery.Reaction{
		{ViewerID: "u1", Emoji: "👍"},
		{ViewerID: "u2", Emoji: "😂"},
	}
	hub.PublishReactions("a.png", reactions)

	for _, conn := range []*websocket.Conn{a, b} {
		ev := expect(t, conn, EventReactionUpdated)
		if ev.PhotoID != "a.png" {
			t.Errorf("Got photo %q, want a.png", ev.PhotoID)
		}
		if diff := cmp.Diff(reactions, ev.Reactions); diff != "" {
			t.Errorf("Reactions mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(gallery.Summarize(reactions), ev.Summary); diff != "" {
			t.Errorf("Summary mismatch (-want +got):\n%s", diff)
		}
		if ev.Timestamp.IsZero() {
			t.Error("Got zero timestamp")
		}
	}
}

func TestHub_ViewingFilter(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, url)

	if err := conn.WriteJSON(clientMessage{Type: EventViewing, PhotoID: "b.png"}); err != nil {
		t.Fatal(err)
	}
	if ev := expect(t, conn, EventViewing); ev.PhotoID != "b.png" {
		t.Fatalf("Got viewing ack for %q, want b.png", ev.PhotoID)
	}

	hub.PublishReactions("a.png", nil)
	hub.PublishReactions("b.png", []gallery.Reaction{{ViewerID: "u1", Emoji: "❤️"}})

	if ev := expect(t, conn, EventReactionUpdated); ev.PhotoID != "b.png" {
		t.Errorf("Got update for %q, want only b.png", ev.PhotoID)
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub(slogt.New(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	srv := httptest.NewServer(hub)
	defer srv.Close()
	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Got a message after the hub stopped, want the connection closed")
	}

	// Publishing after Run returned must not block.
	hub.PublishReactions("a.png", nil)
}

func TestHub_RejectsConnectionsAfterStop(t *testing.T) {
	hub := NewHub(slogt.New(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v, want nil", err)
	}

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Got a message from a stopped hub, want the connection closed")
	}
	if hub.track() {
		t.Error("Got a tracked connection after Run returned, want it refused")
	}
}
