package sse

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHub_broadcastFramesEvents(t *testing.T) {
	hub := NewHub(testLogger())
	a := &Client{ID: "a", Events: make(chan []byte, 4)}
	b := &Client{ID: "b", Events: make(chan []byte, 4)}
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast("action_change", []byte(`{"action":"walk"}`))

	want := "event: action_change\ndata: {\"action\":\"walk\"}\n\n"
	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.Events:
			if string(msg) != want {
				t.Errorf("client %s got %q, want %q", c.ID, msg, want)
			}
		default:
			t.Errorf("client %s received nothing", c.ID)
		}
	}
}

func TestHub_slowClientLosesEvents(t *testing.T) {
	hub := NewHub(testLogger())
	c := &Client{ID: "slow", Events: make(chan []byte, 1)}
	hub.Register(c)

	hub.Broadcast("first", []byte(`{}`))
	hub.Broadcast("second", []byte(`{}`))

	if len(c.Events) != 1 {
		t.Fatalf("expected one queued event, got %d", len(c.Events))
	}
	msg := <-c.Events
	if !strings.Contains(string(msg), "event: first") {
		t.Errorf("expected the first event kept, got %q", msg)
	}
}

func TestHub_unregisterClosesChannel(t *testing.T) {
	hub := NewHub(testLogger())
	c := &Client{ID: "c", Events: make(chan []byte, 1)}
	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected one client, got %d", hub.ClientCount())
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("expected zero clients, got %d", hub.ClientCount())
	}
	if _, ok := <-c.Events; ok {
		t.Error("expected a closed channel")
	}

	// A second unregister must be a no-op.
	hub.Unregister(c)
}

func TestHub_serveHTTPStreams(t *testing.T) {
	hub := NewHub(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/vp/player-events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		hub.ServeHTTP(rec, req)
		close(done)
	}()

	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	hub.Broadcast("scene_change", []byte(`{"scene_id":2}`))

	// Closing the client channel delivers the queued event, then ends the
	// serving loop.
	hub.mu.RLock()
	var client *Client
	for _, c := range hub.clients {
		client = c
	}
	hub.mu.RUnlock()
	hub.Unregister(client)
	<-done

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("expected event-stream content type, got %q", got)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, ": connected\n\n") {
		t.Errorf("expected the connected comment first, got %q", body)
	}
	if !strings.Contains(body, "event: scene_change\ndata: {\"scene_id\":2}\n\n") {
		t.Errorf("expected the broadcast event in the stream, got %q", body)
	}
}
