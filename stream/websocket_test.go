package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// orderServer is a minimal websocket endpoint that pushes canned frames to
// every connection and can drop connections to exercise reconnection.
type orderServer struct {
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	accepted int
}

func (s *orderServer) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.accepted++
	s.mu.Unlock()
}

func (s *orderServer) push(t *testing.T, f frame) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		t.Fatal("no connected client to push to")
	}
	conn := s.conns[len(s.conns)-1]
	if err := conn.WriteJSON(f); err != nil {
		t.Fatalf("push failed: %v", err)
	}
}

func (s *orderServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
}

func (s *orderServer) connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

func startOrderServer(t *testing.T) (*orderServer, string) {
	t.Helper()
	srv := &orderServer{}
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	t.Cleanup(ts.Close)
	t.Cleanup(srv.dropAll)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func waitForConnections(t *testing.T, srv *orderServer, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for srv.connections() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d connections", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketSource_DeliversOrderUpdates(t *testing.T) {
	srv, url := startOrderServer(t)

	source, err := NewWebSocketSource(WebSocketOptions{URL: url})
	if err != nil {
		t.Fatalf("NewWebSocketSource() failed: %v", err)
	}
	defer source.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := source.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	waitForConnections(t, srv, 1)

	srv.push(t, frame{Event: EventOrderUpdate, Data: OrderUpdate{OrderID: "ord-1", Status: "preparing"}})

	select {
	case got := <-events:
		if got.OrderID != "ord-1" || got.Status != "preparing" {
			t.Errorf("unexpected event: %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestWebSocketSource_IgnoresForeignEvents(t *testing.T) {
	srv, url := startOrderServer(t)

	source, err := NewWebSocketSource(WebSocketOptions{URL: url})
	if err != nil {
		t.Fatalf("NewWebSocketSource() failed: %v", err)
	}
	defer source.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := source.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	waitForConnections(t, srv, 1)

	srv.push(t, frame{Event: "chat:message", Data: OrderUpdate{OrderID: "nope"}})
	srv.push(t, frame{Event: EventOrderUpdate, Data: OrderUpdate{OrderID: "ord-2", Status: "ready"}})

	select {
	case got := <-events:
		if got.OrderID != "ord-2" {
			t.Errorf("foreign event leaked through: %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestWebSocketSource_ReconnectsAfterDrop(t *testing.T) {
	srv, url := startOrderServer(t)

	reconnect := ReconnectConfig{
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      50 * time.Millisecond,
		BackoffFactor: 2.0,
	}
	source, err := NewWebSocketSource(WebSocketOptions{URL: url, Reconnect: &reconnect})
	if err != nil {
		t.Fatalf("NewWebSocketSource() failed: %v", err)
	}
	defer source.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	events, err := source.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	waitForConnections(t, srv, 1)

	// Drop the connection; the source must redial on its own
	srv.dropAll()
	waitForConnections(t, srv, 2)

	srv.push(t, frame{Event: EventOrderUpdate, Data: OrderUpdate{OrderID: "ord-3", Status: "completed"}})

	select {
	case got := <-events:
		if got.OrderID != "ord-3" {
			t.Errorf("unexpected event after reconnect: %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for post-reconnect event")
	}
}

func TestWebSocketSource_CloseEndsStream(t *testing.T) {
	srv, url := startOrderServer(t)

	source, err := NewWebSocketSource(WebSocketOptions{URL: url})
	if err != nil {
		t.Fatalf("NewWebSocketSource() failed: %v", err)
	}

	events, err := source.Subscribe(context.Background())
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	waitForConnections(t, srv, 1)

	if err := source.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	// Close is idempotent
	if err := source.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected event channel to close after Close()")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event channel did not close")
	}

	if _, err := source.Subscribe(context.Background()); err == nil {
		t.Error("Subscribe() after Close() should fail")
	}
}

func TestReconnectConfig_BackoffCapped(t *testing.T) {
	cfg := ReconnectConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      1 * time.Second,
		BackoffFactor: 3.0,
	}

	d := time.Duration(0)
	var seen []time.Duration
	for i := 0; i < 5; i++ {
		d = cfg.nextDelay(d)
		seen = append(seen, d)
	}

	want := []time.Duration{
		100 * time.Millisecond,
		300 * time.Millisecond,
		900 * time.Millisecond,
		1 * time.Second,
		1 * time.Second,
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}
