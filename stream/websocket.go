package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/saareats/storefront/core"
)

// WebSocketSource is a websocket client for the backend's order-update
// endpoint. It dials on Subscribe and redials with capped exponential
// backoff whenever the connection drops, keeping the subscriber channel
// open across reconnects so consumers see one continuous stream.
type WebSocketSource struct {
	url       string
	header    http.Header
	reconnect ReconnectConfig
	logger    core.Logger
	clientID  string

	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

// WebSocketOptions configures a WebSocketSource.
type WebSocketOptions struct {
	URL       string           // ws:// or wss:// endpoint, required
	Header    http.Header      // Optional headers (e.g. session cookie)
	Reconnect *ReconnectConfig // Optional; defaults to DefaultReconnectConfig
	Logger    core.Logger      // Optional logger
}

// NewWebSocketSource creates a websocket push-channel source.
func NewWebSocketSource(opts WebSocketOptions) (*WebSocketSource, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("websocket URL is required: %w", core.ErrInvalidConfiguration)
	}
	if opts.Logger == nil {
		opts.Logger = &core.NoOpLogger{}
	}
	reconnect := DefaultReconnectConfig()
	if opts.Reconnect != nil {
		reconnect = *opts.Reconnect
	}

	return &WebSocketSource{
		url:       opts.URL,
		header:    opts.Header,
		reconnect: reconnect,
		logger:    opts.Logger,
		clientID:  uuid.New().String(),
	}, nil
}

// Subscribe starts the read loop and returns the event channel. The
// channel closes when ctx is cancelled or the source is closed.
func (s *WebSocketSource) Subscribe(ctx context.Context) (<-chan OrderUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, core.ErrClosed
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	events := make(chan OrderUpdate, 16)
	go s.run(runCtx, events)
	return events, nil
}

// Close tears the subscription down. Idempotent.
func (s *WebSocketSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// run dials, reads until the connection drops, and redials. It owns the
// events channel and closes it on exit.
func (s *WebSocketSource) run(ctx context.Context, events chan<- OrderUpdate) {
	defer close(events)

	delay := time.Duration(0)
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, s.header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay = s.reconnect.nextDelay(delay)
			s.logger.Warn("Order stream dial failed, backing off", map[string]interface{}{
				"client_id": s.clientID,
				"url":       s.url,
				"retry_in":  delay.String(),
				"error":     err,
			})
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}

		s.logger.Info("Order stream connected", map[string]interface{}{
			"client_id": s.clientID,
			"url":       s.url,
		})
		delay = 0

		if !s.readLoop(ctx, conn, events) {
			conn.Close()
			return
		}
		conn.Close()

		// Connection dropped; back off before redialing
		delay = s.reconnect.nextDelay(delay)
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

// readLoop reads frames until the connection fails. Returns false when the
// subscription should end entirely (ctx done), true to reconnect.
func (s *WebSocketSource) readLoop(ctx context.Context, conn *websocket.Conn, events chan<- OrderUpdate) bool {
	// Unblock the blocking read when ctx ends
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return false
			}
			s.logger.Warn("Order stream read failed, reconnecting", map[string]interface{}{
				"client_id": s.clientID,
				"error":     err,
			})
			return true
		}

		if f.Event != EventOrderUpdate || f.Data.OrderID == "" {
			continue
		}

		select {
		case events <- f.Data:
		case <-ctx.Done():
			return false
		default:
			// Subscriber is not draining; drop rather than block the
			// read loop. The next full reload repairs any missed status.
			s.logger.Warn("Order stream subscriber behind, dropping event", map[string]interface{}{
				"order_id": f.Data.OrderID,
			})
		}
	}
}

// sleepCtx sleeps for d or until ctx ends; returns false if ctx ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
