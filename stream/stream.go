// Package stream provides the push channel carrying order-status events
// from the backend to the storefront. Two transports are available: a
// websocket client and a Redis pub/sub subscriber. Both deliver the same
// OrderUpdate events and both own their reconnection policy, so consumers
// never resubscribe manually.
package stream

import (
	"context"
	"time"
)

// OrderUpdate is one order-status event. It deliberately carries too
// little data to construct a full order record; consumers patch existing
// orders and drop updates for unknown IDs.
type OrderUpdate struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// EventOrderUpdate is the event name used on the wire.
const EventOrderUpdate = "order:update"

// Source is a push-channel transport.
//
// Contract:
// - Subscribe returns a channel that stays open across transport
//   reconnects; it closes only when the source is closed or ctx ends
// - Close is idempotent
// - Events may be dropped if a subscriber falls behind; the channel is
//   never blocked on indefinitely
type Source interface {
	Subscribe(ctx context.Context) (<-chan OrderUpdate, error)
	Close() error
}

// frame is the wire envelope for websocket events.
type frame struct {
	Event string      `json:"event"`
	Data  OrderUpdate `json:"data"`
}

// ReconnectConfig controls the backoff used by transports after a dropped
// connection.
type ReconnectConfig struct {
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultReconnectConfig provides sensible defaults
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// nextDelay computes the delay after a failed attempt, capped at MaxDelay.
func (c ReconnectConfig) nextDelay(current time.Duration) time.Duration {
	if current <= 0 {
		return c.InitialDelay
	}
	next := time.Duration(float64(current) * c.BackoffFactor)
	if next > c.MaxDelay {
		next = c.MaxDelay
	}
	return next
}
