// Package orders holds the shopper's order list and keeps it synchronized
// with server-pushed status events while an order view is active.
package orders

import (
	"context"
	"sync"

	"github.com/saareats/storefront/core"
	"github.com/saareats/storefront/stream"
)

// Order is one placed order. Status is an enumerated string owned by the
// backend (pending, confirmed, preparing, ready, completed, cancelled) and
// treated as opaque here.
type Order struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Total  float64 `json:"total"`
}

// API is the slice of the backend the order list consumes. api.Client
// implements it.
type API interface {
	GetMyOrders(ctx context.Context) ([]Order, error)
}

// List is the in-memory order collection: a map keyed by order ID for O(1)
// status patches, plus the display order of the last bulk load.
//
// Mutations happen two ways only: bulk replacement by Load and individual
// status patches by Apply. The two paths are not coordinated by a lock
// across the network call, so a Load completing after a patch overwrites
// the patch (last-write-wins by completion order). The next pushed event
// or reload repairs it.
type List struct {
	mu    sync.Mutex
	byID  map[string]Order
	order []string

	api    API
	logger core.Logger
}

// NewList creates an empty order list.
func NewList(api API, logger core.Logger) *List {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &List{
		byID:   make(map[string]Order),
		api:    api,
		logger: logger,
	}
}

// Load bulk-replaces the list with the server's current orders.
func (l *List) Load(ctx context.Context) error {
	fetched, err := l.api.GetMyOrders(ctx)
	if err != nil {
		return core.NewClientError("orders.Load", "orders", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.byID = make(map[string]Order, len(fetched))
	l.order = l.order[:0]
	for _, o := range fetched {
		if _, dup := l.byID[o.ID]; dup {
			continue
		}
		l.byID[o.ID] = o
		l.order = append(l.order, o.ID)
	}

	l.logger.Debug("Order list loaded", map[string]interface{}{
		"count": len(l.order),
	})
	return nil
}

// Apply patches the status of a known order in place. An update for an
// unknown ID is silently dropped: the event carries too little data to
// construct a full order record, so nothing is speculatively inserted.
// Returns whether a patch happened.
func (l *List) Apply(u stream.OrderUpdate) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, ok := l.byID[u.OrderID]
	if !ok {
		l.logger.Debug("Dropping update for unknown order", map[string]interface{}{
			"order_id": u.OrderID,
		})
		return false
	}

	existing.Status = u.Status
	l.byID[u.OrderID] = existing
	return true
}

// Get returns the order with the given ID.
func (l *List) Get(id string) (Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.byID[id]
	return o, ok
}

// Snapshot returns the orders in display order.
func (l *List) Snapshot() []Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Order, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id])
	}
	return out
}

// Len returns the number of orders held.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byID)
}
