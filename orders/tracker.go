package orders

import (
	"context"
	"sync"

	"github.com/saareats/storefront/core"
	"github.com/saareats/storefront/stream"
)

// Tracker pumps push-channel events into an order list for exactly as long
// as the consuming view is active: subscribe on Start, tear down on Stop.
// Because every activation subscribes afresh, surviving a transport
// disconnect needs no logic here - the source owns reconnection.
//
// No acknowledgement is ever sent back over the channel. Events arriving
// after Stop are not applied.
type Tracker struct {
	source stream.Source
	list   *List
	logger core.Logger

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTracker creates a tracker feeding list from source.
func NewTracker(source stream.Source, list *List, logger core.Logger) *Tracker {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Tracker{
		source: source,
		list:   list,
		logger: logger,
	}
}

// Start subscribes and begins applying updates. Starting an active tracker
// returns ErrAlreadyStarted.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		return core.ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	events, err := t.source.Subscribe(runCtx)
	if err != nil {
		cancel()
		return core.NewClientError("orders.Tracker.Start", "orders", err)
	}

	t.active = true
	t.cancel = cancel
	t.done = make(chan struct{})

	go t.pump(events, t.done)
	return nil
}

// Stop ends the subscription. A late event delivered around the stop is
// discarded by the active check in pump, never applied after deactivation.
// Stop is idempotent; the tracker can be started again afterwards.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	t.cancel()
	done := t.done
	t.mu.Unlock()

	<-done
}

// Active reports whether the tracker currently holds a subscription.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *Tracker) pump(events <-chan stream.OrderUpdate, done chan struct{}) {
	defer close(done)

	for u := range events {
		t.mu.Lock()
		active := t.active
		t.mu.Unlock()
		if !active {
			// Stale delivery after deactivation
			return
		}

		if t.list.Apply(u) {
			t.logger.Debug("Order status patched", map[string]interface{}{
				"order_id": u.OrderID,
				"status":   u.Status,
			})
		}
	}
}
