package cart

import (
	"context"
	"sync"

	"github.com/saareats/storefront/core"
)

// Store is the persistent cart store. It owns the in-memory item list and
// writes it through to a durable storage slot after every mutation, so a
// crash or navigation immediately after a call never loses the change.
//
// The store is independent of authentication state: nothing here clears the
// cart on logout. Only Clear empties it.
type Store struct {
	mu      sync.Mutex
	items   []Item
	storage core.Storage
	slotKey string
	logger  core.Logger
}

// StoreOptions configures a cart store.
type StoreOptions struct {
	Storage core.Storage // Required durable backend
	SlotKey string       // Storage slot; defaults to "saareats_cart_v1"
	Logger  core.Logger  // Optional logger
}

// NewStore creates a cart store and loads any persisted cart from storage.
// Absent or corrupt stored content yields an empty cart, never an error:
// losing a cached cart is recoverable, refusing to start is not.
func NewStore(ctx context.Context, opts StoreOptions) (*Store, error) {
	if opts.Storage == nil {
		return nil, core.NewClientError("cart.NewStore", "cart", core.ErrMissingConfiguration)
	}
	if opts.SlotKey == "" {
		opts.SlotKey = "saareats_cart_v1"
	}
	if opts.Logger == nil {
		opts.Logger = &core.NoOpLogger{}
	}

	s := &Store{
		storage: opts.Storage,
		slotKey: opts.SlotKey,
		logger:  opts.Logger,
	}
	s.items = s.load(ctx)
	return s, nil
}

// load reads the slot and decodes it, treating corrupt data as no cart.
func (s *Store) load(ctx context.Context) []Item {
	raw, err := s.storage.Get(ctx, s.slotKey)
	if err != nil || raw == "" {
		if err != nil {
			s.logger.Warn("Cart slot unreadable, starting empty", map[string]interface{}{
				"slot":  s.slotKey,
				"error": err,
			})
		}
		return []Item{}
	}

	items, err := decodeItems(raw)
	if err != nil {
		s.logger.Warn("Cart slot corrupt, starting empty", map[string]interface{}{
			"slot":  s.slotKey,
			"error": err,
		})
		return []Item{}
	}

	// Defend against documents persisted by older builds: entries with a
	// non-positive quantity are dropped rather than resurfaced.
	valid := items[:0]
	for _, it := range items {
		if it.Quantity > 0 {
			valid = append(valid, it)
		}
	}
	return valid
}

// Reload re-reads the persisted slot, replacing in-memory state.
// Corrupt or absent content yields an empty cart.
func (s *Store) Reload(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.load(ctx)
}

// persist writes the current items synchronously. Mutations call this
// before returning so durability tracks the in-memory state exactly.
func (s *Store) persist(ctx context.Context) error {
	doc, err := encodeItems(s.items)
	if err != nil {
		return core.NewClientError("cart.persist", "cart", err)
	}
	if err := s.storage.Set(ctx, s.slotKey, doc); err != nil {
		return core.NewClientError("cart.persist", "cart", err)
	}
	return nil
}

// Add puts one unit of item into the cart. If an entry with the same ID
// already exists its quantity is incremented by 1 and the stored name,
// price and image are kept; the descriptor passed in is only used when a
// new entry is created.
func (s *Store) Add(ctx context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.items {
		if s.items[i].ID == item.ID {
			s.items[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		item.Quantity = 1
		s.items = append(s.items, item)
	}

	return s.persist(ctx)
}

// Remove deletes the entry with the given ID; absent IDs are a no-op.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}

	return s.persist(ctx)
}

// SetQuantity sets the quantity for the given ID. A quantity of zero or
// less removes the entry entirely; quantities are never stored <= 0.
func (s *Store) SetQuantity(ctx context.Context, id string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if qty <= 0 {
			s.items = append(s.items[:i], s.items[i+1:]...)
		} else {
			s.items[i].Quantity = qty
		}
		break
	}

	return s.persist(ctx)
}

// Replace wholesale-replaces the cart contents, used after server-side
// reconciliation. A nil list is treated as an empty cart. Entries with a
// non-positive quantity are dropped.
func (s *Store) Replace(ctx context.Context, items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Quantity > 0 {
			next = append(next, it)
		}
	}
	s.items = next

	return s.persist(ctx)
}

// Clear empties the cart and removes its storage slot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = []Item{}
	if err := s.storage.Delete(ctx, s.slotKey); err != nil {
		return core.NewClientError("cart.Clear", "cart", err)
	}
	return nil
}

// Items returns a copy of the current entries in stable display order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of distinct entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Subtotal recomputes the cart subtotal from the current entries.
func (s *Store) Subtotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Subtotal(s.items)
}

// SyncPayload produces the {id, quantity} pairs sent to the server. The
// server owns pricing, so price, name and image are omitted.
func (s *Store) SyncPayload() []SyncEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := make([]SyncEntry, 0, len(s.items))
	for _, it := range s.items {
		payload = append(payload, SyncEntry{ID: it.ID, Quantity: it.Quantity})
	}
	return payload
}
