package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saareats/storefront/core"
)

func newTestStore(t *testing.T) (*Store, core.Storage) {
	t.Helper()
	storage := core.NewInMemoryStorage()
	store, err := NewStore(context.Background(), StoreOptions{Storage: storage})
	require.NoError(t, err)
	return store, storage
}

func TestStore_AddNewAndIncrement(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, Item{ID: "x", Name: "Falafel Wrap", UnitPrice: 9.99}))
	require.NoError(t, store.Add(ctx, Item{ID: "x", Name: "SOMETHING ELSE", UnitPrice: 1.23}))

	items := store.Items()
	require.Len(t, items, 1, "adding the same id twice must not create two entries")
	assert.Equal(t, 2, items[0].Quantity)
	// The existing entry's descriptor is kept; the new one is ignored
	assert.Equal(t, "Falafel Wrap", items[0].Name)
	assert.Equal(t, 9.99, items[0].UnitPrice)

	// Scenario: one entry, qty 2, subtotal 19.98
	assert.InDelta(t, 19.98, store.Subtotal(), 1e-9)
}

func TestStore_RemoveIsNoOpForAbsentID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, Item{ID: "a", UnitPrice: 1}))
	require.NoError(t, store.Remove(ctx, "not-there"))
	assert.Equal(t, 1, store.Len())

	require.NoError(t, store.Remove(ctx, "a"))
	assert.Equal(t, 0, store.Len())
}

func TestStore_SetQuantity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, Item{ID: "a", UnitPrice: 2.5}))
	require.NoError(t, store.SetQuantity(ctx, "a", 4))
	assert.Equal(t, 4, store.Items()[0].Quantity)
	assert.InDelta(t, 10.0, store.Subtotal(), 1e-9)

	// Zero and negative quantities remove the entry entirely
	require.NoError(t, store.SetQuantity(ctx, "a", 0))
	assert.Equal(t, 0, store.Len())

	require.NoError(t, store.Add(ctx, Item{ID: "b", UnitPrice: 1}))
	require.NoError(t, store.SetQuantity(ctx, "b", -3))
	assert.Equal(t, 0, store.Len())
}

func TestStore_QuantityNeverPersistedNonPositive(t *testing.T) {
	store, storage := newTestStore(t)
	ctx := context.Background()

	ops := []func() error{
		func() error { return store.Add(ctx, Item{ID: "a", UnitPrice: 1}) },
		func() error { return store.SetQuantity(ctx, "a", 3) },
		func() error { return store.Add(ctx, Item{ID: "b", UnitPrice: 2}) },
		func() error { return store.SetQuantity(ctx, "b", 0) },
		func() error { return store.Remove(ctx, "missing") },
		func() error { return store.SetQuantity(ctx, "a", -1) },
	}
	for _, op := range ops {
		require.NoError(t, op())

		// Reload what was just persisted and check the invariant held
		reloaded, err := NewStore(ctx, StoreOptions{Storage: storage})
		require.NoError(t, err)
		for _, it := range reloaded.Items() {
			assert.Greater(t, it.Quantity, 0, "persisted quantity must be positive")
		}
	}
}

func TestStore_PersistsEveryMutation(t *testing.T) {
	storage := core.NewInMemoryStorage()
	ctx := context.Background()

	store, err := NewStore(ctx, StoreOptions{Storage: storage})
	require.NoError(t, err)

	require.NoError(t, store.Add(ctx, Item{ID: "a", Name: "Shawarma", UnitPrice: 7.5}))
	require.NoError(t, store.Add(ctx, Item{ID: "b", Name: "Baklava", UnitPrice: 3.0}))
	require.NoError(t, store.SetQuantity(ctx, "a", 2))

	// A second store over the same storage sees the last-persisted state
	reloaded, err := NewStore(ctx, StoreOptions{Storage: storage})
	require.NoError(t, err)

	assert.Equal(t, store.Items(), reloaded.Items())
	assert.InDelta(t, 18.0, reloaded.Subtotal(), 1e-9)
}

func TestStore_CorruptSlotYieldsEmptyCart(t *testing.T) {
	storage := core.NewInMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.Set(ctx, "saareats_cart_v1", "{definitely not json"))

	store, err := NewStore(ctx, StoreOptions{Storage: storage})
	require.NoError(t, err, "corrupt storage must never be fatal")
	assert.Equal(t, 0, store.Len())
}

func TestStore_NonListSlotYieldsEmptyCart(t *testing.T) {
	storage := core.NewInMemoryStorage()
	ctx := context.Background()
	require.NoError(t, storage.Set(ctx, "saareats_cart_v1", `{"id":"a"}`))

	store, err := NewStore(ctx, StoreOptions{Storage: storage})
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestStore_ReplaceAndClear(t *testing.T) {
	store, storage := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, Item{ID: "old", UnitPrice: 1}))
	require.NoError(t, store.Replace(ctx, []Item{
		{ID: "n1", Name: "Hummus", UnitPrice: 4, Quantity: 2},
		{ID: "n2", Name: "Kofta", UnitPrice: 11, Quantity: 1},
		{ID: "bad", Quantity: 0},
	}))

	items := store.Items()
	require.Len(t, items, 2, "non-positive quantities are dropped on replace")
	assert.Equal(t, "n1", items[0].ID)

	// nil replaces to empty
	require.NoError(t, store.Replace(ctx, nil))
	assert.Equal(t, 0, store.Len())

	require.NoError(t, store.Add(ctx, Item{ID: "x", UnitPrice: 1}))
	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, 0, store.Len())

	exists, err := storage.Exists(ctx, "saareats_cart_v1")
	require.NoError(t, err)
	assert.False(t, exists, "Clear must remove the storage slot")
}

func TestStore_SyncPayloadOmitsPricing(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, Item{ID: "a", Name: "Falafel", UnitPrice: 9.99, ImageURL: "http://img"}))
	require.NoError(t, store.SetQuantity(ctx, "a", 3))
	require.NoError(t, store.Add(ctx, Item{ID: "b", Name: "Tea", UnitPrice: 2}))

	payload := store.SyncPayload()
	assert.Equal(t, []SyncEntry{{ID: "a", Quantity: 3}, {ID: "b", Quantity: 1}}, payload)
}

func TestStore_SubtotalRecomputedAfterMutation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, Item{ID: "a", UnitPrice: 5}))
	assert.InDelta(t, 5, store.Subtotal(), 1e-9)

	require.NoError(t, store.SetQuantity(ctx, "a", 3))
	assert.InDelta(t, 15, store.Subtotal(), 1e-9)

	require.NoError(t, store.Remove(ctx, "a"))
	assert.InDelta(t, 0, store.Subtotal(), 1e-9)
}
