package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saareats/storefront/stream"
)

type fakeOrdersAPI struct {
	orders []Order
	err    error
	calls  int
}

func (f *fakeOrdersAPI) GetMyOrders(ctx context.Context) ([]Order, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.orders, nil
}

func TestList_LoadReplacesContents(t *testing.T) {
	api := &fakeOrdersAPI{orders: []Order{
		{ID: "o1", Status: "pending", Total: 12.5},
		{ID: "o2", Status: "preparing", Total: 30},
	}}
	list := NewList(api, nil)

	require.NoError(t, list.Load(context.Background()))
	assert.Equal(t, 2, list.Len())

	snap := list.Snapshot()
	assert.Equal(t, "o1", snap[0].ID)
	assert.Equal(t, "o2", snap[1].ID)

	// A later load wholesale-replaces, including removals
	api.orders = []Order{{ID: "o2", Status: "ready", Total: 30}}
	require.NoError(t, list.Load(context.Background()))
	assert.Equal(t, 1, list.Len())

	_, ok := list.Get("o1")
	assert.False(t, ok)
}

func TestList_LoadErrorLeavesListUntouched(t *testing.T) {
	api := &fakeOrdersAPI{orders: []Order{{ID: "o1", Status: "pending", Total: 5}}}
	list := NewList(api, nil)
	require.NoError(t, list.Load(context.Background()))

	api.err = errors.New("backend down")
	err := list.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, list.Len(), "failed reload must not clear existing orders")
}

func TestList_ApplyPatchesOnlyStatus(t *testing.T) {
	api := &fakeOrdersAPI{orders: []Order{{ID: "o1", Status: "pending", Total: 42.5}}}
	list := NewList(api, nil)
	require.NoError(t, list.Load(context.Background()))

	patched := list.Apply(stream.OrderUpdate{OrderID: "o1", Status: "confirmed"})
	assert.True(t, patched)

	o, ok := list.Get("o1")
	require.True(t, ok)
	assert.Equal(t, "confirmed", o.Status)
	assert.Equal(t, 42.5, o.Total, "Total must be untouched by a status patch")
	assert.Equal(t, "o1", o.ID)
}

func TestList_ApplyUnknownIDIsNoOp(t *testing.T) {
	api := &fakeOrdersAPI{orders: []Order{{ID: "o1", Status: "pending", Total: 1}}}
	list := NewList(api, nil)
	require.NoError(t, list.Load(context.Background()))

	patched := list.Apply(stream.OrderUpdate{OrderID: "ghost", Status: "ready"})
	assert.False(t, patched)
	assert.Equal(t, 1, list.Len(), "unknown updates must never insert")
}

func TestList_LoadDropsDuplicateIDs(t *testing.T) {
	api := &fakeOrdersAPI{orders: []Order{
		{ID: "o1", Status: "pending", Total: 1},
		{ID: "o1", Status: "ready", Total: 2},
	}}
	list := NewList(api, nil)
	require.NoError(t, list.Load(context.Background()))

	assert.Equal(t, 1, list.Len())
	o, _ := list.Get("o1")
	assert.Equal(t, "pending", o.Status, "first occurrence wins")
}
