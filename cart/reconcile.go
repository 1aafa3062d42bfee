package cart

import (
	"context"

	"github.com/saareats/storefront/core"
)

// ServerCart is the slice of the backend API the reconciliation flow
// consumes. api.Client implements it.
type ServerCart interface {
	// AddItem adds qty units of a menu item to the caller's server cart.
	AddItem(ctx context.Context, id string, qty int) error
	// Get returns the server's canonical cart contents.
	Get(ctx context.Context) ([]Item, error)
}

// MergeWithServer merges the locally persisted cart into the server-side
// cart and then replaces local state with the server's canonical cart. It
// runs once per successful login or register.
//
// Steps are strictly sequential: every push is awaited before the server
// cart is read, so the read never observes a partially merged cart. Local
// items are pushed one unit per call, matching the granularity of the
// backend's add-to-cart operation.
//
// Failure policy: any error propagates to the caller and Replace has not
// yet run, so the local cart is left untouched and the merge can be
// retried without losing anything.
func MergeWithServer(ctx context.Context, store *Store, server ServerCart, logger core.Logger) error {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	payload := store.SyncPayload()
	if len(payload) == 0 {
		logger.Debug("Local cart empty, skipping merge", nil)
		return nil
	}

	for _, entry := range payload {
		for unit := 0; unit < entry.Quantity; unit++ {
			if err := server.AddItem(ctx, entry.ID, 1); err != nil {
				logger.Warn("Cart merge push failed", map[string]interface{}{
					"item_id": entry.ID,
					"error":   err,
				})
				return core.NewClientError("cart.MergeWithServer", "cart", err)
			}
		}
	}

	serverItems, err := server.Get(ctx)
	if err != nil {
		logger.Warn("Cart merge read failed, local cart kept", map[string]interface{}{
			"error": err,
		})
		return core.NewClientError("cart.MergeWithServer", "cart", err)
	}

	if err := store.Replace(ctx, serverItems); err != nil {
		return err
	}

	logger.Info("Cart merged with server", map[string]interface{}{
		"local_entries":  len(payload),
		"server_entries": len(serverItems),
	})
	return nil
}
