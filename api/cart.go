package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/saareats/storefront/cart"
)

// ServerCart is the server cart response.
type ServerCart struct {
	CartID string      `json:"cartId"`
	Items  []cart.Item `json:"items"`
}

// GetCart returns the authenticated user's server-side cart.
func (c *Client) GetCart(ctx context.Context) (*ServerCart, error) {
	var out ServerCart
	if err := c.get(ctx, "/cart", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddCartItem adds qty units of a menu item to the server cart.
func (c *Client) AddCartItem(ctx context.Context, menuItemID string, qty int) error {
	body := map[string]interface{}{"menuItemId": menuItemID, "qty": qty}
	return c.post(ctx, "/cart/items", body, nil)
}

// SetCartItemQty sets the quantity of a line in the server cart.
func (c *Client) SetCartItemQty(ctx context.Context, menuItemID string, qty int) error {
	body := map[string]interface{}{"qty": qty}
	return c.patch(ctx, "/cart/items/"+url.PathEscape(menuItemID), body, nil)
}

// RemoveCartItem removes a line from the server cart.
func (c *Client) RemoveCartItem(ctx context.Context, menuItemID string) error {
	return c.delete(ctx, "/cart/items/"+url.PathEscape(menuItemID), nil)
}

// SyncUserCart pushes a snapshot of the local cart to the authenticated
// user's server cart. Used by checkout as a best-effort convenience; a
// failure here is logged by the caller, never surfaced.
func (c *Client) SyncUserCart(ctx context.Context, items []cart.SyncEntry) error {
	body := map[string]interface{}{"items": items}
	return c.post(ctx, "/cart/sync", body, nil)
}

// SaveGuestCart stores an anonymous cart snapshot server-side so a guest
// checkout can be fulfilled without an account.
func (c *Client) SaveGuestCart(ctx context.Context, items []cart.SyncEntry) error {
	body := map[string]interface{}{"items": items}
	return c.post(ctx, "/guest-cart", body, nil)
}

// Cart returns the client's cart operations as the narrow interface the
// reconciliation flow consumes.
func (c *Client) Cart() cart.ServerCart {
	return &serverCartAPI{client: c}
}

// serverCartAPI adapts Client to cart.ServerCart.
type serverCartAPI struct {
	client *Client
}

func (s *serverCartAPI) AddItem(ctx context.Context, id string, qty int) error {
	return s.client.AddCartItem(ctx, id, qty)
}

func (s *serverCartAPI) Get(ctx context.Context) ([]cart.Item, error) {
	sc, err := s.client.GetCart(ctx)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, fmt.Errorf("empty cart response")
	}
	return sc.Items, nil
}
