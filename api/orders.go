package api

import (
	"context"

	"github.com/saareats/storefront/cart"
	"github.com/saareats/storefront/orders"
)

// OrderRequest is the payload for placing an order.
type OrderRequest struct {
	Items   []cart.SyncEntry `json:"items"`
	Notes   string           `json:"notes,omitempty"`
	Address string           `json:"address,omitempty"`
}

// CreateOrder places an order and returns the backend's order record.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*orders.Order, error) {
	var out struct {
		Order orders.Order `json:"order"`
	}
	if err := c.post(ctx, "/orders", req, &out); err != nil {
		return nil, err
	}
	return &out.Order, nil
}

// GetMyOrders returns the authenticated user's order history. This
// satisfies orders.API so the order list can load itself through the
// shared client.
func (c *Client) GetMyOrders(ctx context.Context) ([]orders.Order, error) {
	var out struct {
		Orders []orders.Order `json:"orders"`
	}
	if err := c.get(ctx, "/orders/me", &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// PaymentIntentRequest identifies what is being paid for.
type PaymentIntentRequest struct {
	OrderID string           `json:"orderId,omitempty"`
	Items   []cart.SyncEntry `json:"items,omitempty"`
}

// CreatePaymentIntent asks the backend to open a payment with its
// processor and returns the client secret the payment form needs.
func (c *Client) CreatePaymentIntent(ctx context.Context, req PaymentIntentRequest) (string, error) {
	var out struct {
		ClientSecret string `json:"clientSecret"`
	}
	if err := c.post(ctx, "/payments/create-intent", req, &out); err != nil {
		return "", err
	}
	return out.ClientSecret, nil
}
