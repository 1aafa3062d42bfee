package api

import (
	"context"
	"encoding/json"
	"net/url"
)

// MenuItem is one orderable dish.
type MenuItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category,omitempty"`
	ImageURL string  `json:"image,omitempty"`
}

// GetMenu returns the public menu. The backend has served both
// {"items": [...]} and a bare array over time; both are accepted.
func (c *Client) GetMenu(ctx context.Context) ([]MenuItem, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/menu", &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		Items []MenuItem `json:"items"`
	}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Items != nil {
		return wrapped.Items, nil
	}
	var direct []MenuItem
	if err := json.Unmarshal(raw, &direct); err != nil {
		return nil, err
	}
	return direct, nil
}

// CreateMenuItem creates a dish. Admin only; the backend enforces the role
// and answers 401/403 otherwise.
func (c *Client) CreateMenuItem(ctx context.Context, item MenuItem) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/admin/menu", item, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// UpdateMenuItem replaces a dish. Admin only.
func (c *Client) UpdateMenuItem(ctx context.Context, id string, item MenuItem) error {
	return c.put(ctx, "/admin/menu/"+url.PathEscape(id), item, nil)
}

// DeleteMenuItem removes a dish. Admin only.
func (c *Client) DeleteMenuItem(ctx context.Context, id string) error {
	return c.delete(ctx, "/admin/menu/"+url.PathEscape(id), nil)
}

// ListCategories returns the admin category list.
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var out struct {
		Categories []string `json:"categories"`
	}
	if err := c.get(ctx, "/admin/categories", &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}
