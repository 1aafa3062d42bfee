// Package cart implements the persistent shopping cart: a durable,
// identity-independent list of menu items that survives restarts and is
// merged into the server-side cart when the shopper authenticates.
package cart

import "encoding/json"

// Item is one cart line. ID is the menu item identifier and is unique
// within a cart; Name, UnitPrice and ImageURL are display copies of the
// menu record at the time the item was added (the server remains the
// source of truth for pricing).
type Item struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"price"`
	Quantity  int     `json:"qty"`
	ImageURL  string  `json:"image,omitempty"`
}

// SyncEntry is the minimal {id, quantity} pair sent to the server during
// reconciliation and checkout sync. Price, name and image are deliberately
// omitted.
type SyncEntry struct {
	ID       string `json:"id"`
	Quantity int    `json:"qty"`
}

// Subtotal computes the sum of UnitPrice x Quantity over items. It is
// always recomputed from the current entries, never cached, so it cannot
// drift from the list it describes.
func Subtotal(items []Item) float64 {
	var sum float64
	for _, it := range items {
		sum += it.UnitPrice * float64(it.Quantity)
	}
	return sum
}

// decodeItems parses a stored cart document. Anything that does not parse
// as a well-formed list of items is reported as corrupt; callers treat
// corrupt content as "no cart".
func decodeItems(raw string) ([]Item, error) {
	var items []Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func encodeItems(items []Item) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
