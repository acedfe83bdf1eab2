package cart

import (
	"github.com/noah-isme/storefront-gateway/internal/backend"
	"github.com/noah-isme/storefront-gateway/internal/pricing"
)

// Kind distinguishes plain products from combo bundles.
type Kind string

const (
	// KindProduct is a single product line.
	KindProduct Kind = "PRODUCT"
	// KindCombo is a bundled combo line.
	KindCombo Kind = "COMBO"
)

// Item is one cart line. Amount is always derived from UnitPrice and Qty;
// it is never set independently.
type Item struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"kind"`
	Name      string        `json:"name"`
	UnitPrice pricing.Money `json:"price"`
	Qty       int           `json:"quantity"`
	Selected  bool          `json:"isSelected"`
	Amount    pricing.Money `json:"amount"`
	InFlight  bool          `json:"inFlight"`
}

// Summary aggregates cart items. It is recomputed from the items on every
// change, never patched, so it cannot drift from the lines it describes.
// TotalAmount is the cart-view aggregate over all items; SelectedAmount is
// the checkout-view aggregate over selected items only.
type Summary struct {
	TotalItems       int           `json:"totalItems"`
	SelectedItems    int           `json:"selectedItems"`
	TotalAmount      pricing.Money `json:"totalAmount"`
	SelectedAmount   pricing.Money `json:"selectedAmount"`
	TotalQuantity    int           `json:"totalQuantity"`
	SelectedQuantity int           `json:"selectedQuantity"`
}

// Cart is the session-local view of the remote cart.
type Cart struct {
	Items   []Item  `json:"items"`
	Summary Summary `json:"summary"`
}

// Summarize computes the aggregate for a set of items.
func Summarize(items []Item) Summary {
	var s Summary
	for _, it := range items {
		s.TotalItems++
		s.TotalAmount += it.Amount
		s.TotalQuantity += it.Qty
		if it.Selected {
			s.SelectedItems++
			s.SelectedAmount += it.Amount
			s.SelectedQuantity += it.Qty
		}
	}
	return s
}

// Lines converts the selected-state snapshot into pricing inputs.
func Lines(items []Item) []pricing.LineItem {
	lines := make([]pricing.LineItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, pricing.LineItem{Qty: it.Qty, UnitPrice: it.UnitPrice, Selected: it.Selected})
	}
	return lines
}

// fromBackend rebuilds local items from an authoritative snapshot. Line
// amounts and the summary are recomputed locally rather than trusted from
// the wire, keeping the derivation invariant in one place.
func fromBackend(res backend.CartResult) []Item {
	items := make([]Item, 0, len(res.Items))
	for _, it := range res.Items {
		qty := it.Quantity
		if qty < 0 {
			qty = 0
		}
		items = append(items, Item{
			ID:        it.ID,
			Kind:      Kind(it.Kind),
			Name:      it.Name,
			UnitPrice: it.Price,
			Qty:       qty,
			Selected:  it.Selected,
			Amount:    pricing.Money(qty) * it.Price,
		})
	}
	return items
}
