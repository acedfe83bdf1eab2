package pricing

// Money represents a monetary value stored in minor units.
type Money = int64

// Fulfillment selects how an order reaches the buyer.
type Fulfillment string

const (
	// Pickup means the buyer collects at the store; no shipping fee.
	Pickup Fulfillment = "pickup"
	// Delivery ships to the buyer; the fee depends on route distance.
	Delivery Fulfillment = "delivery"
)

// Discount target values reported by the voucher collaborator.
const (
	ApplyToOrder    = "ORDER"
	ApplyToShipping = "SHIPPING"
)

// LineItem describes a cart line used for quote calculation.
type LineItem struct {
	Qty       int
	UnitPrice Money
	Selected  bool
}

// Discount is the applied voucher outcome fed into a quote. A zero value
// means no voucher is applied.
type Discount struct {
	Valid   bool
	Value   Money
	ApplyTo string
}

// Summary aggregates computed pricing components. A nil ShippingFee means
// the fee is not yet computable (delivery chosen but no route known), which
// is distinct from a fee of zero.
type Summary struct {
	Subtotal    Money
	ShippingFee *Money
	Discount    Money
	Total       Money
}

// Quote calculates checkout totals from cart lines, the fulfillment method,
// the known route distance (nil when absent) and the applied voucher. Only
// selected lines count toward the subtotal; the cart-view all-items total is
// a separate aggregate owned by the cart summary.
func Quote(items []LineItem, method Fulfillment, distanceKm *float64, d Discount) Summary {
	var subtotal Money
	for _, it := range items {
		if !it.Selected || it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}

	var shipping *Money
	switch method {
	case Pickup:
		zero := Money(0)
		shipping = &zero
	case Delivery:
		if distanceKm != nil {
			fee := DeliveryFee(*distanceKm)
			shipping = &fee
		}
	}

	var discount Money
	if d.Valid && d.Value > 0 {
		discount = d.Value
		switch d.ApplyTo {
		case ApplyToShipping:
			if shipping == nil {
				discount = 0
			} else if discount > *shipping {
				discount = *shipping
			}
		default:
			if discount > subtotal {
				discount = subtotal
			}
		}
	}

	total := subtotal - discount
	if shipping != nil {
		total += *shipping
	}
	if total < 0 {
		total = 0
	}
	return Summary{
		Subtotal:    subtotal,
		ShippingFee: shipping,
		Discount:    discount,
		Total:       total,
	}
}
