package backend

// CartItem is a cart line as reported by the commerce backend.
type CartItem struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Selected  bool   `json:"isSelected"`
	Amount    int64  `json:"amount"`
	ImageURL  string `json:"imageUrl,omitempty"`
	ComboID   string `json:"comboId,omitempty"`
	ProductID string `json:"productId,omitempty"`
}

// CartSummary is the backend-computed aggregate over cart items.
type CartSummary struct {
	TotalItems       int   `json:"totalItems"`
	SelectedItems    int   `json:"selectedItems"`
	TotalAmount      int64 `json:"totalAmount"`
	SelectedAmount   int64 `json:"selectedAmount"`
	TotalQuantity    int   `json:"totalQuantity"`
	SelectedQuantity int   `json:"selectedQuantity"`
}

// CartResult is the cart payload returned by every cart endpoint.
type CartResult struct {
	Items   []CartItem  `json:"items"`
	Summary CartSummary `json:"summary"`
}

// VoucherValidateRequest carries the full pricing context for validation.
// The backend re-checks eligibility against these exact values.
type VoucherValidateRequest struct {
	VoucherCode string `json:"voucherCode"`
	OrderTotal  int64  `json:"orderTotal"`
	ShippingFee int64  `json:"shippingFee"`
	UserID      string `json:"userId"`
}

// VoucherResult is the validation outcome reported by the backend.
type VoucherResult struct {
	Valid         bool   `json:"valid"`
	DiscountValue int64  `json:"discountValue"`
	ApplyTo       string `json:"applyTo"`
	Message       string `json:"message"`
}

// CheckoutRequest submits an order.
type CheckoutRequest struct {
	PaymentMethod     string  `json:"paymentMethod"`
	FulfillmentMethod string  `json:"fulfillmentMethod"`
	ReceiverName      string  `json:"receiverName"`
	ReceiverPhone     string  `json:"receiverPhone"`
	VoucherCode       string  `json:"voucherCode,omitempty"`
	Note              string  `json:"note,omitempty"`
	ReceiverAddress   *string `json:"receiverAddress,omitempty"`
	ShippingFee       *int64  `json:"shippingFee,omitempty"`
}

// CheckoutResult is the created order reference.
type CheckoutResult struct {
	OrderID    string  `json:"orderId"`
	PaymentURL *string `json:"paymentUrl,omitempty"`
}
