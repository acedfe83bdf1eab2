package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-gateway/internal/backend"
	"github.com/noah-isme/storefront-gateway/internal/cart"
	"github.com/noah-isme/storefront-gateway/internal/common"
	"github.com/noah-isme/storefront-gateway/internal/geo"
	"github.com/noah-isme/storefront-gateway/internal/pricing"
	"github.com/noah-isme/storefront-gateway/internal/voucher"
)

// Payment methods accepted at submission.
const (
	PaymentCOD    = "COD"
	PaymentVietQR = "VIETQR"
)

var (
	// ErrEmptySelection means no cart line is selected for the order.
	ErrEmptySelection = errors.New("checkout: no items selected")
	// ErrAddressRequired means delivery was chosen without a resolved address.
	ErrAddressRequired = errors.New("checkout: delivery address required")
	// ErrRouteUnavailable means the shipping fee is not computable yet.
	ErrRouteUnavailable = errors.New("checkout: delivery route unavailable")
	// ErrInvalidInput wraps field validation failures.
	ErrInvalidInput = errors.New("checkout: invalid input")
)

// Input is the buyer-supplied part of an order submission. Fulfillment comes
// from the session's current selection, not the request body.
type Input struct {
	PaymentMethod string              `json:"paymentMethod" validate:"required,oneof=COD VIETQR"`
	Fulfillment   pricing.Fulfillment `json:"-" validate:"required,oneof=pickup delivery"`
	ReceiverName  string              `json:"receiverName" validate:"required,max=120"`
	ReceiverPhone string              `json:"receiverPhone" validate:"required,min=8,max=20"`
	Note          string              `json:"note" validate:"max=500"`
}

// Output is the created order reference with the quoted total.
type Output struct {
	OrderID    string        `json:"orderId"`
	Total      pricing.Money `json:"total"`
	PaymentURL *string       `json:"paymentUrl,omitempty"`
}

// Remote is the backend order-submission surface.
type Remote interface {
	Checkout(ctx context.Context, req backend.CheckoutRequest) (backend.CheckoutResult, error)
}

// Service turns the session's cart, voucher and address state into a backend
// order. Pending quantity edits are flushed first so the order is created
// against settled values.
type Service struct {
	Remote   Remote
	Cart     *cart.Coordinator
	Voucher  *voucher.Validator
	Address  *geo.Pipeline
	QR       *QRBuilder
	Validate *validator.Validate
	Logger   zerolog.Logger
}

// Submit validates the input, prices the selected lines and creates the order.
func (s *Service) Submit(ctx context.Context, in Input) (Output, error) {
	if s == nil || s.Remote == nil || s.Cart == nil {
		return Output{}, errors.New("checkout: service not configured")
	}
	v := s.Validate
	if v == nil {
		v = validator.New()
	}
	if err := v.Struct(in); err != nil {
		return Output{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	s.Cart.FlushPending(ctx)
	snap := s.Cart.Snapshot()
	lines := cart.Lines(snap.Items)
	selected := false
	for _, l := range lines {
		if l.Selected && l.Qty > 0 {
			selected = true
			break
		}
	}
	if !selected {
		return Output{}, ErrEmptySelection
	}

	var st voucher.State
	if s.Voucher != nil {
		st = s.Voucher.State()
	}

	var distanceKm *float64
	var receiverAddress *string
	if in.Fulfillment == pricing.Delivery {
		if s.Address == nil || s.Address.Address() == "" {
			return Output{}, ErrAddressRequired
		}
		route := s.Address.Route()
		if route == nil {
			return Output{}, ErrRouteUnavailable
		}
		distanceKm = &route.DistanceKm
		addr := s.Address.Address()
		receiverAddress = &addr
	}

	quote := pricing.Quote(lines, in.Fulfillment, distanceKm, st.Discount())

	req := backend.CheckoutRequest{
		PaymentMethod:     in.PaymentMethod,
		FulfillmentMethod: strings.ToUpper(string(in.Fulfillment)),
		ReceiverName:      in.ReceiverName,
		ReceiverPhone:     in.ReceiverPhone,
		Note:              in.Note,
		ReceiverAddress:   receiverAddress,
	}
	if st.Status == voucher.StatusValid {
		req.VoucherCode = st.Code
	}
	if in.Fulfillment == pricing.Delivery && quote.ShippingFee != nil {
		fee := int64(*quote.ShippingFee)
		req.ShippingFee = &fee
	}

	res, err := s.Remote.Checkout(ctx, req)
	if err != nil {
		if errors.Is(err, backend.ErrRemote) {
			// The backend answered and refused the order (stock, voucher,
			// pricing drift). Carry its verdict to the edge as-is.
			return Output{}, common.NewAppError("ORDER_REJECTED", "order was not accepted", http.StatusUnprocessableEntity, err)
		}
		return Output{}, err
	}

	out := Output{OrderID: res.OrderID, Total: quote.Total, PaymentURL: res.PaymentURL}
	if in.PaymentMethod == PaymentVietQR && out.PaymentURL == nil && s.QR != nil {
		link, err := s.QR.PaymentLink(ctx, quote.Total, res.OrderID)
		if err != nil {
			s.Logger.Warn().Err(err).Str("order_id", res.OrderID).Msg("vietqr link unavailable")
		} else {
			out.PaymentURL = &link
		}
	}
	return out, nil
}
