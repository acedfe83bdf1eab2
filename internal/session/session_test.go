package session_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-gateway/internal/backend"
	"github.com/noah-isme/storefront-gateway/internal/checkout"
	"github.com/noah-isme/storefront-gateway/internal/geo"
	"github.com/noah-isme/storefront-gateway/internal/pricing"
	"github.com/noah-isme/storefront-gateway/internal/session"
	"github.com/noah-isme/storefront-gateway/internal/voucher"
)

// fakeBackend is an httptest commerce backend answering with the standard
// {success, result} envelope. Voucher validation requests are recorded.
type fakeBackend struct {
	mu           sync.Mutex
	cart         backend.CartResult
	voucherRes   backend.VoucherResult
	voucherCalls []backend.VoucherValidateRequest
	checkoutRes  backend.CheckoutResult
	srv          *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	f := &fakeBackend{
		cart: backend.CartResult{
			Items: []backend.CartItem{
				{ID: "i1", Kind: "PRODUCT", Name: "Iced Latte", Price: 50000, Quantity: 2, Selected: true},
			},
		},
		voucherRes:  backend.VoucherResult{Valid: true, DiscountValue: 10000, ApplyTo: pricing.ApplyToOrder},
		checkoutRes: backend.CheckoutResult{OrderID: "ord-1"},
	}

	mux := http.NewServeMux()
	ok := func(w http.ResponseWriter, result any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "result": result})
	}
	mux.HandleFunc("GET /cart", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		cart := f.cart
		f.mu.Unlock()
		ok(w, cart)
	})
	mux.HandleFunc("PUT /cart/items/", func(w http.ResponseWriter, _ *http.Request) { ok(w, nil) })
	mux.HandleFunc("PUT /cart/select-all", func(w http.ResponseWriter, _ *http.Request) { ok(w, nil) })
	mux.HandleFunc("DELETE /cart/", func(w http.ResponseWriter, _ *http.Request) { ok(w, nil) })
	mux.HandleFunc("POST /vouchers/validate", func(w http.ResponseWriter, r *http.Request) {
		var req backend.VoucherValidateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.voucherCalls = append(f.voucherCalls, req)
		res := f.voucherRes
		f.mu.Unlock()
		ok(w, res)
	})
	mux.HandleFunc("POST /checkout", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		res := f.checkoutRes
		f.mu.Unlock()
		ok(w, res)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBackend) calls() []backend.VoucherValidateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]backend.VoucherValidateRequest, len(f.voucherCalls))
	copy(out, f.voucherCalls)
	return out
}

func newSession(t *testing.T, f *fakeBackend) *session.Session {
	t.Helper()
	s := session.New("sess-1", session.Deps{
		Backend: &backend.Client{BaseURL: f.srv.URL},
		Geo: geo.MockProvider{
			Loc:   geo.Location{Lat: 10.8, Lng: 106.7},
			Route: geo.Leg{DistanceMeters: 6000, DurationSeconds: 900},
		},
		Fallback: geo.Location{Lat: 10.77, Lng: 106.69},
		// Long debounce keeps quantity commits pending for the whole test.
		Window: time.Hour,
		Logger: zerolog.Nop(),
	})
	require.NoError(t, s.Load(context.Background()))
	return s
}

func checkoutInput() checkout.Input {
	return checkout.Input{
		PaymentMethod: checkout.PaymentCOD,
		ReceiverName:  "Linh Tran",
		ReceiverPhone: "0901234567",
	}
}

func TestLoadPrimesQuote(t *testing.T) {
	t.Parallel()

	s := newSession(t, newFakeBackend(t))
	q := s.Quote()
	require.Equal(t, pricing.Money(100000), q.Subtotal)
	// Delivery is the default; no address yet, so shipping is unknown.
	require.Nil(t, q.ShippingFee)
	require.Equal(t, pricing.Money(100000), q.Total)
}

func TestFulfillmentSwitchReprices(t *testing.T) {
	t.Parallel()

	s := newSession(t, newFakeBackend(t))
	ctx := context.Background()

	require.NoError(t, s.SetFulfillment(ctx, pricing.Pickup))
	q := s.Quote()
	require.NotNil(t, q.ShippingFee)
	require.Equal(t, pricing.Money(0), *q.ShippingFee)
	require.Equal(t, pricing.Money(100000), q.Total)

	require.ErrorIs(t, s.SetFulfillment(ctx, "drone"), session.ErrInvalidFulfillment)
}

func TestAddressRouteFeedsQuote(t *testing.T) {
	t.Parallel()

	s := newSession(t, newFakeBackend(t))
	ctx := context.Background()

	_, err := s.Address.SetAddress(ctx, "12 Nguyen Hue, District 1")
	require.NoError(t, err)

	q := s.Quote()
	require.NotNil(t, q.ShippingFee)
	require.Equal(t, pricing.Money(18000), *q.ShippingFee)
	require.Equal(t, pricing.Money(118000), q.Total)
}

func TestVoucherAppliedToQuote(t *testing.T) {
	t.Parallel()

	s := newSession(t, newFakeBackend(t))
	ctx := context.Background()
	require.NoError(t, s.SetFulfillment(ctx, pricing.Pickup))

	st, err := s.ApplyVoucher(ctx, "SAVE10")
	require.NoError(t, err)
	require.Equal(t, voucher.StatusValid, st.Status)

	q := s.Quote()
	require.Equal(t, pricing.Money(10000), q.Discount)
	require.Equal(t, pricing.Money(90000), q.Total)

	s.RemoveVoucher(ctx)
	require.Equal(t, pricing.Money(100000), s.Quote().Total)
}

func TestVoucherRevalidatedOnSubtotalChange(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t)
	s := newSession(t, f)
	ctx := context.Background()
	require.NoError(t, s.SetFulfillment(ctx, pricing.Pickup))

	_, err := s.ApplyVoucher(ctx, "SAVE10")
	require.NoError(t, err)
	require.Len(t, f.calls(), 1)
	require.Equal(t, pricing.Money(100000), f.calls()[0].OrderTotal)

	// The optimistic quantity change moves the subtotal, forcing an
	// immediate re-validation against the new total.
	require.NoError(t, s.Cart.SetQuantity(ctx, "i1", 3))
	calls := f.calls()
	require.Len(t, calls, 2)
	require.Equal(t, pricing.Money(150000), calls[1].OrderTotal)
}

func TestVoucherNotRevalidatedWhenInputsUnchanged(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t)
	s := newSession(t, f)
	ctx := context.Background()
	require.NoError(t, s.SetFulfillment(ctx, pricing.Pickup))

	_, err := s.ApplyVoucher(ctx, "SAVE10")
	require.NoError(t, err)

	// Selection of an already-selected line does not change the totals.
	require.NoError(t, s.Cart.ToggleSelection(ctx, "i1", true))
	require.Len(t, f.calls(), 1)
}

func TestSnapshotView(t *testing.T) {
	t.Parallel()

	s := newSession(t, newFakeBackend(t))
	ctx := context.Background()
	_, err := s.Address.SetAddress(ctx, "12 Nguyen Hue, District 1")
	require.NoError(t, err)

	v := s.Snapshot()
	require.Equal(t, pricing.Delivery, v.Fulfillment)
	require.Equal(t, "12 Nguyen Hue, District 1", v.Address)
	require.NotNil(t, v.Route)
	require.Equal(t, pricing.Money(118000), v.Total)
	require.Equal(t, voucher.StatusUnvalidated, v.Voucher.Status)
}

func TestSubmitUsesSessionFulfillment(t *testing.T) {
	t.Parallel()

	f := newFakeBackend(t)
	s := newSession(t, f)
	ctx := context.Background()
	require.NoError(t, s.SetFulfillment(ctx, pricing.Pickup))

	out, err := s.Submit(ctx, checkoutInput())
	require.NoError(t, err)
	require.Equal(t, "ord-1", out.OrderID)
	require.Equal(t, pricing.Money(100000), out.Total)
}
