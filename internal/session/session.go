package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-gateway/internal/backend"
	"github.com/noah-isme/storefront-gateway/internal/cart"
	"github.com/noah-isme/storefront-gateway/internal/checkout"
	"github.com/noah-isme/storefront-gateway/internal/confcache"
	"github.com/noah-isme/storefront-gateway/internal/events"
	"github.com/noah-isme/storefront-gateway/internal/geo"
	"github.com/noah-isme/storefront-gateway/internal/pricing"
	"github.com/noah-isme/storefront-gateway/internal/voucher"
)

// ErrInvalidFulfillment rejects methods other than pickup and delivery.
var ErrInvalidFulfillment = errors.New("session: invalid fulfillment method")

// Deps carries the process-wide collaborators a session is built from.
type Deps struct {
	Backend  *backend.Client
	Geo      geo.Provider
	Config   *confcache.Cache
	Fallback geo.Location
	Window   time.Duration
	QR       *checkout.QRBuilder
	Logger   zerolog.Logger
}

// View is the session's quoted state as returned to the storefront.
type View struct {
	Fulfillment pricing.Fulfillment `json:"fulfillmentMethod"`
	Subtotal    pricing.Money       `json:"subtotal"`
	ShippingFee *pricing.Money      `json:"shippingFee"`
	Discount    pricing.Money       `json:"discount"`
	Total       pricing.Money       `json:"total"`
	Voucher     voucher.State       `json:"voucher"`
	Address     string              `json:"address,omitempty"`
	Route       *geo.Route          `json:"route,omitempty"`
}

// Session holds one storefront visitor's gateway-side state: the optimistic
// cart, the applied voucher, the delivery address and the derived quote. All
// components share one event bus; handlers run synchronously, so a mutation
// and the recomputation it triggers are atomic from the caller's view.
type Session struct {
	ID       string
	Bus      *events.Bus
	Cart     *cart.Coordinator
	Voucher  *voucher.Validator
	Address  *geo.Pipeline
	Checkout *checkout.Service
	Logger   zerolog.Logger

	mu          sync.Mutex
	fulfillment pricing.Fulfillment
	summary     pricing.Summary
	lastSeen    time.Time
	loaded      bool
}

// New builds a session with its own bus and per-session backend client, and
// wires the recomputation subscriptions.
func New(id string, d Deps) *Session {
	bus := &events.Bus{}
	remote := d.Backend.ForSession(id)
	logger := d.Logger.With().Str("session_id", id).Logger()

	s := &Session{
		ID:          id,
		Bus:         bus,
		Logger:      logger,
		fulfillment: pricing.Delivery,
	}
	s.Cart = &cart.Coordinator{Remote: remote, Window: d.Window, Bus: bus, Logger: logger}
	s.Voucher = &voucher.Validator{Remote: remote, Bus: bus, Logger: logger}
	s.Address = &geo.Pipeline{
		Provider: d.Geo,
		Config:   d.Config,
		Fallback: d.Fallback,
		Bus:      bus,
		Logger:   logger,
	}
	s.Checkout = &checkout.Service{
		Remote:  remote,
		Cart:    s.Cart,
		Voucher: s.Voucher,
		Address: s.Address,
		QR:      d.QR,
		Logger:  logger,
	}

	// Cart, route and fulfillment changes move the voucher's inputs, so they
	// force a re-validation pass. Voucher changes only move the discount;
	// re-quoting there without revalidating keeps the bus loop-free.
	revalidate := func(ctx context.Context, _ events.Event) { s.recompute(ctx, true) }
	bus.Subscribe(events.TopicCartUpdated, revalidate)
	bus.Subscribe(events.TopicRouteUpdated, revalidate)
	bus.Subscribe(events.TopicFulfillmentUpdated, revalidate)
	bus.Subscribe(events.TopicVoucherUpdated, func(ctx context.Context, _ events.Event) {
		s.recompute(ctx, false)
	})
	return s
}

// Load fetches the initial cart snapshot and primes the quote. It is a no-op
// once a load has succeeded; a failed load is retried on the next call.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return nil
	}
	if err := s.Cart.Refresh(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Fulfillment returns the current fulfillment method.
func (s *Session) Fulfillment() pricing.Fulfillment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fulfillment
}

// SetFulfillment switches between pickup and delivery and reprices.
func (s *Session) SetFulfillment(ctx context.Context, method pricing.Fulfillment) error {
	if method != pricing.Pickup && method != pricing.Delivery {
		return ErrInvalidFulfillment
	}
	s.mu.Lock()
	if s.fulfillment == method {
		s.mu.Unlock()
		return nil
	}
	s.fulfillment = method
	s.mu.Unlock()
	s.Bus.Emit(ctx, events.TopicFulfillmentUpdated, method)
	return nil
}

// ApplyVoucher validates a code against the current pre-discount quote.
func (s *Session) ApplyVoucher(ctx context.Context, code string) (voucher.State, error) {
	return s.Voucher.Apply(ctx, code, s.voucherInputs())
}

// RemoveVoucher clears the applied code.
func (s *Session) RemoveVoucher(ctx context.Context) {
	s.Voucher.Remove(ctx)
}

// Quote returns the latest derived pricing summary.
func (s *Session) Quote() pricing.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Snapshot assembles the full session view.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	method := s.fulfillment
	summary := s.summary
	s.mu.Unlock()
	return View{
		Fulfillment: method,
		Subtotal:    summary.Subtotal,
		ShippingFee: summary.ShippingFee,
		Discount:    summary.Discount,
		Total:       summary.Total,
		Voucher:     s.Voucher.State(),
		Address:     s.Address.Address(),
		Route:       s.Address.Route(),
	}
}

// Submit flushes pending edits and creates the order with the session's
// current fulfillment method.
func (s *Session) Submit(ctx context.Context, in checkout.Input) (checkout.Output, error) {
	in.Fulfillment = s.Fulfillment()
	out, err := s.Checkout.Submit(ctx, in)
	if err != nil {
		return checkout.Output{}, err
	}
	return out, nil
}

// Touch records activity for idle eviction.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// LastSeen reports the most recent activity timestamp.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) voucherInputs() voucher.Inputs {
	snap := s.Cart.Snapshot()
	lines := cart.Lines(snap.Items)
	var distanceKm *float64
	if r := s.Address.Route(); r != nil {
		distanceKm = &r.DistanceKm
	}
	q := pricing.Quote(lines, s.Fulfillment(), distanceKm, pricing.Discount{})
	in := voucher.Inputs{OrderTotal: q.Subtotal, UserID: s.ID}
	if q.ShippingFee != nil {
		in.ShippingFee = *q.ShippingFee
	}
	return in
}

// recompute derives the quote from the current cart, route, fulfillment and
// voucher state. When revalidate is set and a code is applied, changed inputs
// are pushed through the voucher first so a stale discount never survives a
// subtotal or fee change.
func (s *Session) recompute(ctx context.Context, revalidate bool) {
	snap := s.Cart.Snapshot()
	lines := cart.Lines(snap.Items)
	var distanceKm *float64
	if r := s.Address.Route(); r != nil {
		distanceKm = &r.DistanceKm
	}
	method := s.Fulfillment()

	st := s.Voucher.State()
	q := pricing.Quote(lines, method, distanceKm, st.Discount())

	if revalidate && (st.Status == voucher.StatusValid || st.Status == voucher.StatusValidating) {
		in := voucher.Inputs{OrderTotal: q.Subtotal, UserID: s.ID}
		if q.ShippingFee != nil {
			in.ShippingFee = *q.ShippingFee
		}
		st = s.Voucher.Revalidate(ctx, in)
		q = pricing.Quote(lines, method, distanceKm, st.Discount())
	}

	s.mu.Lock()
	s.summary = q
	s.mu.Unlock()
	s.Bus.Emit(ctx, events.TopicPricingUpdated, q)
}
