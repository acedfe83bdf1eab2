package cart

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-gateway/internal/backend"
	"github.com/noah-isme/storefront-gateway/internal/events"
	"github.com/noah-isme/storefront-gateway/internal/obs"
	"github.com/noah-isme/storefront-gateway/internal/pricing"
)

// ErrNotFound indicates the item does not exist in the local cart.
var ErrNotFound = errors.New("cart: item not found")

// ErrInvalidQuantity is returned when a quantity below 1 is requested.
var ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")

// Remote is the slice of the backend the coordinator commits through.
type Remote interface {
	FetchCart(ctx context.Context) (backend.CartResult, error)
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error
	UpdateItemSelection(ctx context.Context, itemID string, selected bool) error
	SelectAll(ctx context.Context, selected bool) error
	RemoveItem(ctx context.Context, itemID string) error
	ClearCart(ctx context.Context) error
}

// Canceler stops a scheduled commit. time.Timer satisfies it.
type Canceler interface {
	Stop() bool
}

// CommitFailure is published on the bus when a backend commit fails and the
// local cart has been re-synchronised from the authoritative state.
type CommitFailure struct {
	Op     string
	ItemID string
	Err    error
}

// Coordinator owns the session cart. Edits mutate local state immediately
// (optimistic update) and are confirmed by backend commits; quantity edits
// are debounced per item so a burst of stepper clicks produces exactly one
// network commit carrying the last settled value. A failed commit is never
// patched over: the authoritative cart is refetched and replaces local
// state wholesale.
type Coordinator struct {
	Remote Remote
	// Window is the quantity debounce window. Edits to the same item within
	// the window cancel and replace the pending commit.
	Window time.Duration
	// Schedule defers a commit; tests inject a manual scheduler. Defaults
	// to time.AfterFunc.
	Schedule func(d time.Duration, fn func()) Canceler
	Bus      *events.Bus
	Logger   zerolog.Logger

	mu      sync.Mutex
	items   []Item
	summary Summary
	pending map[string]*pendingCommit
	entries map[string]string
}

type pendingCommit struct {
	qty   int
	timer Canceler
}

func (c *Coordinator) window() time.Duration {
	if c.Window <= 0 {
		return 400 * time.Millisecond
	}
	return c.Window
}

func (c *Coordinator) schedule(d time.Duration, fn func()) Canceler {
	if c.Schedule != nil {
		return c.Schedule(d, fn)
	}
	return time.AfterFunc(d, fn)
}

// Snapshot returns a copy of the current cart with in-flight markers.
func (c *Coordinator) Snapshot() Cart {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]Item, len(c.items))
	copy(items, c.items)
	for i := range items {
		if _, ok := c.pending[items[i].ID]; ok {
			items[i].InFlight = true
		}
	}
	return Cart{Items: items, Summary: c.summary}
}

// Refresh replaces local state with the authoritative backend cart. Pending
// debounced commits survive: they still carry the user's last settled values.
func (c *Coordinator) Refresh(ctx context.Context) error {
	res, err := c.Remote.FetchCart(ctx)
	if err != nil {
		c.Logger.Error().Err(err).Msg("cart refetch failed")
		return err
	}
	c.mu.Lock()
	c.items = fromBackend(res)
	c.summary = Summarize(c.items)
	c.mu.Unlock()
	c.Bus.Emit(ctx, events.TopicCartUpdated, c.Snapshot())
	return nil
}

// SetQuantity applies an optimistic quantity edit and schedules its commit.
// Values below 1 are rejected without mutating anything.
func (c *Coordinator) SetQuantity(ctx context.Context, itemID string, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	c.mu.Lock()
	idx := c.indexOf(itemID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrNotFound
	}
	c.items[idx].Qty = qty
	c.items[idx].Amount = pricing.Money(qty) * c.items[idx].UnitPrice
	c.summary = Summarize(c.items)

	if c.pending == nil {
		c.pending = make(map[string]*pendingCommit)
	}
	if old, ok := c.pending[itemID]; ok {
		old.timer.Stop()
		obs.CartEditsCoalescedTotal.Inc()
	}
	p := &pendingCommit{qty: qty}
	commitCtx := context.WithoutCancel(ctx)
	p.timer = c.schedule(c.window(), func() { c.flush(commitCtx, itemID, p) })
	c.pending[itemID] = p
	c.mu.Unlock()

	c.Bus.Emit(ctx, events.TopicCartUpdated, c.Snapshot())
	return nil
}

// flush commits the settled quantity for one item. A pending entry that has
// been replaced since scheduling is skipped: its successor carries the newer
// value.
func (c *Coordinator) flush(ctx context.Context, itemID string, p *pendingCommit) {
	c.mu.Lock()
	if c.pending[itemID] != p {
		c.mu.Unlock()
		return
	}
	delete(c.pending, itemID)
	c.mu.Unlock()

	if err := c.Remote.UpdateItemQuantity(ctx, itemID, p.qty); err != nil {
		obs.CartCommitsTotal.WithLabelValues("quantity", "error").Inc()
		c.fail(ctx, "quantity", itemID, err)
		return
	}
	obs.CartCommitsTotal.WithLabelValues("quantity", "ok").Inc()
	c.Bus.Emit(ctx, events.TopicCartUpdated, c.Snapshot())
}

// FlushPending commits every pending quantity immediately. Checkout calls
// this so the order is created against settled values.
func (c *Coordinator) FlushPending(ctx context.Context) {
	c.mu.Lock()
	pending := make(map[string]*pendingCommit, len(c.pending))
	for id, p := range c.pending {
		p.timer.Stop()
		pending[id] = p
	}
	c.mu.Unlock()
	for id, p := range pending {
		c.flush(context.WithoutCancel(ctx), id, p)
	}
}

// ToggleSelection commits a selection change. Selection is an infrequent
// discrete action, so it is committed immediately rather than debounced.
func (c *Coordinator) ToggleSelection(ctx context.Context, itemID string, selected bool) error {
	c.mu.Lock()
	idx := c.indexOf(itemID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrNotFound
	}
	c.items[idx].Selected = selected
	c.summary = Summarize(c.items)
	c.mu.Unlock()
	c.Bus.Emit(ctx, events.TopicCartUpdated, c.Snapshot())

	if err := c.Remote.UpdateItemSelection(ctx, itemID, selected); err != nil {
		obs.CartCommitsTotal.WithLabelValues("select", "error").Inc()
		c.fail(ctx, "select", itemID, err)
		return err
	}
	obs.CartCommitsTotal.WithLabelValues("select", "ok").Inc()
	return nil
}

// SelectAll toggles every line's selection.
func (c *Coordinator) SelectAll(ctx context.Context, selected bool) error {
	c.mu.Lock()
	for i := range c.items {
		c.items[i].Selected = selected
	}
	c.summary = Summarize(c.items)
	c.mu.Unlock()
	c.Bus.Emit(ctx, events.TopicCartUpdated, c.Snapshot())

	if err := c.Remote.SelectAll(ctx, selected); err != nil {
		obs.CartCommitsTotal.WithLabelValues("select_all", "error").Inc()
		c.fail(ctx, "select_all", "", err)
		return err
	}
	obs.CartCommitsTotal.WithLabelValues("select_all", "ok").Inc()
	return nil
}

// RemoveItem deletes a line optimistically and confirms with the backend.
func (c *Coordinator) RemoveItem(ctx context.Context, itemID string) error {
	c.mu.Lock()
	idx := c.indexOf(itemID)
	if idx < 0 {
		c.mu.Unlock()
		return ErrNotFound
	}
	if p, ok := c.pending[itemID]; ok {
		p.timer.Stop()
		delete(c.pending, itemID)
	}
	delete(c.entries, itemID)
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	c.summary = Summarize(c.items)
	c.mu.Unlock()
	c.Bus.Emit(ctx, events.TopicCartUpdated, c.Snapshot())

	if err := c.Remote.RemoveItem(ctx, itemID); err != nil {
		obs.CartCommitsTotal.WithLabelValues("remove", "error").Inc()
		c.fail(ctx, "remove", itemID, err)
		return err
	}
	obs.CartCommitsTotal.WithLabelValues("remove", "ok").Inc()
	return nil
}

// ClearCart empties the cart optimistically and confirms with the backend.
func (c *Coordinator) ClearCart(ctx context.Context) error {
	c.mu.Lock()
	for _, p := range c.pending {
		p.timer.Stop()
	}
	c.pending = nil
	c.entries = nil
	c.items = nil
	c.summary = Summary{}
	c.mu.Unlock()
	c.Bus.Emit(ctx, events.TopicCartUpdated, c.Snapshot())

	if err := c.Remote.ClearCart(ctx); err != nil {
		obs.CartCommitsTotal.WithLabelValues("clear", "error").Inc()
		c.fail(ctx, "clear", "", err)
		return err
	}
	obs.CartCommitsTotal.WithLabelValues("clear", "ok").Inc()
	return nil
}

// SetEntryText records a transient quantity entry for an item. Keystrokes
// only touch this display value; nothing is committed or re-priced until
// the entry is confirmed.
func (c *Coordinator) SetEntryText(itemID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexOf(itemID) < 0 {
		return ErrNotFound
	}
	if c.entries == nil {
		c.entries = make(map[string]string)
	}
	c.entries[itemID] = text
	return nil
}

// EntryText returns the transient entry for an item, if any.
func (c *Coordinator) EntryText(itemID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.entries[itemID]
	return text, ok
}

// CommitEntry confirms a transient entry. Empty, malformed or sub-1 values
// coerce to 1 at commit time; the settled value then follows the normal
// debounced quantity path.
func (c *Coordinator) CommitEntry(ctx context.Context, itemID string) error {
	c.mu.Lock()
	text, ok := c.entries[itemID]
	delete(c.entries, itemID)
	c.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	qty, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || qty < 1 {
		qty = 1
	}
	return c.SetQuantity(ctx, itemID, qty)
}

// fail reports a failed commit and re-synchronises from the backend. Local
// optimistic state is never trusted after a failed commit.
func (c *Coordinator) fail(ctx context.Context, op, itemID string, err error) {
	c.Logger.Warn().Err(err).Str("op", op).Str("item_id", itemID).Msg("cart commit failed")
	c.Bus.Emit(ctx, events.TopicCartCommitFailed, CommitFailure{Op: op, ItemID: itemID, Err: err})
	obs.CartRefetchTotal.Inc()
	_ = c.Refresh(ctx)
}

func (c *Coordinator) indexOf(itemID string) int {
	for i := range c.items {
		if c.items[i].ID == itemID {
			return i
		}
	}
	return -1
}
