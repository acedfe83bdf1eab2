package voucher_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-gateway/internal/backend"
	"github.com/noah-isme/storefront-gateway/internal/events"
	"github.com/noah-isme/storefront-gateway/internal/pricing"
	"github.com/noah-isme/storefront-gateway/internal/voucher"
)

const (
	testWait = 2 * time.Second
	testTick = 5 * time.Millisecond
)

type stubRemote struct {
	mu      sync.Mutex
	results map[int64]backend.VoucherResult
	err     error
	// gates maps a shipping fee to a channel the call blocks on, to
	// control response arrival order in race tests.
	gates map[int64]chan struct{}
	calls []backend.VoucherValidateRequest
}

func (s *stubRemote) ValidateVoucher(_ context.Context, req backend.VoucherValidateRequest) (backend.VoucherResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	gate := s.gates[req.ShippingFee]
	res, ok := s.results[req.ShippingFee]
	err := s.err
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return backend.VoucherResult{}, err
	}
	if !ok {
		return backend.VoucherResult{Valid: false, Message: "voucher not eligible"}, nil
	}
	return res, nil
}

func newValidator(remote voucher.Remote) *voucher.Validator {
	return &voucher.Validator{Remote: remote, Bus: &events.Bus{}, Logger: zerolog.Nop()}
}

func TestApplyValid(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{results: map[int64]backend.VoucherResult{
		15000: {Valid: true, DiscountValue: 10000, ApplyTo: "ORDER", Message: "ok"},
	}}
	v := newValidator(remote)

	state, err := v.Apply(context.Background(), "SAVE10", voucher.Inputs{OrderTotal: 100000, ShippingFee: 15000, UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, voucher.StatusValid, state.Status)
	require.Equal(t, pricing.Money(10000), state.DiscountValue)
	require.Equal(t, "ORDER", state.ApplyTo)

	d := state.Discount()
	require.True(t, d.Valid)
	require.Equal(t, pricing.Money(10000), d.Value)
}

func TestApplyIneligible(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{results: map[int64]backend.VoucherResult{}}
	v := newValidator(remote)

	state, err := v.Apply(context.Background(), "EXPIRED", voucher.Inputs{OrderTotal: 50000})
	require.NoError(t, err)
	require.Equal(t, voucher.StatusInvalid, state.Status)
	require.Equal(t, "voucher not eligible", state.Message)
	require.False(t, state.Discount().Valid)
}

func TestApplyEmptyCode(t *testing.T) {
	t.Parallel()

	v := newValidator(&stubRemote{})
	_, err := v.Apply(context.Background(), "  ", voucher.Inputs{})
	require.ErrorIs(t, err, voucher.ErrNoCode)
	require.Equal(t, voucher.StatusUnvalidated, v.State().Status)
}

func TestApplyTransportErrorRestoresPriorState(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{err: errors.New("backend down")}
	v := newValidator(remote)

	_, err := v.Apply(context.Background(), "SAVE10", voucher.Inputs{OrderTotal: 100000})
	require.Error(t, err)
	require.Equal(t, voucher.StatusUnvalidated, v.State().Status)
}

func TestLastRequestWins(t *testing.T) {
	t.Parallel()

	// First request (fee 15000) blocks until released; second (fee 21000)
	// completes immediately. The first response arrives last but must be
	// discarded: only the result matching the latest issued inputs applies.
	gate := make(chan struct{})
	remote := &stubRemote{
		results: map[int64]backend.VoucherResult{
			15000: {Valid: true, DiscountValue: 5000, ApplyTo: "ORDER"},
			21000: {Valid: true, DiscountValue: 8000, ApplyTo: "ORDER"},
		},
		gates: map[int64]chan struct{}{15000: gate},
	}
	v := newValidator(remote)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = v.Apply(context.Background(), "SAVE", voucher.Inputs{OrderTotal: 100000, ShippingFee: 15000})
	}()

	// Wait for the first request to be issued before superseding it.
	require.Eventually(t, func() bool {
		remote.mu.Lock()
		defer remote.mu.Unlock()
		return len(remote.calls) == 1
	}, testWait, testTick)

	state, err := v.Apply(context.Background(), "SAVE", voucher.Inputs{OrderTotal: 100000, ShippingFee: 21000})
	require.NoError(t, err)
	require.Equal(t, pricing.Money(8000), state.DiscountValue)

	close(gate)
	<-done

	final := v.State()
	require.Equal(t, voucher.StatusValid, final.Status)
	require.Equal(t, pricing.Money(8000), final.DiscountValue)
	require.Equal(t, pricing.Money(21000), final.Inputs.ShippingFee)
}

func TestRevalidateOnInputChange(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{results: map[int64]backend.VoucherResult{
		15000: {Valid: true, DiscountValue: 5000, ApplyTo: "ORDER"},
		21000: {Valid: true, DiscountValue: 8000, ApplyTo: "ORDER"},
	}}
	v := newValidator(remote)

	_, err := v.Apply(context.Background(), "SAVE", voucher.Inputs{OrderTotal: 100000, ShippingFee: 15000})
	require.NoError(t, err)

	state := v.Revalidate(context.Background(), voucher.Inputs{OrderTotal: 100000, ShippingFee: 21000})
	require.Equal(t, voucher.StatusValid, state.Status)
	require.Equal(t, pricing.Money(8000), state.DiscountValue)
	require.Len(t, remote.calls, 2)
}

func TestRevalidateSameInputsIsNoop(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{results: map[int64]backend.VoucherResult{
		15000: {Valid: true, DiscountValue: 5000, ApplyTo: "ORDER"},
	}}
	v := newValidator(remote)

	in := voucher.Inputs{OrderTotal: 100000, ShippingFee: 15000}
	_, err := v.Apply(context.Background(), "SAVE", in)
	require.NoError(t, err)

	_ = v.Revalidate(context.Background(), in)
	require.Len(t, remote.calls, 1)
}

func TestRevalidateIgnoredWhenUnvalidated(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{}
	v := newValidator(remote)

	state := v.Revalidate(context.Background(), voucher.Inputs{OrderTotal: 100000})
	require.Equal(t, voucher.StatusUnvalidated, state.Status)
	require.Empty(t, remote.calls)
}

func TestRevalidateFailureInvalidates(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{results: map[int64]backend.VoucherResult{
		15000: {Valid: true, DiscountValue: 5000, ApplyTo: "ORDER"},
	}}
	v := newValidator(remote)

	_, err := v.Apply(context.Background(), "SAVE", voucher.Inputs{OrderTotal: 100000, ShippingFee: 15000})
	require.NoError(t, err)

	remote.mu.Lock()
	remote.err = errors.New("backend down")
	remote.mu.Unlock()

	state := v.Revalidate(context.Background(), voucher.Inputs{OrderTotal: 100000, ShippingFee: 21000})
	// A stale discount must never survive an input change.
	require.Equal(t, voucher.StatusInvalid, state.Status)
	require.False(t, state.Discount().Valid)
}

func TestRemoveClearsState(t *testing.T) {
	t.Parallel()

	remote := &stubRemote{results: map[int64]backend.VoucherResult{
		15000: {Valid: true, DiscountValue: 5000, ApplyTo: "ORDER"},
	}}
	v := newValidator(remote)

	_, err := v.Apply(context.Background(), "SAVE", voucher.Inputs{OrderTotal: 100000, ShippingFee: 15000})
	require.NoError(t, err)

	v.Remove(context.Background())
	state := v.State()
	require.Equal(t, voucher.StatusUnvalidated, state.Status)
	require.Zero(t, state.DiscountValue)
}
