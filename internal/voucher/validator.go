package voucher

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-gateway/internal/backend"
	"github.com/noah-isme/storefront-gateway/internal/events"
	"github.com/noah-isme/storefront-gateway/internal/obs"
	"github.com/noah-isme/storefront-gateway/internal/pricing"
)

// ErrNoCode is returned when Apply is called with an empty code.
var ErrNoCode = errors.New("voucher: code is required")

// Status is the validation state of the applied voucher code.
type Status string

const (
	// StatusUnvalidated means no code is applied.
	StatusUnvalidated Status = "unvalidated"
	// StatusValidating means a validation request is outstanding.
	StatusValidating Status = "validating"
	// StatusValid means the code was accepted for the current inputs.
	StatusValid Status = "valid"
	// StatusInvalid means the code was rejected or validation failed.
	StatusInvalid Status = "invalid"
)

// Inputs is the pricing context a validation request is issued against.
type Inputs struct {
	OrderTotal  pricing.Money
	ShippingFee pricing.Money
	UserID      string
}

// State is the externally visible voucher state. A Valid state always
// carries the discount consistent with the inputs it was validated against.
type State struct {
	Status        Status        `json:"status"`
	Code          string        `json:"code,omitempty"`
	DiscountValue pricing.Money `json:"discountValue"`
	ApplyTo       string        `json:"applyTo,omitempty"`
	Message       string        `json:"message,omitempty"`
	Inputs        Inputs        `json:"-"`
}

// Discount converts the state into a pricing discount.
func (s State) Discount() pricing.Discount {
	if s.Status != StatusValid {
		return pricing.Discount{}
	}
	return pricing.Discount{Valid: true, Value: s.DiscountValue, ApplyTo: s.ApplyTo}
}

// Remote issues validation calls against the voucher collaborator.
type Remote interface {
	ValidateVoucher(ctx context.Context, req backend.VoucherValidateRequest) (backend.VoucherResult, error)
}

// Validator owns the voucher state machine for one session. Every outgoing
// validation carries a generation number; only the response matching the
// most recently issued request may be applied (last-request-wins), so
// responses for superseded inputs are discarded on arrival.
type Validator struct {
	Remote Remote
	Bus    *events.Bus
	Logger zerolog.Logger

	mu    sync.Mutex
	gen   uint64
	state State
}

// State returns the current voucher state.
func (v *Validator) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Apply validates the code against the provided inputs. An ineligible code
// lands in StatusInvalid with the collaborator's message; a transport
// failure restores the prior state and surfaces the error to the caller.
func (v *Validator) Apply(ctx context.Context, code string, in Inputs) (State, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return v.State(), ErrNoCode
	}

	v.mu.Lock()
	prior := v.state
	v.gen++
	gen := v.gen
	v.state = State{Status: StatusValidating, Code: code, Inputs: in}
	v.mu.Unlock()
	v.Bus.Emit(ctx, events.TopicVoucherUpdated, v.State())

	res, err := v.Remote.ValidateVoucher(ctx, backend.VoucherValidateRequest{
		VoucherCode: code,
		OrderTotal:  in.OrderTotal,
		ShippingFee: in.ShippingFee,
		UserID:      in.UserID,
	})

	v.mu.Lock()
	if gen != v.gen {
		state := v.state
		v.mu.Unlock()
		obs.StaleResponsesTotal.WithLabelValues("voucher").Inc()
		return state, nil
	}
	if err != nil {
		v.state = prior
		v.mu.Unlock()
		obs.VoucherValidationsTotal.WithLabelValues("error").Inc()
		v.Logger.Warn().Err(err).Str("code", code).Msg("voucher validation failed")
		v.Bus.Emit(ctx, events.TopicVoucherUpdated, prior)
		return prior, err
	}
	state := resultState(code, in, res)
	v.state = state
	v.mu.Unlock()
	if state.Status == StatusValid {
		obs.VoucherValidationsTotal.WithLabelValues("valid").Inc()
	} else {
		obs.VoucherValidationsTotal.WithLabelValues("invalid").Inc()
	}
	v.Bus.Emit(ctx, events.TopicVoucherUpdated, state)
	return state, nil
}

// Revalidate re-runs validation with new inputs. It only acts while a code
// is applied (Valid, or Validating from a previous trigger); a failure or
// an ineligible verdict lands in StatusInvalid rather than keeping a stale
// discount against the new totals.
func (v *Validator) Revalidate(ctx context.Context, in Inputs) State {
	v.mu.Lock()
	if v.state.Status != StatusValid && v.state.Status != StatusValidating {
		state := v.state
		v.mu.Unlock()
		return state
	}
	if v.state.Status == StatusValid && v.state.Inputs == in {
		state := v.state
		v.mu.Unlock()
		return state
	}
	code := v.state.Code
	v.gen++
	gen := v.gen
	v.state = State{Status: StatusValidating, Code: code, Inputs: in}
	v.mu.Unlock()
	v.Bus.Emit(ctx, events.TopicVoucherUpdated, v.State())

	res, err := v.Remote.ValidateVoucher(ctx, backend.VoucherValidateRequest{
		VoucherCode: code,
		OrderTotal:  in.OrderTotal,
		ShippingFee: in.ShippingFee,
		UserID:      in.UserID,
	})

	v.mu.Lock()
	if gen != v.gen {
		state := v.state
		v.mu.Unlock()
		obs.StaleResponsesTotal.WithLabelValues("voucher").Inc()
		return state
	}
	var state State
	if err != nil {
		state = State{
			Status:  StatusInvalid,
			Code:    code,
			Message: "voucher could not be re-validated",
			Inputs:  in,
		}
		obs.VoucherValidationsTotal.WithLabelValues("error").Inc()
		v.Logger.Warn().Err(err).Str("code", code).Msg("voucher re-validation failed")
	} else {
		state = resultState(code, in, res)
		if state.Status == StatusValid {
			obs.VoucherValidationsTotal.WithLabelValues("valid").Inc()
		} else {
			obs.VoucherValidationsTotal.WithLabelValues("invalid").Inc()
		}
	}
	v.state = state
	v.mu.Unlock()
	v.Bus.Emit(ctx, events.TopicVoucherUpdated, state)
	return state
}

// Remove clears the applied voucher and cancels any outstanding validation.
func (v *Validator) Remove(ctx context.Context) {
	v.mu.Lock()
	v.gen++
	v.state = State{Status: StatusUnvalidated}
	v.mu.Unlock()
	v.Bus.Emit(ctx, events.TopicVoucherUpdated, v.State())
}

func resultState(code string, in Inputs, res backend.VoucherResult) State {
	if !res.Valid {
		return State{Status: StatusInvalid, Code: code, Message: res.Message, Inputs: in}
	}
	discount := res.DiscountValue
	if discount < 0 {
		discount = 0
	}
	return State{
		Status:        StatusValid,
		Code:          code,
		DiscountValue: discount,
		ApplyTo:       res.ApplyTo,
		Message:       res.Message,
		Inputs:        in,
	}
}
