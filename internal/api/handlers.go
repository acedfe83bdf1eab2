package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-gateway/internal/backend"
	"github.com/noah-isme/storefront-gateway/internal/cart"
	"github.com/noah-isme/storefront-gateway/internal/checkout"
	"github.com/noah-isme/storefront-gateway/internal/common"
	"github.com/noah-isme/storefront-gateway/internal/geo"
	"github.com/noah-isme/storefront-gateway/internal/pricing"
	"github.com/noah-isme/storefront-gateway/internal/session"
	"github.com/noah-isme/storefront-gateway/internal/voucher"
)

// Handler exposes the session-scoped storefront endpoints.
type Handler struct {
	Sessions *session.Registry
}

// Routes mounts the v1 surface. Every route runs behind the session
// middleware, so handlers can assume a loaded session.
func (h *Handler) Routes(r chi.Router) {
	r.Use(WithSession(h.Sessions))

	r.Get("/cart", h.Cart)
	r.Delete("/cart", h.ClearCart)
	r.Put("/cart/select-all", h.SelectAll)
	r.Put("/cart/items/{itemID}", h.SetQuantity)
	r.Delete("/cart/items/{itemID}", h.RemoveItem)
	r.Put("/cart/items/{itemID}/select", h.ToggleSelection)
	r.Put("/cart/items/{itemID}/entry", h.SetEntry)
	r.Post("/cart/items/{itemID}/entry/commit", h.CommitEntry)

	r.Put("/fulfillment", h.SetFulfillment)
	r.Put("/address", h.SetAddress)
	r.Post("/address/pin", h.ResolvePin)
	r.Get("/route", h.Route)

	r.Post("/voucher", h.ApplyVoucher)
	r.Delete("/voucher", h.RemoveVoucher)

	r.Get("/pricing", h.Pricing)
	r.Post("/checkout", h.Checkout)
}

// Cart handles GET /cart.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	common.JSON(w, http.StatusOK, map[string]any{"data": s.Cart.Snapshot()})
}

// SetQuantity handles PUT /cart/items/{itemID}.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := s.Cart.SetQuantity(r.Context(), chi.URLParam(r, "itemID"), body.Quantity); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s.Cart.Snapshot()})
}

// ToggleSelection handles PUT /cart/items/{itemID}/select.
func (h *Handler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	var body struct {
		Selected bool `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := s.Cart.ToggleSelection(r.Context(), chi.URLParam(r, "itemID"), body.Selected); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s.Cart.Snapshot()})
}

// SelectAll handles PUT /cart/select-all.
func (h *Handler) SelectAll(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	var body struct {
		Selected bool `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := s.Cart.SelectAll(r.Context(), body.Selected); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s.Cart.Snapshot()})
}

// RemoveItem handles DELETE /cart/items/{itemID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if err := s.Cart.RemoveItem(r.Context(), chi.URLParam(r, "itemID")); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s.Cart.Snapshot()})
}

// ClearCart handles DELETE /cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if err := s.Cart.ClearCart(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s.Cart.Snapshot()})
}

// SetEntry handles PUT /cart/items/{itemID}/entry. The raw text is held
// without repricing until the commit endpoint confirms it.
func (h *Handler) SetEntry(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := s.Cart.SetEntryText(chi.URLParam(r, "itemID"), body.Text); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CommitEntry handles POST /cart/items/{itemID}/entry/commit.
func (h *Handler) CommitEntry(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	if err := s.Cart.CommitEntry(r.Context(), chi.URLParam(r, "itemID")); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s.Cart.Snapshot()})
}

// SetFulfillment handles PUT /fulfillment.
func (h *Handler) SetFulfillment(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	var body struct {
		Method pricing.Fulfillment `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if err := s.SetFulfillment(r.Context(), body.Method); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s.Snapshot()})
}

// SetAddress handles PUT /address. Geocoding failure keeps the previous
// address; route failure keeps the address with the fee unknown.
func (h *Handler) SetAddress(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	var body struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if _, err := s.Address.SetAddress(r.Context(), body.Address); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s.Snapshot()})
}

// ResolvePin handles POST /address/pin: a dropped map pin reverse-geocodes
// to an address and reroutes.
func (h *Handler) ResolvePin(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	var body struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	if _, err := s.Address.ResolvePin(r.Context(), geo.Location{Lat: body.Lat, Lng: body.Lng}); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": s.Snapshot()})
}

// Route handles GET /route.
func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"address": s.Address.Address(),
		"route":   s.Address.Route(),
	}})
}

// ApplyVoucher handles POST /voucher.
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	state, err := s.ApplyVoucher(r.Context(), body.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"voucher": state,
		"pricing": s.Quote(),
	}})
}

// RemoveVoucher handles DELETE /voucher.
func (h *Handler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	s.RemoveVoucher(r.Context())
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"voucher": s.Voucher.State(),
		"pricing": s.Quote(),
	}})
}

// Pricing handles GET /pricing.
func (h *Handler) Pricing(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	common.JSON(w, http.StatusOK, map[string]any{"data": s.Snapshot()})
}

// Checkout handles POST /checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	var in checkout.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body", nil)
		return
	}
	out, err := s.Submit(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		common.JSONError(w, status, appErr.Code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "item not found", nil)
	case errors.Is(err, cart.ErrInvalidQuantity):
		common.JSONError(w, http.StatusBadRequest, "INVALID_QUANTITY", "quantity must be at least 1", nil)
	case errors.Is(err, session.ErrInvalidFulfillment):
		common.JSONError(w, http.StatusBadRequest, "INVALID_FULFILLMENT", "fulfillment must be pickup or delivery", nil)
	case errors.Is(err, voucher.ErrNoCode):
		common.JSONError(w, http.StatusBadRequest, "VOUCHER_CODE_REQUIRED", "voucher code is required", nil)
	case errors.Is(err, checkout.ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error(), nil)
	case errors.Is(err, checkout.ErrEmptySelection):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_SELECTION", "no items selected", nil)
	case errors.Is(err, checkout.ErrAddressRequired):
		common.JSONError(w, http.StatusUnprocessableEntity, "ADDRESS_REQUIRED", "delivery address required", nil)
	case errors.Is(err, checkout.ErrRouteUnavailable):
		common.JSONError(w, http.StatusUnprocessableEntity, "ROUTE_UNAVAILABLE", "shipping fee is not computable yet", nil)
	case errors.Is(err, geo.ErrNoMatch):
		common.JSONError(w, http.StatusUnprocessableEntity, "ADDRESS_NOT_FOUND", "address could not be resolved", nil)
	case errors.Is(err, backend.ErrRemote):
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM", "backend request failed", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
