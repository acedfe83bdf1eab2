package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-gateway/internal/backend"
)

func TestFetchCartDecodesEnvelope(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/cart", r.URL.Path)
		require.Equal(t, "sess-1", r.Header.Get(backend.SessionHeader))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"result": map[string]any{
				"items": []map[string]any{
					{"id": "i1", "kind": "PRODUCT", "price": 50000, "quantity": 2, "isSelected": true, "amount": 100000},
				},
				"summary": map[string]any{"totalItems": 1, "selectedItems": 1, "totalAmount": 100000, "selectedAmount": 100000, "totalQuantity": 2, "selectedQuantity": 2},
			},
		})
	}))
	defer srv.Close()

	client := &backend.Client{BaseURL: srv.URL}
	cart, err := client.ForSession("sess-1").FetchCart(context.Background())
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, "i1", cart.Items[0].ID)
	require.Equal(t, int64(100000), cart.Summary.SelectedAmount)
}

func TestUpdateItemQuantitySendsBody(t *testing.T) {
	t.Parallel()

	var gotQty int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/cart/items/i1", r.URL.Path)
		var body struct {
			Quantity int `json:"quantity"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotQty = body.Quantity
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	client := &backend.Client{BaseURL: srv.URL}
	err := client.ForSession("sess-1").UpdateItemQuantity(context.Background(), "i1", 4)
	require.NoError(t, err)
	require.Equal(t, 4, gotQty)
}

func TestUnsuccessfulEnvelopeSurfacesErrRemote(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "quantity out of stock"})
	}))
	defer srv.Close()

	client := &backend.Client{BaseURL: srv.URL}
	err := client.ForSession("sess-1").UpdateItemQuantity(context.Background(), "i1", 99)
	require.ErrorIs(t, err, backend.ErrRemote)
	require.Contains(t, err.Error(), "quantity out of stock")
}

func TestValidateVoucherRoundTrip(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vouchers/validate", r.URL.Path)
		var req backend.VoucherValidateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, int64(100000), req.OrderTotal)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"result":  map[string]any{"valid": true, "discountValue": 10000, "applyTo": "ORDER", "message": "ok"},
		})
	}))
	defer srv.Close()

	client := &backend.Client{BaseURL: srv.URL}
	res, err := client.ForSession("s").ValidateVoucher(context.Background(), backend.VoucherValidateRequest{
		VoucherCode: "SAVE10", OrderTotal: 100000, ShippingFee: 15000, UserID: "u1",
	})
	require.NoError(t, err)
	require.True(t, res.Valid)
	require.Equal(t, int64(10000), res.DiscountValue)
}

func TestConfigValue(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/config/store.origin", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "result": map[string]any{"value": "10.776,106.700"}})
	}))
	defer srv.Close()

	client := &backend.Client{BaseURL: srv.URL}
	v, err := client.Value(context.Background(), "store.origin")
	require.NoError(t, err)
	require.Equal(t, "10.776,106.700", v)
}
