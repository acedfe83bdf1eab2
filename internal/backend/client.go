package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// SessionHeader carries the opaque guest/user session identifier.
const SessionHeader = "X-Session-Id"

// ErrRemote is returned when the backend answers with a non-success envelope
// or a non-2xx status.
var ErrRemote = errors.New("backend: remote call failed")

// Client talks to the commerce backend. All responses use the
// {success, result} envelope; a false success or an HTTP error surfaces as
// ErrRemote with the reported message attached.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Message string          `json:"message"`
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, sessionID, method, path string, body any, out any) error {
	if c == nil || strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("backend: client not configured")
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Success {
		msg := strings.TrimSpace(env.Message)
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("%w: %s", ErrRemote, msg)
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("backend: decode result %s %s: %w", method, path, err)
		}
	}
	return nil
}

// ForSession binds the client to one session identity.
func (c *Client) ForSession(sessionID string) *SessionClient {
	return &SessionClient{client: c, sessionID: sessionID}
}

// SessionClient issues backend calls on behalf of a single session.
type SessionClient struct {
	client    *Client
	sessionID string
}

// FetchCart loads the authoritative cart.
func (s *SessionClient) FetchCart(ctx context.Context) (CartResult, error) {
	var out CartResult
	err := s.client.do(ctx, s.sessionID, http.MethodGet, "/cart", nil, &out)
	return out, err
}

// UpdateItemQuantity commits a settled quantity for one cart line.
func (s *SessionClient) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	body := map[string]int{"quantity": quantity}
	return s.client.do(ctx, s.sessionID, http.MethodPut, "/cart/items/"+url.PathEscape(itemID), body, nil)
}

// UpdateItemSelection commits a selection toggle for one cart line.
func (s *SessionClient) UpdateItemSelection(ctx context.Context, itemID string, selected bool) error {
	body := map[string]bool{"selected": selected}
	return s.client.do(ctx, s.sessionID, http.MethodPut, "/cart/items/"+url.PathEscape(itemID)+"/select", body, nil)
}

// SelectAll commits a select-all toggle.
func (s *SessionClient) SelectAll(ctx context.Context, selected bool) error {
	body := map[string]bool{"selected": selected}
	return s.client.do(ctx, s.sessionID, http.MethodPut, "/cart/select-all", body, nil)
}

// RemoveItem deletes one cart line.
func (s *SessionClient) RemoveItem(ctx context.Context, itemID string) error {
	return s.client.do(ctx, s.sessionID, http.MethodDelete, "/cart/items/"+url.PathEscape(itemID), nil, nil)
}

// ClearCart empties the cart.
func (s *SessionClient) ClearCart(ctx context.Context) error {
	return s.client.do(ctx, s.sessionID, http.MethodDelete, "/cart/clear", nil, nil)
}

// ValidateVoucher checks a voucher code against the provided totals.
func (s *SessionClient) ValidateVoucher(ctx context.Context, req VoucherValidateRequest) (VoucherResult, error) {
	var out VoucherResult
	err := s.client.do(ctx, s.sessionID, http.MethodPost, "/vouchers/validate", req, &out)
	return out, err
}

// Checkout submits the order.
func (s *SessionClient) Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResult, error) {
	var out CheckoutResult
	err := s.client.do(ctx, s.sessionID, http.MethodPost, "/checkout", req, &out)
	return out, err
}

// Value fetches a key from the backend configuration service, satisfying
// confcache.Source.
func (c *Client) Value(ctx context.Context, key string) (string, error) {
	var out struct {
		Value string `json:"value"`
	}
	if err := c.do(ctx, "", http.MethodGet, "/config/"+url.PathEscape(key), nil, &out); err != nil {
		return "", err
	}
	return out.Value, nil
}
