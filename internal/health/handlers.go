package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingBackend(ctx context.Context, timeout time.Duration) error
	PingGeo(ctx context.Context, timeout time.Duration) error
}

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady flips the readiness gate. Shutdown sets it to false so load
// balancers drain the instance before the listener closes.
func SetReady(v bool) { ready.Store(v) }

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker        Checker
	BackendTimeout time.Duration
	GeoTimeout     time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready reports readiness based on dependency probes and the shutdown gate.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}
	ctx := r.Context()
	backendStatus := "ok"
	if err := h.Checker.PingBackend(ctx, h.backendTimeout()); err != nil {
		backendStatus = err.Error()
	}
	geoStatus := "ok"
	if err := h.Checker.PingGeo(ctx, h.geoTimeout()); err != nil {
		geoStatus = err.Error()
	}
	status := map[string]string{
		"backend": backendStatus,
		"geo":     geoStatus,
	}
	w.Header().Set("Content-Type", "application/json")
	if backendStatus != "ok" || geoStatus != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) backendTimeout() time.Duration {
	if h.BackendTimeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.BackendTimeout
}

func (h Handler) geoTimeout() time.Duration {
	if h.GeoTimeout <= 0 {
		return 300 * time.Millisecond
	}
	return h.GeoTimeout
}

// HTTPChecker probes upstream base URLs with lightweight GET requests.
type HTTPChecker struct {
	BackendURL string
	GeoURL     string
	Client     *http.Client
}

func (c HTTPChecker) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}

// PingBackend probes the commerce backend.
func (c HTTPChecker) PingBackend(ctx context.Context, timeout time.Duration) error {
	return c.ping(ctx, c.BackendURL, timeout)
}

// PingGeo probes the geocoding provider.
func (c HTTPChecker) PingGeo(ctx context.Context, timeout time.Duration) error {
	return c.ping(ctx, c.GeoURL, timeout)
}

func (c HTTPChecker) ping(ctx context.Context, baseURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}
