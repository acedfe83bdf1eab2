package geo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-gateway/internal/geo"
)

func TestClientGeocode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/geocode", r.URL.Path)
		require.Equal(t, "12 Mango St", r.URL.Query().Get("address"))
		require.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"geometry": map[string]any{"location": map[string]any{"lat": 10.5, "lng": 106.5}}},
			},
		})
	}))
	defer srv.Close()

	client := &geo.Client{BaseURL: srv.URL, APIKey: "test-key"}
	loc, err := client.Geocode(context.Background(), "12 Mango St")
	require.NoError(t, err)
	require.Equal(t, geo.Location{Lat: 10.5, Lng: 106.5}, loc)
}

func TestClientGeocodeNoMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	}))
	defer srv.Close()

	client := &geo.Client{BaseURL: srv.URL}
	_, err := client.Geocode(context.Background(), "nowhere")
	require.ErrorIs(t, err, geo.ErrNoMatch)
}

func TestClientReverseGeocode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Geocode", r.URL.Path)
		require.NotEmpty(t, r.URL.Query().Get("latlng"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"formatted_address": "12 Mango St, District 1"}},
		})
	}))
	defer srv.Close()

	client := &geo.Client{BaseURL: srv.URL}
	addr, err := client.ReverseGeocode(context.Background(), geo.Location{Lat: 10.5, Lng: 106.5})
	require.NoError(t, err)
	require.Equal(t, "12 Mango St, District 1", addr)
}

func TestClientDirection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Direction", r.URL.Path)
		require.NotEmpty(t, r.URL.Query().Get("origin"))
		require.NotEmpty(t, r.URL.Query().Get("destination"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"routes": []map[string]any{{
				"legs": []map[string]any{{
					"distance": map[string]any{"value": 6000},
					"duration": map[string]any{"value": 900},
				}},
				"overview_polyline": map[string]any{"points": "_p~iF~ps|U"},
			}},
		})
	}))
	defer srv.Close()

	client := &geo.Client{BaseURL: srv.URL}
	leg, err := client.Direction(context.Background(), geo.Location{Lat: 1, Lng: 1}, geo.Location{Lat: 2, Lng: 2})
	require.NoError(t, err)
	require.Equal(t, 6000, leg.DistanceMeters)
	require.Equal(t, 900, leg.DurationSeconds)
	require.Equal(t, "_p~iF~ps|U", leg.EncodedPath)
}

func TestClientDirectionHTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := &geo.Client{BaseURL: srv.URL}
	_, err := client.Direction(context.Background(), geo.Location{}, geo.Location{})
	require.Error(t, err)
}
