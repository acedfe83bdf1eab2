package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Client consumes the hosted geocoding/routing provider over HTTP. Only the
// response shapes the gateway depends on are decoded; everything else is
// ignored.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if c == nil || strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("geo: client not configured")
	}
	if c.APIKey != "" {
		query.Set("api_key", c.APIKey)
	}
	u := strings.TrimRight(c.BaseURL, "/") + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("geo: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("geo: %s: %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("geo: decode %s: %w", path, err)
	}
	return nil
}

// Geocode resolves free text via GET .../geocode?address=..
func (c *Client) Geocode(ctx context.Context, address string) (Location, error) {
	var out struct {
		Results []struct {
			Geometry struct {
				Location Location `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	q := url.Values{}
	q.Set("address", address)
	if err := c.get(ctx, "/geocode", q, &out); err != nil {
		return Location{}, err
	}
	if len(out.Results) == 0 {
		return Location{}, ErrNoMatch
	}
	return out.Results[0].Geometry.Location, nil
}

// ReverseGeocode resolves coordinates via GET .../Geocode?latlng=..
func (c *Client) ReverseGeocode(ctx context.Context, loc Location) (string, error) {
	var out struct {
		Results []struct {
			FormattedAddress string `json:"formatted_address"`
		} `json:"results"`
	}
	q := url.Values{}
	q.Set("latlng", fmt.Sprintf("%f,%f", loc.Lat, loc.Lng))
	if err := c.get(ctx, "/Geocode", q, &out); err != nil {
		return "", err
	}
	if len(out.Results) == 0 || strings.TrimSpace(out.Results[0].FormattedAddress) == "" {
		return "", ErrNoMatch
	}
	return out.Results[0].FormattedAddress, nil
}

// Direction requests a route via GET .../Direction?origin=..&destination=..
func (c *Client) Direction(ctx context.Context, origin, dest Location) (Leg, error) {
	var out struct {
		Routes []struct {
			Legs []struct {
				Distance struct {
					Value int `json:"value"`
				} `json:"distance"`
				Duration struct {
					Value int `json:"value"`
				} `json:"duration"`
			} `json:"legs"`
			OverviewPolyline struct {
				Points string `json:"points"`
			} `json:"overview_polyline"`
		} `json:"routes"`
	}
	q := url.Values{}
	q.Set("origin", fmt.Sprintf("%f,%f", origin.Lat, origin.Lng))
	q.Set("destination", fmt.Sprintf("%f,%f", dest.Lat, dest.Lng))
	q.Set("vehicle", "bike")
	if err := c.get(ctx, "/Direction", q, &out); err != nil {
		return Leg{}, err
	}
	if len(out.Routes) == 0 || len(out.Routes[0].Legs) == 0 {
		return Leg{}, ErrNoMatch
	}
	route := out.Routes[0]
	return Leg{
		DistanceMeters:  route.Legs[0].Distance.Value,
		DurationSeconds: route.Legs[0].Duration.Value,
		EncodedPath:     route.OverviewPolyline.Points,
	}, nil
}
