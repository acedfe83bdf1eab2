package geo

import (
	"context"
	"errors"
)

// ErrNoMatch is returned when the provider cannot resolve the input.
var ErrNoMatch = errors.New("geo: no match")

// Location is a latitude/longitude pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Leg is the raw routing result for one origin/destination pair.
type Leg struct {
	DistanceMeters  int
	DurationSeconds int
	EncodedPath     string
}

// Provider models the geocoding/routing collaborator.
type Provider interface {
	// Geocode resolves free-text into coordinates.
	Geocode(ctx context.Context, address string) (Location, error)
	// ReverseGeocode resolves coordinates into a formatted address.
	ReverseGeocode(ctx context.Context, loc Location) (string, error)
	// Direction computes a route between two coordinates.
	Direction(ctx context.Context, origin, dest Location) (Leg, error)
}

// MockProvider returns canned answers and is useful for development.
type MockProvider struct {
	Loc   Location
	Addr  string
	Route Leg
}

// Geocode returns the configured location for any input.
func (m MockProvider) Geocode(context.Context, string) (Location, error) {
	return m.Loc, nil
}

// ReverseGeocode returns the configured address for any input.
func (m MockProvider) ReverseGeocode(context.Context, Location) (string, error) {
	return m.Addr, nil
}

// Direction returns the configured leg for any pair.
func (m MockProvider) Direction(context.Context, Location, Location) (Leg, error) {
	return m.Route, nil
}
