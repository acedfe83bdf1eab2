package geo

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-gateway/internal/confcache"
	"github.com/noah-isme/storefront-gateway/internal/events"
	"github.com/noah-isme/storefront-gateway/internal/obs"
	"github.com/noah-isme/storefront-gateway/internal/polyline"
)

// ConfigKeyStoreOrigin is the configuration-service key holding the store
// coordinate as "lat,lng".
const ConfigKeyStoreOrigin = "store.origin"

// Route is the resolved store-to-destination route.
type Route struct {
	DistanceKm  float64          `json:"distanceKm"`
	DurationMin int              `json:"durationMin"`
	Geometry    []polyline.Point `json:"geometry,omitempty"`
}

// Pipeline resolves free-text addresses into coordinates and routes. Each
// stage is independently fallible: a routing failure never rolls back a
// successful geocode, so the caller keeps the accepted address with an
// unknown distance.
type Pipeline struct {
	Provider Provider
	Config   *confcache.Cache
	Fallback Location
	Bus      *events.Bus
	Logger   zerolog.Logger

	mu          sync.Mutex
	gen         uint64
	address     string
	destination *Location
	route       *Route
}

// ResolveStoreOrigin returns the store coordinate through the TTL-bounded
// configuration cache, falling back to the compiled-in default when the
// configuration collaborator is unreachable or the value is malformed.
func (p *Pipeline) ResolveStoreOrigin(ctx context.Context) Location {
	if p.Config == nil {
		return p.Fallback
	}
	raw, err := p.Config.Get(ctx, ConfigKeyStoreOrigin)
	if err != nil {
		p.Logger.Warn().Err(err).Msg("store origin lookup failed, using fallback")
		return p.Fallback
	}
	loc, err := parseLocation(raw)
	if err != nil {
		p.Logger.Warn().Err(err).Str("value", raw).Msg("malformed store origin, using fallback")
		return p.Fallback
	}
	return loc
}

// SetAddress geocodes the text and, on success, computes a fresh route from
// the store origin. A geocoding miss returns an error and leaves the
// previous address and route untouched. A routing failure retains the new
// address but clears the route, leaving the shipping fee not-yet-computable.
// The generation is taken before the geocode call, so a slow response for a
// superseded address is discarded at both the geocode and route stages.
func (p *Pipeline) SetAddress(ctx context.Context, text string) (Location, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Location{}, fmt.Errorf("geo: %w", ErrNoMatch)
	}

	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	dest, err := p.Provider.Geocode(ctx, text)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		obs.StaleResponsesTotal.WithLabelValues("geocode").Inc()
		return dest, nil
	}
	if err != nil {
		p.mu.Unlock()
		return Location{}, err
	}
	p.address = text
	p.destination = &dest
	p.route = nil
	p.mu.Unlock()
	p.Bus.Emit(ctx, events.TopicAddressUpdated, dest)

	origin := p.ResolveStoreOrigin(ctx)
	leg, err := p.Provider.Direction(ctx, origin, dest)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		obs.StaleResponsesTotal.WithLabelValues("route").Inc()
		return dest, nil
	}
	if err != nil {
		p.mu.Unlock()
		p.Logger.Warn().Err(err).Str("address", text).Msg("route computation failed")
		obs.GeoFailuresTotal.WithLabelValues("direction").Inc()
		p.Bus.Emit(ctx, events.TopicRouteUpdated, (*Route)(nil))
		return dest, nil
	}
	route := legToRoute(leg, p.Logger)
	p.route = &route
	p.mu.Unlock()
	p.Bus.Emit(ctx, events.TopicRouteUpdated, &route)
	return dest, nil
}

// ResolvePin reverse-geocodes a dropped map pin into a display address and
// then runs the same route computation as SetAddress.
func (p *Pipeline) ResolvePin(ctx context.Context, loc Location) (string, error) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	addr, err := p.Provider.ReverseGeocode(ctx, loc)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		obs.StaleResponsesTotal.WithLabelValues("geocode").Inc()
		return addr, nil
	}
	if err != nil {
		p.mu.Unlock()
		return "", err
	}
	p.address = addr
	p.destination = &loc
	p.route = nil
	p.mu.Unlock()
	p.Bus.Emit(ctx, events.TopicAddressUpdated, loc)

	origin := p.ResolveStoreOrigin(ctx)
	leg, err := p.Provider.Direction(ctx, origin, loc)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		obs.StaleResponsesTotal.WithLabelValues("route").Inc()
		return addr, nil
	}
	if err != nil {
		p.mu.Unlock()
		obs.GeoFailuresTotal.WithLabelValues("direction").Inc()
		p.Bus.Emit(ctx, events.TopicRouteUpdated, (*Route)(nil))
		return addr, nil
	}
	route := legToRoute(leg, p.Logger)
	p.route = &route
	p.mu.Unlock()
	p.Bus.Emit(ctx, events.TopicRouteUpdated, &route)
	return addr, nil
}

// Address returns the last accepted address text.
func (p *Pipeline) Address() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.address
}

// Destination returns the last resolved destination, or nil.
func (p *Pipeline) Destination() *Location {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destination
}

// Route returns the current route, or nil when no route is known.
func (p *Pipeline) Route() *Route {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.route
}

func legToRoute(leg Leg, logger zerolog.Logger) Route {
	route := Route{
		DistanceKm:  math.Round(float64(leg.DistanceMeters)/10) / 100,
		DurationMin: int(math.Round(float64(leg.DurationSeconds) / 60)),
	}
	if leg.EncodedPath != "" {
		points, err := polyline.Decode(leg.EncodedPath)
		if err != nil {
			// Pricing depends only on the numeric distance; a bad
			// geometry just disables route drawing.
			logger.Warn().Err(err).Msg("route geometry decode failed")
			obs.GeoFailuresTotal.WithLabelValues("polyline").Inc()
		} else {
			route.Geometry = points
		}
	}
	return route
}

func parseLocation(raw string) (Location, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) != 2 {
		return Location{}, fmt.Errorf("geo: malformed coordinate %q", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Location{}, fmt.Errorf("geo: malformed latitude %q", parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Location{}, fmt.Errorf("geo: malformed longitude %q", parts[1])
	}
	return Location{Lat: lat, Lng: lng}, nil
}
