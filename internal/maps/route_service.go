package maps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"googlemaps.github.io/maps"

	"lookout/internal/geo"
)

// ErrNoRoute is returned when Directions finds no walking route.
var ErrNoRoute = errors.New("no route found")

// Estimate is a walking trip summary.
type Estimate struct {
	Duration     time.Duration `json:"duration_ns"`
	DurationText string        `json:"duration_text"`
	DistanceM    int           `json:"distance_m"`
	DistanceText string        `json:"distance_text"`
}

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client   *maps.Client
	language string
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey, language string, clientOpts ...maps.ClientOption) (*RouteService, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, clientOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	if language == "" {
		language = defaultLanguage
	}
	return &RouteService{client: client, language: language}, nil
}

// WalkingEstimate returns how long it takes to walk from one coordinate to
// another.
func (s *RouteService) WalkingEstimate(ctx context.Context, from, to geo.Coordinate) (Estimate, error) {
	r := &maps.DirectionsRequest{
		Origin:      latLng(from),
		Destination: latLng(to),
		Mode:        maps.TravelModeWalking,
		Language:    s.language,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return Estimate{}, fmt.Errorf("maps api error: %w", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Estimate{}, ErrNoRoute
	}

	leg := routes[0].Legs[0]
	return Estimate{
		Duration:     leg.Duration,
		DurationText: walkingText(leg.Duration),
		DistanceM:    leg.Distance.Meters,
		DistanceText: leg.Distance.HumanReadable,
	}, nil
}

// walkingText rounds up to whole minutes, never below one.
func walkingText(d time.Duration) string {
	mins := int(math.Ceil(d.Minutes()))
	if mins < 1 {
		mins = 1
	}
	return fmt.Sprintf("%d min", mins)
}

func latLng(c geo.Coordinate) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}
