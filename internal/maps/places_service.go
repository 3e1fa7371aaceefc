package maps

import (
	"context"
	"fmt"
	"math"
	"strings"

	"googlemaps.github.io/maps"

	"lookout/internal/catalog"
	"lookout/internal/geo"
)

const (
	maxNearbyRadiusM  = 50000
	defaultPlaceType  = "tourist_attraction"
	defaultLanguage   = "en"
	placesAttribution = "Google Maps"
)

// PlacesOptions tunes the Places catalog.
type PlacesOptions struct {
	// PlaceType restricts nearby search to one Places type.
	PlaceType string
	Language  string
	// ExcludeKeywords drop any result whose name contains one of them.
	ExcludeKeywords []string
}

// PlacesService is a catalog.Provider backed by the Google Places API.
type PlacesService struct {
	client *maps.Client
	opts   PlacesOptions
}

// NewPlacesService creates a new PlacesService with the given API Key.
// clientOpts are passed through to the maps client.
func NewPlacesService(apiKey string, opts PlacesOptions, clientOpts ...maps.ClientOption) (*PlacesService, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, clientOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	if opts.PlaceType == "" {
		opts.PlaceType = defaultPlaceType
	}
	if opts.Language == "" {
		opts.Language = defaultLanguage
	}
	return &PlacesService{client: client, opts: opts}, nil
}

// Search returns places around center ordered by distance, nearest first.
func (s *PlacesService) Search(ctx context.Context, center geo.Coordinate, radiusM float64, limit int) ([]catalog.Place, error) {
	radius := uint(math.Round(math.Min(math.Max(radiusM, 1), maxNearbyRadiusM)))
	r := &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: center.Lat, Lng: center.Lng},
		Radius:   radius,
		Type:     maps.PlaceType(s.opts.PlaceType),
		Language: s.opts.Language,
	}

	resp, err := s.client.NearbySearch(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	places := make([]catalog.Place, 0, len(resp.Results))
	for _, result := range resp.Results {
		if s.excluded(result.Name) {
			continue
		}
		pos := geo.Coordinate{Lat: result.Geometry.Location.Lat, Lng: result.Geometry.Location.Lng}
		places = append(places, catalog.Place{
			ID:        result.PlaceID,
			Title:     result.Name,
			Position:  pos,
			DistanceM: geo.DistanceMeters(center, pos),
		})
	}

	geo.SortByDistance(places, func(p catalog.Place) float64 { return p.DistanceM })
	if limit > 0 && len(places) > limit {
		places = places[:limit]
	}
	return places, nil
}

// Detail describes a place from its address and rating. Places has no prose
// description, so the extract is assembled from what it does return.
func (s *PlacesService) Detail(ctx context.Context, id string) (catalog.PageInfo, error) {
	resp, err := s.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID:  id,
		Language: s.opts.Language,
	})
	if err != nil {
		return catalog.PageInfo{}, fmt.Errorf("place details api error: %w", err)
	}
	return catalog.PageInfo{
		Extract:   placeExtract(resp.Name, resp.FormattedAddress, resp.Rating, resp.UserRatingsTotal),
		Thumbnail: resp.Icon,
	}, nil
}

func (s *PlacesService) excluded(name string) bool {
	for _, kw := range s.opts.ExcludeKeywords {
		if kw != "" && containsIgnoreCase(name, kw) {
			return true
		}
	}
	return false
}

func placeExtract(name, address string, rating float32, ratings int) string {
	var b strings.Builder
	b.WriteString(name)
	if address != "" {
		fmt.Fprintf(&b, " is located at %s.", address)
	} else {
		b.WriteString(".")
	}
	if rating > 0 && ratings > 0 {
		fmt.Fprintf(&b, " Rated %.1f from %d reviews on %s.", rating, ratings, placesAttribution)
	}
	return b.String()
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
