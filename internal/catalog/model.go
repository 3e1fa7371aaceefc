// Package catalog fetches nearby points of interest and their descriptive
// detail from an external place catalog.
package catalog

import (
	"context"
	"errors"

	"lookout/internal/geo"
)

// DefaultLimit caps how many results a single search may return.
const DefaultLimit = 50

// PlaceholderExtract replaces a missing or unfetchable description.
const PlaceholderExtract = "No description available."

// ErrCancelled is returned when the caller's context is cancelled before the
// catalog responds. It marks a superseded request, not a failure.
var ErrCancelled = errors.New("catalog: fetch cancelled")

// Candidate is a nearby point of interest as seen from the coordinate the
// search was issued for. Distance and bearing are not recomputed as the
// device moves.
type Candidate struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Position  geo.Coordinate `json:"position"`
	DistanceM float64        `json:"distance_m"`
	Bearing   float64        `json:"bearing"`
}

// Detail is a Candidate enriched with descriptive text. It is only built for
// the candidate currently being targeted.
type Detail struct {
	Candidate
	Extract   string `json:"extract"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

// Place is a raw search hit returned by a Provider.
type Place struct {
	ID        string
	Title     string
	Position  geo.Coordinate
	DistanceM float64
}

// PageInfo is the raw per-entity detail returned by a Provider.
type PageInfo struct {
	Extract   string
	Thumbnail string
}

// Provider is the external catalog service boundary.
type Provider interface {
	Search(ctx context.Context, center geo.Coordinate, radiusM float64, limit int) ([]Place, error)
	Detail(ctx context.Context, id string) (PageInfo, error)
}

// IsCancelled reports whether err is the outcome of a superseded request.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}
