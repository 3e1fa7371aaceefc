// README: Session snapshot, settings and the boundaries the pipeline talks to.
package session

import (
	"context"
	"errors"
	"time"

	"lookout/internal/catalog"
	"lookout/internal/geo"
	"lookout/internal/modules/location"
	"lookout/internal/modules/targeting"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrClosed          = errors.New("session closed")
	ErrInvalidSettings = errors.New("invalid session settings")
)

// Snapshot is everything a renderer needs about one session.
type Snapshot struct {
	ID         string              `json:"id"`
	State      location.State      `json:"state"`
	Permission location.Permission `json:"permission"`
	Position   *geo.Coordinate     `json:"position"`
	Heading    float64             `json:"heading"`
	RadiusM    float64             `json:"radius_m"`
	Enrich     bool                `json:"enrich"`
	Candidates []catalog.Candidate `json:"candidates"`
	Result     targeting.Result    `json:"result"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Settings carries optional changes; nil fields are left alone.
type Settings struct {
	RadiusM *float64 `json:"radius_m"`
	Enrich  *bool    `json:"enrich"`
}

func (s Settings) validate() error {
	if s.RadiusM != nil && !(*s.RadiusM > 0) {
		return ErrInvalidSettings
	}
	return nil
}

// Config holds the per-session tuning.
type Config struct {
	RadiusM    float64
	ThresholdM float64
	Tolerance  float64
	Enrich     bool
}

// CandidateFetcher runs nearby catalog searches.
type CandidateFetcher interface {
	FetchCandidates(ctx context.Context, center geo.Coordinate, radiusM float64) ([]catalog.Candidate, error)
}

// DetailLoader loads (and optionally enriches) a targeted candidate.
type DetailLoader interface {
	Load(ctx context.Context, req targeting.FetchRequest) (catalog.Detail, error)
}

// Publisher receives snapshots whenever the candidates or the result change.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Discarder is implemented by publishers that keep the last snapshot of a
// session; Registry.Remove drops it once the session has stopped.
type Discarder interface {
	Delete(ctx context.Context, id string) error
}

// Deps are shared by every session a Registry creates.
type Deps struct {
	Catalog   CandidateFetcher
	Loader    DetailLoader
	Publisher Publisher
	Defaults  Config

	// LoaderFor, when set, builds a loader per session owner (e.g. to charge
	// enrichment to that owner's quota) and takes precedence over Loader.
	LoaderFor func(owner string) DetailLoader
}

func (d Deps) loaderFor(owner string) DetailLoader {
	if d.LoaderFor != nil {
		return d.LoaderFor(owner)
	}
	return d.Loader
}
