package catalog

import (
	"context"
	"fmt"
	"log"
	"strings"

	"lookout/internal/geo"
)

// Client turns raw provider results into candidates relative to the search
// centre.
type Client struct {
	provider Provider
	limit    int
}

// NewClient wraps provider. A non-positive limit falls back to DefaultLimit.
func NewClient(provider Provider, limit int) *Client {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Client{provider: provider, limit: limit}
}

// FetchCandidates returns the catalog entries within radiusM of center, each
// carrying its bearing from center. Network failures are returned to the
// caller; a cancelled ctx yields ErrCancelled.
func (c *Client) FetchCandidates(ctx context.Context, center geo.Coordinate, radiusM float64) ([]Candidate, error) {
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	places, err := c.provider.Search(ctx, center, radiusM, c.limit)
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}

	if len(places) > c.limit {
		places = places[:c.limit]
	}
	candidates := make([]Candidate, 0, len(places))
	for _, p := range places {
		candidates = append(candidates, Candidate{
			ID:        p.ID,
			Title:     p.Title,
			Position:  p.Position,
			DistanceM: p.DistanceM,
			Bearing:   geo.BearingDegrees(center, p.Position),
		})
	}
	return candidates, nil
}

// FetchDetail loads the description and thumbnail for candidate. Only
// cancellation is reported as an error; anything else degrades to the
// placeholder extract.
func (c *Client) FetchDetail(ctx context.Context, candidate Candidate) (Detail, error) {
	if ctx.Err() != nil {
		return Detail{}, ErrCancelled
	}

	info, err := c.provider.Detail(ctx, candidate.ID)
	if ctx.Err() != nil {
		return Detail{}, ErrCancelled
	}
	if err != nil {
		log.Printf("catalog: detail for %s (%q) failed: %v", candidate.ID, candidate.Title, err)
		info = PageInfo{}
	}

	extract := strings.TrimSpace(info.Extract)
	if extract == "" {
		extract = PlaceholderExtract
	}
	return Detail{
		Candidate: candidate,
		Extract:   extract,
		Thumbnail: info.Thumbnail,
	}, nil
}
