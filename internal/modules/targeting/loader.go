package targeting

import (
	"context"
	"log"
	"strings"

	"lookout/internal/catalog"
)

// DetailFetcher loads catalog detail for one candidate.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, candidate catalog.Candidate) (catalog.Detail, error)
}

// Summarizer condenses a place description. Implementations may fail freely.
type Summarizer interface {
	Summarize(ctx context.Context, title, text string) (string, error)
}

// Loader performs the work behind a FetchRequest: the catalog detail fetch,
// then the optional AI summary.
type Loader struct {
	fetcher    DetailFetcher
	summarizer Summarizer
}

// NewLoader returns a Loader. summarizer may be nil, which disables
// enrichment regardless of the request flag.
func NewLoader(fetcher DetailFetcher, summarizer Summarizer) *Loader {
	return &Loader{fetcher: fetcher, summarizer: summarizer}
}

// Load returns the detail for req. Enrichment never fails the load: on any
// summarizer error the base detail is returned without a summary. A detail
// that fell back to the placeholder extract is not summarized.
func (l *Loader) Load(ctx context.Context, req FetchRequest) (catalog.Detail, error) {
	detail, err := l.fetcher.FetchDetail(ctx, req.Candidate)
	if err != nil {
		return catalog.Detail{}, err
	}
	if !req.Enrich || l.summarizer == nil || detail.Extract == catalog.PlaceholderExtract {
		return detail, nil
	}

	summary, err := l.summarizer.Summarize(ctx, detail.Title, detail.Extract)
	if ctx.Err() != nil {
		return catalog.Detail{}, catalog.ErrCancelled
	}
	if err != nil {
		log.Printf("targeting: summary for %s (%q) skipped: %v", detail.ID, detail.Title, err)
		return detail, nil
	}
	detail.Summary = strings.TrimSpace(summary)
	return detail, nil
}
