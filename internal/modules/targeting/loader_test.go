package targeting

import (
	"context"
	"errors"
	"testing"

	"lookout/internal/catalog"
)

type stubFetcher struct {
	detail catalog.Detail
	err    error
	calls  int
}

func (f *stubFetcher) FetchDetail(ctx context.Context, c catalog.Candidate) (catalog.Detail, error) {
	f.calls++
	if f.err != nil {
		return catalog.Detail{}, f.err
	}
	d := f.detail
	d.Candidate = c
	return d, nil
}

type stubSummarizer struct {
	text   string
	err    error
	calls  int
	cancel context.CancelFunc
}

func (s *stubSummarizer) Summarize(ctx context.Context, title, text string) (string, error) {
	s.calls++
	if s.cancel != nil {
		s.cancel()
	}
	return s.text, s.err
}

func TestLoad_WithoutEnrichment(t *testing.T) {
	f := &stubFetcher{detail: catalog.Detail{Extract: "A tower."}}
	s := &stubSummarizer{text: "unused"}
	l := NewLoader(f, s)

	got, err := l.Load(context.Background(), FetchRequest{Candidate: cand("eiffel", 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "eiffel" || got.Extract != "A tower." || got.Summary != "" {
		t.Fatalf("unexpected detail %+v", got)
	}
	if s.calls != 0 {
		t.Fatal("summarizer must not run when enrichment is off")
	}
}

func TestLoad_WithEnrichment(t *testing.T) {
	f := &stubFetcher{detail: catalog.Detail{Extract: "A tower."}}
	s := &stubSummarizer{text: "  Built for the 1889 fair.\n"}
	l := NewLoader(f, s)

	got, err := l.Load(context.Background(), FetchRequest{Candidate: cand("eiffel", 0), Enrich: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Summary != "Built for the 1889 fair." {
		t.Fatalf("unexpected summary %q", got.Summary)
	}
	if got.Extract != "A tower." {
		t.Fatalf("extract should be kept alongside the summary, got %q", got.Extract)
	}
}

func TestLoad_PlaceholderExtractIsNotSummarized(t *testing.T) {
	f := &stubFetcher{detail: catalog.Detail{Extract: catalog.PlaceholderExtract}}
	s := &stubSummarizer{text: "Nothing is known."}
	l := NewLoader(f, s)

	got, err := l.Load(context.Background(), FetchRequest{Candidate: cand("unknown", 0), Enrich: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Extract != catalog.PlaceholderExtract || got.Summary != "" {
		t.Fatalf("unexpected detail %+v", got)
	}
	if s.calls != 0 {
		t.Fatalf("summarizer must not run on the placeholder, ran %d times", s.calls)
	}
}

func TestLoad_EnrichmentFailureKeepsBaseDetail(t *testing.T) {
	f := &stubFetcher{detail: catalog.Detail{Extract: "A tower."}}
	s := &stubSummarizer{err: errors.New("quota exceeded")}
	l := NewLoader(f, s)

	got, err := l.Load(context.Background(), FetchRequest{Candidate: cand("eiffel", 0), Enrich: true})
	if err != nil {
		t.Fatalf("enrichment failure must not fail the load: %v", err)
	}
	if got.ID != "eiffel" || got.Extract != "A tower." || got.Summary != "" {
		t.Fatalf("expected the base detail, got %+v", got)
	}
}

func TestLoad_NilSummarizer(t *testing.T) {
	f := &stubFetcher{detail: catalog.Detail{Extract: "A tower."}}
	l := NewLoader(f, nil)

	got, err := l.Load(context.Background(), FetchRequest{Candidate: cand("eiffel", 0), Enrich: true})
	if err != nil || got.Summary != "" {
		t.Fatalf("unexpected result %+v, %v", got, err)
	}
}

func TestLoad_FetchErrorPropagates(t *testing.T) {
	f := &stubFetcher{err: catalog.ErrCancelled}
	s := &stubSummarizer{}
	l := NewLoader(f, s)

	_, err := l.Load(context.Background(), FetchRequest{Candidate: cand("eiffel", 0), Enrich: true})
	if !errors.Is(err, catalog.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if s.calls != 0 {
		t.Fatal("summarizer must not run after a failed fetch")
	}
}

func TestLoad_CancelledDuringSummary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &stubFetcher{detail: catalog.Detail{Extract: "A tower."}}
	s := &stubSummarizer{text: "late", cancel: cancel}
	l := NewLoader(f, s)

	_, err := l.Load(ctx, FetchRequest{Candidate: cand("eiffel", 0), Enrich: true})
	if !catalog.IsCancelled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
