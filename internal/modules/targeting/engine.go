// README: Targeting engine picks the candidate the device points at and drives its detail fetch.
package targeting

import (
	"math"

	"lookout/internal/catalog"
	"lookout/internal/geo"
)

// Select returns the candidate whose bearing is closest to heading, provided
// it lies within tolerance. Ties go to the earliest candidate in the list;
// the order is stable but carries no meaning.
func Select(candidates []catalog.Candidate, heading, tolerance float64) (catalog.Candidate, bool) {
	var best catalog.Candidate
	bestDiff := math.Inf(1)
	found := false
	for _, c := range candidates {
		diff := math.Abs(geo.AngleDiff(heading, c.Bearing))
		if !(diff <= tolerance && diff < bestDiff) {
			continue
		}
		best, bestDiff, found = c, diff, true
	}
	return best, found
}

// Engine turns (candidates, heading) inputs into a stable target. It does no
// I/O: each call returns the side effects for the caller to perform, and
// fetch outcomes are fed back through Resolve and Fail. Not safe for
// concurrent use; callers serialise all calls.
type Engine struct {
	tolerance float64
	enrich    bool

	// targetID is the candidate the last detail fetch was started for.
	// Empty means no target.
	targetID string
	gen      uint64
	inFlight bool

	result Result
}

func NewEngine(cfg Config) *Engine {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	return &Engine{tolerance: cfg.Tolerance, enrich: cfg.Enrich}
}

// SetEnrich toggles AI enrichment for detail fetches started from now on.
func (e *Engine) SetEnrich(enabled bool) {
	e.enrich = enabled
}

func (e *Engine) Result() Result {
	return e.result
}

func (e *Engine) TargetID() string {
	return e.targetID
}

// Evaluate re-runs selection for the latest inputs.
//
// The same winner as last time is a no-op, so heading jitter never causes a
// refetch or a loading flicker. A different winner cancels the outstanding
// fetch, records the new id before anything suspends, and requests its
// detail. No winner clears the target; if the same candidate comes back
// later it is fetched again.
func (e *Engine) Evaluate(candidates []catalog.Candidate, heading float64) Decision {
	best, ok := Select(candidates, heading, e.tolerance)
	if !ok {
		d := Decision{Cancel: e.inFlight}
		e.inFlight = false
		e.targetID = ""
		next := Result{}
		d.Changed = e.result != next
		e.result = next
		return d
	}

	if best.ID == e.targetID {
		return Decision{}
	}

	d := Decision{Cancel: e.inFlight}
	e.gen++
	e.targetID = best.ID
	e.inFlight = true
	d.Fetch = &FetchRequest{Gen: e.gen, Candidate: best, Enrich: e.enrich}
	d.Changed = !e.result.IsLoading
	e.result.IsLoading = true
	return d
}

// Resolve publishes a fetched detail if it still belongs to the current
// target. It reports whether the result changed.
func (e *Engine) Resolve(gen uint64, detail catalog.Detail) bool {
	if !e.current(gen) || detail.ID != e.targetID {
		return false
	}
	e.inFlight = false
	d := detail
	e.result = Result{Targeted: &d, IsLoading: false}
	return true
}

// Fail ends the current fetch without a detail. Whatever was displayed stays.
func (e *Engine) Fail(gen uint64) bool {
	if !e.current(gen) {
		return false
	}
	e.inFlight = false
	changed := e.result.IsLoading
	e.result.IsLoading = false
	return changed
}

func (e *Engine) current(gen uint64) bool {
	return e.inFlight && gen == e.gen
}
