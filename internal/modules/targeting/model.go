// README: Targeting result, decisions and engine configuration.
package targeting

import "lookout/internal/catalog"

// DefaultTolerance is the half-angle, in degrees, within which a candidate's
// bearing must lie from the heading to be targetable.
const DefaultTolerance = 20.0

// Result is the externally visible state of the engine.
type Result struct {
	Targeted  *catalog.Detail `json:"targeted"`
	IsLoading bool            `json:"is_loading"`
}

// FetchRequest asks the caller to load the detail of a newly targeted
// candidate. Gen must be handed back to Resolve or Fail.
type FetchRequest struct {
	Gen       uint64
	Candidate catalog.Candidate
	Enrich    bool
}

// Decision lists the side effects an evaluation requires, in order: cancel
// first, then fetch.
type Decision struct {
	Cancel  bool
	Fetch   *FetchRequest
	Changed bool
}

type Config struct {
	Tolerance float64
	Enrich    bool
}
