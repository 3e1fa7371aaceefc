// README: Candidate set manager decides when the nearby catalog list must be re-fetched.
package candidates

import (
	"lookout/internal/catalog"
	"lookout/internal/geo"
)

// FetchRequest asks the caller to run a catalog search. Gen identifies the
// request when its result comes back.
type FetchRequest struct {
	Gen     uint64
	Center  geo.Coordinate
	RadiusM float64
}

// Decision tells the caller which side effects to perform after an input.
type Decision struct {
	// Cancel means the outstanding search is superseded.
	Cancel bool
	Fetch  *FetchRequest
}

// Manager holds the current candidate list and the coordinate it was fetched
// for. It performs no I/O: callers execute the returned decisions and report
// back with Complete or Fail. Not safe for concurrent use.
type Manager struct {
	threshold float64
	radius    float64

	reference  *geo.Coordinate
	latest     *geo.Coordinate
	candidates []catalog.Candidate

	gen     uint64
	pending bool
}

// NewManager returns a Manager that re-fetches once the device has moved at
// least thresholdM from the last fetched coordinate.
func NewManager(thresholdM, radiusM float64) *Manager {
	return &Manager{threshold: thresholdM, radius: radiusM}
}

// Observe records a new device coordinate.
func (m *Manager) Observe(c geo.Coordinate) Decision {
	m.latest = &c
	if m.reference != nil && geo.DistanceMeters(*m.reference, c) < m.threshold {
		return Decision{}
	}
	return m.issue(c)
}

// SetRadius changes the search radius. Any change forces a re-fetch for the
// latest coordinate, however little the device has moved.
func (m *Manager) SetRadius(radiusM float64) Decision {
	if radiusM == m.radius {
		return Decision{}
	}
	m.radius = radiusM
	if m.latest == nil {
		return Decision{}
	}
	return m.issue(*m.latest)
}

// Complete applies a finished search. Results for superseded requests are
// discarded and false is returned.
func (m *Manager) Complete(req FetchRequest, found []catalog.Candidate) bool {
	if !m.pending || req.Gen != m.gen {
		return false
	}
	m.pending = false
	center := req.Center
	m.reference = &center
	m.candidates = found
	return true
}

// Fail applies a failed search. The list is emptied and the reference
// coordinate dropped so the next fix retries.
func (m *Manager) Fail(req FetchRequest) bool {
	if !m.pending || req.Gen != m.gen {
		return false
	}
	m.pending = false
	m.reference = nil
	m.candidates = nil
	return true
}

// Candidates returns the current list. Callers must not modify it.
func (m *Manager) Candidates() []catalog.Candidate {
	return m.candidates
}

func (m *Manager) Radius() float64 {
	return m.radius
}

func (m *Manager) Pending() bool {
	return m.pending
}

func (m *Manager) issue(c geo.Coordinate) Decision {
	d := Decision{Cancel: m.pending}
	m.gen++
	m.pending = true
	d.Fetch = &FetchRequest{Gen: m.gen, Center: c, RadiusM: m.radius}
	return d
}
