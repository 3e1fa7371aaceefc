// README: Session runs one device's tracker, candidate set and targeting engine on a single event loop.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"lookout/internal/catalog"
	"lookout/internal/geo"
	"lookout/internal/modules/candidates"
	"lookout/internal/modules/location"
	"lookout/internal/modules/targeting"
)

const (
	defaultRadiusM = 300.0
	actionBuffer   = 64
	publishTimeout = 2 * time.Second
)

// Session is one targeting pipeline. Sensor readings and fetch completions
// are queued as actions and applied in arrival order by Run; the manager and
// engine are only touched from that goroutine.
type Session struct {
	id        string
	owner     string
	source    *location.PushSource
	tracker   *location.Tracker
	catalog   CandidateFetcher
	loader    DetailLoader
	publisher Publisher

	actions   chan func()
	updates   chan Snapshot
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	running   atomic.Bool

	// Loop-owned.
	runCtx        context.Context
	manager       *candidates.Manager
	engine        *targeting.Engine
	state         location.State
	permission    location.Permission
	position      *geo.Coordinate
	heading       float64
	enrich        bool
	cancelCatalog context.CancelFunc
	cancelDetail  context.CancelFunc

	mu   sync.RWMutex
	snap Snapshot
}

// New builds a session fed by src. Run must be called to start it.
func New(id, owner string, cfg Config, src *location.PushSource, deps Deps) *Session {
	if cfg.RadiusM <= 0 {
		cfg.RadiusM = defaultRadiusM
	}
	if cfg.ThresholdM <= 0 {
		cfg.ThresholdM = location.DefaultMinDistanceM
	}
	s := &Session{
		id:         id,
		owner:      owner,
		source:     src,
		catalog:    deps.Catalog,
		loader:     deps.loaderFor(owner),
		publisher:  deps.Publisher,
		actions:    make(chan func(), actionBuffer),
		updates:    make(chan Snapshot, 1),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		manager:    candidates.NewManager(cfg.ThresholdM, cfg.RadiusM),
		engine:     targeting.NewEngine(targeting.Config{Tolerance: cfg.Tolerance, Enrich: cfg.Enrich}),
		state:      location.StateUninitialized,
		permission: location.PermissionUnknown,
		enrich:     cfg.Enrich,
	}
	s.tracker = location.NewTracker(src, cfg.ThresholdM, listener{s})
	s.refresh(false)
	return s
}

func (s *Session) ID() string    { return s.id }
func (s *Session) Owner() string { return s.owner }

// Done is closed once Run has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Run starts tracking and processes actions until Close or ctx ends. All
// subscriptions and outstanding fetches are released before it returns.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("session already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.runCtx = ctx

	loopDone := make(chan struct{})
	var wg sync.WaitGroup
	if s.publisher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.forward(loopDone)
		}()
	}

	started := make(chan error, 1)
	go func() { started <- s.tracker.Start(ctx) }()

	s.state = location.StatePermissionPending
	s.refresh(true)

	err := s.loop(ctx, started)
	s.shutdown()
	cancel()
	close(loopDone)
	wg.Wait()
	close(s.done)
	return err
}

// Close stops the session. Run returns shortly after; wait on Done if needed.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
}

// Snapshot returns the latest published view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// UpdateSettings queues a settings change. A radius change re-fetches the
// candidate list; enrichment applies from the next target acquisition.
func (s *Session) UpdateSettings(set Settings) error {
	if err := set.validate(); err != nil {
		return err
	}
	if !s.post(func() { s.applySettings(set) }) {
		return ErrClosed
	}
	return nil
}

// SetPermission answers the permission prompt. A refusal after a grant
// revokes tracking for good.
func (s *Session) SetPermission(granted bool) {
	if s.source.Grant(granted) {
		return
	}
	if !granted {
		s.tracker.Revoke()
	}
}

func (s *Session) PushPosition(c geo.Coordinate) { s.source.PushPosition(c) }
func (s *Session) PushHeading(h float64)         { s.source.PushHeading(h) }

func (s *Session) loop(ctx context.Context, started <-chan error) error {
	for {
		select {
		case fn := <-s.actions:
			fn()
		case err := <-started:
			started = nil
			s.trackerStarted(err)
		case <-s.quit:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// shutdown closes quit before stopping the tracker: a sensor callback blocked
// in post holds the tracker lock until quit releases it.
func (s *Session) shutdown() {
	s.Close()
	s.tracker.Stop()
	if s.cancelCatalog != nil {
		s.cancelCatalog()
		s.cancelCatalog = nil
	}
	if s.cancelDetail != nil {
		s.cancelDetail()
		s.cancelDetail = nil
	}
	s.state = location.StateStopped
	s.refresh(true)
}

// post queues fn for the loop. It reports false once the session is closed.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.quit:
		return false
	default:
	}
	select {
	case s.actions <- fn:
		return true
	case <-s.quit:
		return false
	}
}

func (s *Session) trackerStarted(err error) {
	if err == nil || errors.Is(err, location.ErrPermissionDenied) {
		return
	}
	log.Printf("session %s: tracker failed to start: %v", s.id, err)
	s.state = location.StateStopped
	s.refresh(true)
}

func (s *Session) onPermission(p location.Permission) {
	s.permission = p
	switch p {
	case location.PermissionGranted:
		s.state = location.StateActive
	case location.PermissionDenied:
		s.state = location.StatePermissionDenied
	}
	s.refresh(true)
}

func (s *Session) onPosition(c geo.Coordinate) {
	s.position = &c
	s.runCatalog(s.manager.Observe(c))
	s.refresh(false)
}

func (s *Session) onHeading(h float64) {
	s.heading = h
	s.refresh(s.evaluate())
}

func (s *Session) applySettings(set Settings) {
	if set.Enrich != nil {
		s.enrich = *set.Enrich
		s.engine.SetEnrich(s.enrich)
	}
	if set.RadiusM != nil {
		s.runCatalog(s.manager.SetRadius(*set.RadiusM))
	}
	s.refresh(true)
}

func (s *Session) runCatalog(d candidates.Decision) {
	if d.Cancel && s.cancelCatalog != nil {
		s.cancelCatalog()
		s.cancelCatalog = nil
	}
	if d.Fetch == nil {
		return
	}
	req := *d.Fetch
	ctx, cancel := context.WithCancel(s.runCtx)
	s.cancelCatalog = cancel
	go func() {
		defer cancel()
		found, err := s.catalog.FetchCandidates(ctx, req.Center, req.RadiusM)
		s.post(func() { s.catalogDone(req, found, err) })
	}()
}

func (s *Session) catalogDone(req candidates.FetchRequest, found []catalog.Candidate, err error) {
	switch {
	case catalog.IsCancelled(err):
		return
	case err != nil:
		if !s.manager.Fail(req) {
			return
		}
		log.Printf("session %s: candidate search failed: %v", s.id, err)
	default:
		if !s.manager.Complete(req, found) {
			return
		}
	}
	s.evaluate()
	s.refresh(true)
}

// evaluate re-runs target selection. The heading is 0 until the compass
// reports, so candidates can be targeted before the first reading.
func (s *Session) evaluate() bool {
	d := s.engine.Evaluate(s.manager.Candidates(), s.heading)
	if d.Cancel && s.cancelDetail != nil {
		s.cancelDetail()
		s.cancelDetail = nil
	}
	if d.Fetch != nil {
		s.startDetail(*d.Fetch)
	}
	return d.Changed
}

func (s *Session) startDetail(req targeting.FetchRequest) {
	ctx, cancel := context.WithCancel(s.runCtx)
	s.cancelDetail = cancel
	go func() {
		defer cancel()
		detail, err := s.loader.Load(ctx, req)
		s.post(func() { s.detailDone(req, detail, err) })
	}()
}

func (s *Session) detailDone(req targeting.FetchRequest, detail catalog.Detail, err error) {
	var changed bool
	switch {
	case catalog.IsCancelled(err):
		return
	case err != nil:
		log.Printf("session %s: detail for %s failed: %v", s.id, req.Candidate.ID, err)
		changed = s.engine.Fail(req.Gen)
	default:
		changed = s.engine.Resolve(req.Gen, detail)
	}
	if changed {
		s.refresh(true)
	}
}

// refresh rebuilds the snapshot. publish hands it to the publisher as well;
// only the latest pending snapshot is kept.
func (s *Session) refresh(publish bool) {
	cands := s.manager.Candidates()
	if cands == nil {
		cands = []catalog.Candidate{}
	}
	snap := Snapshot{
		ID:         s.id,
		State:      s.state,
		Permission: s.permission,
		Position:   s.position,
		Heading:    s.heading,
		RadiusM:    s.manager.Radius(),
		Enrich:     s.enrich,
		Candidates: cands,
		Result:     s.engine.Result(),
		UpdatedAt:  time.Now().UTC(),
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	if !publish || s.publisher == nil {
		return
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snap
}

func (s *Session) forward(loopDone <-chan struct{}) {
	for {
		select {
		case snap := <-s.updates:
			s.send(snap)
		case <-loopDone:
			select {
			case snap := <-s.updates:
				s.send(snap)
			default:
			}
			return
		}
	}
}

func (s *Session) send(snap Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, snap); err != nil {
		log.Printf("session %s: publish snapshot: %v", s.id, err)
	}
}

// listener moves tracker callbacks onto the loop.
type listener struct{ s *Session }

func (l listener) OnPermission(p location.Permission) {
	l.s.post(func() { l.s.onPermission(p) })
}

func (l listener) OnPosition(c geo.Coordinate) {
	l.s.post(func() { l.s.onPosition(c) })
}

func (l listener) OnHeading(h float64) {
	l.s.post(func() { l.s.onHeading(h) })
}
