package location

import (
	"context"
	"sync"
	"time"

	"lookout/internal/geo"
)

// PushSource is a Sensors implementation fed by readings a client pushes in,
// e.g. over the HTTP API. Each position subscription applies its own
// minimum-distance filter.
type PushSource struct {
	decided chan struct{}
	once    sync.Once

	// pushMu serialises deliveries so readings reach subscribers in the
	// order they were pushed.
	pushMu sync.Mutex

	mu        sync.Mutex
	granted   bool
	nextID    int
	positions map[int]*positionWatch
	headings  map[int]func(float64)
}

type positionWatch struct {
	minDistance float64
	last        *geo.Coordinate
	fn          func(geo.Coordinate)
}

func NewPushSource() *PushSource {
	return &PushSource{
		decided:   make(chan struct{}),
		positions: make(map[int]*positionWatch),
		headings:  make(map[int]func(float64)),
	}
}

// Grant answers the permission prompt. Only the first answer counts; it
// reports whether this call was the one that decided.
func (p *PushSource) Grant(granted bool) bool {
	decided := false
	p.once.Do(func() {
		p.mu.Lock()
		p.granted = granted
		p.mu.Unlock()
		close(p.decided)
		decided = true
	})
	return decided
}

// RequestPermission waits for Grant or ctx.
func (p *PushSource) RequestPermission(ctx context.Context) (bool, error) {
	select {
	case <-p.decided:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.granted, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (p *PushSource) WatchPosition(_ context.Context, minDistanceM float64, fn func(geo.Coordinate)) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.positions[id] = &positionWatch{minDistance: minDistanceM, fn: fn}
	return &pushSubscription{remove: func() {
		p.mu.Lock()
		delete(p.positions, id)
		p.mu.Unlock()
	}}, nil
}

func (p *PushSource) WatchHeading(_ context.Context, fn func(float64)) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.headings[id] = fn
	return &pushSubscription{remove: func() {
		p.mu.Lock()
		delete(p.headings, id)
		p.mu.Unlock()
	}}, nil
}

// PushPosition delivers a fix to every position subscription it has moved far
// enough for.
func (p *PushSource) PushPosition(c geo.Coordinate) {
	p.pushMu.Lock()
	defer p.pushMu.Unlock()

	p.mu.Lock()
	var due []func(geo.Coordinate)
	for _, w := range p.positions {
		if w.last != nil && geo.DistanceMeters(*w.last, c) < w.minDistance {
			continue
		}
		fix := c
		w.last = &fix
		due = append(due, w.fn)
	}
	p.mu.Unlock()

	for _, fn := range due {
		fn(c)
	}
}

// PushHeading delivers a compass reading to every heading subscription.
func (p *PushSource) PushHeading(h float64) {
	p.pushMu.Lock()
	defer p.pushMu.Unlock()

	p.mu.Lock()
	due := make([]func(float64), 0, len(p.headings))
	for _, fn := range p.headings {
		due = append(due, fn)
	}
	p.mu.Unlock()

	for _, fn := range due {
		fn(h)
	}
}

// Subscribers reports how many position and heading subscriptions are open.
func (p *PushSource) Subscribers() (positions, headings int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.positions), len(p.headings)
}

type pushSubscription struct {
	once   sync.Once
	remove func()
}

func (s *pushSubscription) Remove() {
	s.once.Do(s.remove)
}

// Step is one scripted reading for a ReplaySource. Either field may be nil.
type Step struct {
	Position *geo.Coordinate
	Heading  *float64
	Delay    time.Duration
}

// ReplaySource grants permission immediately and plays back a fixed script of
// readings, for demos and offline runs.
type ReplaySource struct {
	*PushSource
	steps []Step
}

func NewReplaySource(steps []Step) *ReplaySource {
	src := &ReplaySource{PushSource: NewPushSource(), steps: steps}
	src.Grant(true)
	return src
}

// Play delivers the script in order, waiting each step's delay first.
func (r *ReplaySource) Play(ctx context.Context) error {
	for _, s := range r.steps {
		if s.Delay > 0 {
			timer := time.NewTimer(s.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.Position != nil {
			r.PushPosition(*s.Position)
		}
		if s.Heading != nil {
			r.PushHeading(*s.Heading)
		}
	}
	return nil
}
