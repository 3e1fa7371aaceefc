// README: Tracker requests location permission, owns the position and heading subscriptions, and republishes their latest values.
package location

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"

	"lookout/internal/geo"
)

// Tracker follows one device. Both sensor subscriptions share its lifecycle:
// Stop or Revoke releases them together, and nothing is delivered to the
// listener once either has begun.
type Tracker struct {
	sensors     Sensors
	minDistance float64
	listener    Listener

	mu         sync.Mutex
	state      State
	permission Permission
	position   *geo.Coordinate
	heading    float64
	posSub     Subscription
	headSub    Subscription
	stopped    bool
}

func NewTracker(sensors Sensors, minDistanceM float64, listener Listener) *Tracker {
	if minDistanceM <= 0 {
		minDistanceM = DefaultMinDistanceM
	}
	return &Tracker{
		sensors:     sensors,
		minDistance: minDistanceM,
		listener:    listener,
		state:       StateUninitialized,
		permission:  PermissionUnknown,
	}
}

// Start requests permission and, once granted, opens both subscriptions. It
// blocks until the permission prompt resolves. A denial returns
// ErrPermissionDenied; a Stop during the prompt returns nil.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateUninitialized {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("tracker already started (%s)", state)
	}
	t.state = StatePermissionPending
	t.mu.Unlock()

	granted, err := t.sensors.RequestPermission(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("location: permission request failed: %v", err)
		granted = false
	}
	if !granted {
		t.deny()
		return ErrPermissionDenied
	}

	t.mu.Lock()
	if t.released() {
		t.mu.Unlock()
		return nil
	}
	t.permission = PermissionGranted
	t.listener.OnPermission(PermissionGranted)
	t.mu.Unlock()

	posSub, err := t.sensors.WatchPosition(ctx, t.minDistance, t.onPosition)
	if err != nil {
		return fmt.Errorf("watch position: %w", err)
	}
	headSub, err := t.sensors.WatchHeading(ctx, t.onHeading)
	if err != nil {
		posSub.Remove()
		return fmt.Errorf("watch heading: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released() {
		posSub.Remove()
		headSub.Remove()
		return nil
	}
	t.posSub, t.headSub = posSub, headSub
	t.state = StateActive
	return nil
}

// Stop tears the tracker down. It is safe to call more than once.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	t.state = StateStopped
	t.releaseSubscriptions()
}

// Revoke handles a permission withdrawn while tracking: both subscriptions are
// released and the listener is told once.
func (t *Tracker) Revoke() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released() {
		return
	}
	t.releaseSubscriptions()
	t.state = StatePermissionDenied
	t.permission = PermissionDenied
	t.listener.OnPermission(PermissionDenied)
}

// Snapshot returns the latest position, heading and permission.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := Snapshot{
		State:      t.state,
		Permission: t.permission,
		Heading:    t.heading,
	}
	if t.position != nil {
		pos := *t.position
		snap.Position = &pos
	}
	return snap
}

func (t *Tracker) deny() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released() {
		return
	}
	t.state = StatePermissionDenied
	t.permission = PermissionDenied
	t.listener.OnPermission(PermissionDenied)
}

// onPosition and onHeading hold the lock across delivery so that Stop cannot
// interleave between the check and the publish.
func (t *Tracker) onPosition(c geo.Coordinate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released() {
		return
	}
	t.position = &c
	t.listener.OnPosition(c)
}

func (t *Tracker) onHeading(h float64) {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		return
	}
	h = geo.NormalizeHeading(h)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released() {
		return
	}
	t.heading = h
	t.listener.OnHeading(h)
}

func (t *Tracker) released() bool {
	return t.stopped || t.state == StatePermissionDenied
}

func (t *Tracker) releaseSubscriptions() {
	if t.posSub != nil {
		t.posSub.Remove()
		t.posSub = nil
	}
	if t.headSub != nil {
		t.headSub.Remove()
		t.headSub = nil
	}
}
