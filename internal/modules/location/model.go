// README: Tracker state, permission status and the sensor boundary.
package location

import (
	"context"
	"errors"

	"lookout/internal/geo"
)

// DefaultMinDistanceM is the position filter applied to the sensor stream.
const DefaultMinDistanceM = 1.0

// ErrPermissionDenied is terminal for a tracking session.
var ErrPermissionDenied = errors.New("location permission denied")

type Permission string

const (
	PermissionUnknown Permission = "unknown"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

type State string

const (
	StateUninitialized     State = "uninitialized"
	StatePermissionPending State = "permission_pending"
	StatePermissionDenied  State = "permission_denied"
	StateActive            State = "active"
	StateStopped           State = "stopped"
)

// Snapshot is the latest sensor view exposed by a Tracker.
type Snapshot struct {
	State      State           `json:"state"`
	Permission Permission      `json:"permission"`
	Position   *geo.Coordinate `json:"position"`
	Heading    float64         `json:"heading"`
}

// Subscription is a live sensor stream that can be released.
type Subscription interface {
	Remove()
}

// Sensors is the device sensor boundary.
type Sensors interface {
	RequestPermission(ctx context.Context) (bool, error)
	// WatchPosition delivers fixes at least minDistanceM apart.
	WatchPosition(ctx context.Context, minDistanceM float64, fn func(geo.Coordinate)) (Subscription, error)
	// WatchHeading delivers compass headings in degrees from true north.
	WatchHeading(ctx context.Context, fn func(float64)) (Subscription, error)
}

// Listener receives tracker updates in arrival order.
type Listener interface {
	OnPermission(Permission)
	OnPosition(geo.Coordinate)
	OnHeading(float64)
}
