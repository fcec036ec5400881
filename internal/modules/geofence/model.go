// README: Geofence collaborators, sentinels and per-sample decisions.
package geofence

import (
	"context"
	"errors"
	"time"

	"pickleheart/internal/modules/location"
	"pickleheart/internal/modules/park"
	"pickleheart/internal/modules/presence"
	"pickleheart/internal/types"
)

const DefaultRadiusM = 150.0

var (
	// ErrSharingDisabled: the user has location sharing off, or no profile.
	ErrSharingDisabled = errors.New("location sharing disabled")
	// ErrPermissionNotGranted: the device has not granted geolocation.
	ErrPermissionNotGranted = errors.New("location permission not granted")
	ErrNotRunning           = errors.New("geofence not running")
)

// Action is what one evaluation decided.
type Action string

const (
	ActionCooldown Action = "cooldown"
	ActionNone     Action = "none"
	ActionCheckIn  Action = "check_in"
	ActionCheckOut Action = "check_out"
	ActionFailed   Action = "failed"
)

type ParkLister interface {
	ListWithCoordinates(ctx context.Context) ([]park.Park, error)
}

type PresenceStore interface {
	GetOpen(ctx context.Context, userID types.ID) (*presence.Record, error)
	Open(ctx context.Context, r presence.Record) error
	Close(ctx context.Context, id types.ID, at time.Time) error
}

type SharingReader interface {
	LocationSharing(ctx context.Context, userID types.ID) (bool, error)
}

type DeviceReader interface {
	State(ctx context.Context, userID types.ID) (location.DeviceState, error)
}

type Subscriber interface {
	Subscribe(userID types.ID) (<-chan location.Event, func())
}

// WatchOptions are handed to the client for its platform position watch.
type WatchOptions struct {
	HighAccuracy bool          `json:"enable_high_accuracy"`
	Timeout      time.Duration `json:"-"`
	MaximumAge   time.Duration `json:"-"`
	TimeoutMs    int64         `json:"timeout_ms"`
	MaximumAgeMs int64         `json:"maximum_age_ms"`
}

func NewWatchOptions(highAccuracy bool, timeout, maxAge time.Duration) WatchOptions {
	return WatchOptions{
		HighAccuracy: highAccuracy,
		Timeout:      timeout,
		MaximumAge:   maxAge,
		TimeoutMs:    timeout.Milliseconds(),
		MaximumAgeMs: maxAge.Milliseconds(),
	}
}
