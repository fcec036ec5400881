// README: Device location samples, geolocation errors and per-device permission state.
package location

import (
	"errors"
	"time"

	"pickleheart/internal/types"
)

var (
	ErrBadRequest = errors.New("bad request")
	ErrNotFound   = errors.New("not found")
)

// Permission mirrors the browser/OS geolocation permission states.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionPrompt  Permission = "prompt"
	PermissionUnknown Permission = "unknown"
)

func (p Permission) Valid() bool {
	switch p {
	case PermissionGranted, PermissionDenied, PermissionPrompt, PermissionUnknown:
		return true
	}
	return false
}

// ErrorCode is a W3C GeolocationPositionError code reported by the device.
type ErrorCode int

const (
	ErrorPermissionDenied    ErrorCode = 1
	ErrorPositionUnavailable ErrorCode = 2
	ErrorTimeout             ErrorCode = 3
)

// Message returns the user-facing text for the code.
func (c ErrorCode) Message() string {
	switch c {
	case ErrorPermissionDenied:
		return "Location permission denied. Enable location access to check in automatically."
	case ErrorPositionUnavailable:
		return "Your position is unavailable right now."
	case ErrorTimeout:
		return "Timed out while getting your location."
	default:
		return "Unknown location error."
	}
}

// Sample is one position fix. It is never persisted.
type Sample struct {
	UserID     types.ID    `json:"user_id"`
	Position   types.Point `json:"position"`
	AccuracyM  float64     `json:"accuracy_m"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// Event is delivered to watchers: exactly one of Sample or Code is set.
type Event struct {
	Sample *Sample
	Code   ErrorCode
}

// DeviceState is what the server last heard from a user's device.
type DeviceState struct {
	UserID     types.ID   `json:"user_id"`
	Capable    bool       `json:"capable"`
	Permission Permission `json:"permission"`
	LastSample *Sample    `json:"last_sample,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
