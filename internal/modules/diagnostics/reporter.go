// README: Read-only snapshot of a user's geofencing state with human-readable issues.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pickleheart/internal/modules/location"
	"pickleheart/internal/modules/park"
	"pickleheart/internal/modules/presence"
	"pickleheart/internal/modules/profile"
	"pickleheart/internal/types"
)

type DeviceReader interface {
	State(ctx context.Context, userID types.ID) (location.DeviceState, error)
}

type SharingReader interface {
	LocationSharing(ctx context.Context, userID types.ID) (bool, error)
}

type PresenceReader interface {
	GetOpen(ctx context.Context, userID types.ID) (*presence.Record, error)
}

type ParkReader interface {
	Get(ctx context.Context, id types.ID) (*park.Park, error)
}

type WatchChecker interface {
	Running(userID types.ID) bool
}

// ActivePresence is the open presence row with its park name resolved.
type ActivePresence struct {
	PresenceID    types.ID  `json:"presence_id"`
	ParkID        types.ID  `json:"park_id"`
	ParkName      string    `json:"park_name"`
	ArrivedAt     time.Time `json:"arrived_at"`
	AutoCheckedIn bool      `json:"auto_checked_in"`
}

type Report struct {
	UserID          types.ID            `json:"user_id"`
	GeneratedAt     time.Time           `json:"generated_at"`
	Capable         bool                `json:"geolocation_supported"`
	Permission      location.Permission `json:"permission"`
	LocationSharing bool                `json:"location_sharing"`
	Presence        *ActivePresence     `json:"presence,omitempty"`
	LastSample      *location.Sample    `json:"last_sample,omitempty"`
	Watching        bool                `json:"watching"`
	Issues          []string            `json:"issues"`
}

type Reporter struct {
	devices  DeviceReader
	sharing  SharingReader
	presence PresenceReader
	parks    ParkReader
	watches  WatchChecker
	now      func() time.Time
}

func NewReporter(devices DeviceReader, sharing SharingReader, presence PresenceReader, parks ParkReader, watches WatchChecker) *Reporter {
	return &Reporter{devices: devices, sharing: sharing, presence: presence, parks: parks, watches: watches, now: time.Now}
}

// Report gathers what is known about the user. Read failures become issues
// in the report; only a cancelled context is returned as an error.
func (r *Reporter) Report(ctx context.Context, userID types.ID) (*Report, error) {
	rep := &Report{
		UserID:      userID,
		GeneratedAt: r.now().UTC(),
		Permission:  location.PermissionUnknown,
		Issues:      []string{},
	}
	if userID == "" {
		rep.Issues = append(rep.Issues, "user not logged in")
		return rep, nil
	}

	st, err := r.devices.State(ctx, userID)
	if err != nil {
		rep.Issues = append(rep.Issues, fmt.Sprintf("could not read device state: %v", err))
	} else {
		rep.Capable = st.Capable
		rep.Permission = st.Permission
		rep.LastSample = st.LastSample
	}

	sharing, err := r.sharing.LocationSharing(ctx, userID)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		rep.Issues = append(rep.Issues, "profile not found")
	case err != nil:
		rep.Issues = append(rep.Issues, fmt.Sprintf("could not read location sharing preference: %v", err))
	default:
		rep.LocationSharing = sharing
	}

	open, err := r.presence.GetOpen(ctx, userID)
	if err != nil {
		rep.Issues = append(rep.Issues, fmt.Sprintf("could not read presence: %v", err))
	} else if open != nil {
		ap := &ActivePresence{
			PresenceID:    open.ID,
			ParkID:        open.ParkID,
			ArrivedAt:     open.ArrivedAt,
			AutoCheckedIn: open.AutoCheckedIn,
		}
		if p, err := r.parks.Get(ctx, open.ParkID); err == nil {
			ap.ParkName = p.Name
		} else {
			rep.Issues = append(rep.Issues, fmt.Sprintf("checked in at unknown park %s", open.ParkID))
		}
		rep.Presence = ap
	}

	rep.Watching = r.watches.Running(userID)
	rep.Issues = append(rep.Issues, detectIssues(rep)...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rep, nil
}

func detectIssues(rep *Report) []string {
	var issues []string
	if !rep.Capable && rep.LastSample == nil {
		issues = append(issues, "geolocation not reported as supported on this device")
	}
	switch rep.Permission {
	case location.PermissionDenied:
		issues = append(issues, "location permission denied")
	case location.PermissionPrompt:
		issues = append(issues, "location permission not yet granted")
	case location.PermissionUnknown:
		issues = append(issues, "location permission state unknown")
	}
	if !rep.LocationSharing {
		issues = append(issues, "location sharing is turned off")
	}
	if rep.LastSample == nil {
		issues = append(issues, "no location received yet")
	}
	if !rep.Watching {
		issues = append(issues, "automatic check-in is not running")
	}
	return issues
}
