// README: Presence rows (a user's visit to a park) plus read models for active parks and friends.
package presence

import (
	"errors"
	"time"

	"pickleheart/internal/types"
)

var (
	ErrNotFound = errors.New("presence not found")
	// ErrAlreadyOpen means the user already has a row with no departure.
	ErrAlreadyOpen = errors.New("user already checked in")
)

type Record struct {
	ID            types.ID   `json:"id"`
	UserID        types.ID   `json:"user_id"`
	ParkID        types.ID   `json:"park_id"`
	ArrivedAt     time.Time  `json:"arrived_at"`
	DepartedAt    *time.Time `json:"departed_at,omitempty"`
	AutoCheckedIn bool       `json:"auto_checked_in"`
}

func (r Record) Open() bool { return r.DepartedAt == nil }

// ParkActivity is a park with the number of users currently checked in.
type ParkActivity struct {
	ParkID    types.ID `json:"park_id"`
	Name      string   `json:"name"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
	Players   int      `json:"players"`
	DistanceM *float64 `json:"distance_m,omitempty"`
}

// FriendPresence is an accepted friend's open check-in.
type FriendPresence struct {
	UserID      types.ID  `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ParkID      types.ID  `json:"park_id"`
	ParkName    string    `json:"park_name"`
	ArrivedAt   time.Time `json:"arrived_at"`
}
