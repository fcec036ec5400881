// README: Player profile as read by geofencing (sharing flag) and matching (age, gender, DUPR).
package profile

import (
	"errors"
	"time"

	"pickleheart/internal/types"
)

var ErrNotFound = errors.New("profile not found")

type Profile struct {
	ID              types.ID   `json:"id"`
	DisplayName     string     `json:"display_name"`
	Birthday        *time.Time `json:"birthday,omitempty"`
	Gender          *string    `json:"gender,omitempty"`
	DUPR            *float64   `json:"dupr_rating,omitempty"`
	LocationSharing bool       `json:"location_sharing"`
}

// Age returns completed years at now, or nil when the birthday is unknown.
func (p Profile) Age(now time.Time) *int {
	if p.Birthday == nil {
		return nil
	}
	return AgeAt(*p.Birthday, now)
}

// AgeAt counts birthdays passed up to now in UTC calendar terms.
func AgeAt(birthday, now time.Time) *int {
	b := birthday.UTC()
	n := now.UTC()
	age := n.Year() - b.Year()
	if n.Month() < b.Month() || (n.Month() == b.Month() && n.Day() < b.Day()) {
		age--
	}
	if age < 0 {
		return nil
	}
	return &age
}
