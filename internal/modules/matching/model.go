// README: Matching preferences, participants and the outcome of evaluating one pair.
package matching

import (
	"errors"
	"time"

	"pickleheart/internal/modules/friendship"
	"pickleheart/internal/types"
)

var (
	ErrBadRequest = errors.New("bad request")
	// ErrNoPreferences: the acting user never saved matching preferences.
	ErrNoPreferences = errors.New("matching preferences not set")
)

type Mode string

const (
	ModeEveryone     Mode = "everyone"
	ModeAutoFriends  Mode = "auto_friends"
	ModeAutoRequests Mode = "auto_requests"
	ModeReceiveAll   Mode = "receive_all"
	ModeManual       Mode = "manual"
)

// AllModes lists every mode in table order.
var AllModes = []Mode{ModeEveryone, ModeAutoFriends, ModeAutoRequests, ModeReceiveAll, ModeManual}

// GenderAll in a gender filter accepts anyone.
const GenderAll = "all"

type Preferences struct {
	UserID    types.ID  `json:"user_id"`
	Mode      Mode      `json:"mode" validate:"required,oneof=everyone auto_friends auto_requests receive_all manual"`
	AgeMin    int       `json:"age_min" validate:"gte=18,lte=120"`
	AgeMax    int       `json:"age_max" validate:"gte=18,lte=120,gtefield=AgeMin"`
	Genders   []string  `json:"genders" validate:"required,min=1,dive,oneof=all male female nonbinary other"`
	RatingMin float64   `json:"rating_min" validate:"gte=1,lte=8"`
	RatingMax float64   `json:"rating_max" validate:"gte=1,lte=8,gtefield=RatingMin"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Participant is one side of a pair: preferences plus the profile facts the
// other side filters on. Nil or empty attributes are unknown.
type Participant struct {
	UserID      types.ID
	DisplayName string
	Prefs       Preferences
	Age         *int
	Gender      string
	Rating      *float64
}

type Kind int

const (
	KindNone Kind = iota
	KindAccepted
	KindPending
)

func (k Kind) String() string {
	switch k {
	case KindAccepted:
		return "accepted"
	case KindPending:
		return "pending"
	default:
		return "none"
	}
}

// Outcome of evaluating one pair. Requester and Addressee are set unless Kind is KindNone.
type Outcome struct {
	Kind      Kind
	Requester types.ID
	Addressee types.ID
}

// Status maps the outcome to the edge status it creates.
func (o Outcome) Status() friendship.Status {
	if o.Kind == KindAccepted {
		return friendship.StatusAccepted
	}
	return friendship.StatusPending
}

// RunResult reports what one matcher run wrote.
type RunResult struct {
	Evaluated int               `json:"evaluated"`
	Created   []friendship.Edge `json:"created"`
}
