// README: Friendship edges between two users; at most one edge per unordered pair.
package friendship

import (
	"time"

	"pickleheart/internal/types"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

type Edge struct {
	ID          types.ID  `json:"id"`
	RequesterID types.ID  `json:"requester_id"`
	AddresseeID types.ID  `json:"addressee_id"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Other returns the endpoint that is not userID.
func (e Edge) Other(userID types.ID) types.ID {
	if e.RequesterID == userID {
		return e.AddresseeID
	}
	return e.RequesterID
}

// Connects reports whether the edge joins a and b in either direction.
func (e Edge) Connects(a, b types.ID) bool {
	return (e.RequesterID == a && e.AddresseeID == b) || (e.RequesterID == b && e.AddresseeID == a)
}
