// README: Active parks and friends' presence.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pickleheart/internal/modules/presence"
	"pickleheart/internal/types"
)

type presenceService interface {
	ActiveParks(ctx context.Context, near *types.Point) ([]presence.ParkActivity, error)
	FriendsPresence(ctx context.Context, userID types.ID) ([]presence.FriendPresence, error)
}

type PresenceHandler struct {
	presence presenceService
}

func NewPresenceHandler(svc presenceService) *PresenceHandler {
	return &PresenceHandler{presence: svc}
}

// ActiveParks lists parks with players checked in, nearest first when
// ?lat=&lng= are given.
func (h *PresenceHandler) ActiveParks(c *gin.Context) {
	if _, ok := caller(c); !ok {
		return
	}
	near, err := parseNear(c.Query("lat"), c.Query("lng"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid lat/lng")
		return
	}
	parks, err := h.presence.ActiveParks(c.Request.Context(), near)
	if err != nil {
		internalError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"parks": parks})
}

func (h *PresenceHandler) Friends(c *gin.Context) {
	uid, ok := caller(c)
	if !ok {
		return
	}
	friends, err := h.presence.FriendsPresence(c.Request.Context(), uid)
	if err != nil {
		internalError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"friends": friends})
}

var errInvalidPoint = errors.New("invalid point")

func parseNear(lat, lng string) (*types.Point, error) {
	if lat == "" && lng == "" {
		return nil, nil
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, err
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil, err
	}
	pt := types.Point{Lat: la, Lng: ln}
	if !pt.Valid() {
		return nil, errInvalidPoint
	}
	return &pt, nil
}
