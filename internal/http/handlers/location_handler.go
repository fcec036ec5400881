// README: Device permission reports and location samples.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pickleheart/internal/modules/location"
	"pickleheart/internal/types"
)

type locationService interface {
	ReportPermission(ctx context.Context, userID types.ID, perm location.Permission, capable bool) (location.DeviceState, error)
	PushSample(ctx context.Context, userID types.ID, u location.Update) (bool, error)
	PushError(ctx context.Context, userID types.ID, code location.ErrorCode) (bool, error)
}

type LocationHandler struct {
	location locationService
}

func NewLocationHandler(svc locationService) *LocationHandler {
	return &LocationHandler{location: svc}
}

type permissionReq struct {
	Permission string `json:"permission" binding:"required"`
	Capable    *bool  `json:"capable" binding:"required"`
}

func (h *LocationHandler) Permission(c *gin.Context) {
	uid, ok := caller(c)
	if !ok {
		return
	}
	var req permissionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	st, err := h.location.ReportPermission(c.Request.Context(), uid, location.Permission(req.Permission), *req.Capable)
	if err != nil {
		writeLocationError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

// sampleReq carries either a fix (lat/lng) or a geolocation error_code.
type sampleReq struct {
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	AccuracyM float64    `json:"accuracy_m"`
	Timestamp *time.Time `json:"timestamp"`
	ErrorCode *int       `json:"error_code"`
}

func (h *LocationHandler) Sample(c *gin.Context) {
	uid, ok := caller(c)
	if !ok {
		return
	}
	var req sampleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	ctx := c.Request.Context()
	if req.ErrorCode != nil {
		if req.Lat != nil || req.Lng != nil {
			writeError(c, http.StatusBadRequest, "send either a position or an error_code")
			return
		}
		delivered, err := h.location.PushError(ctx, uid, location.ErrorCode(*req.ErrorCode))
		if err != nil {
			writeLocationError(c, err)
			return
		}
		writeJSON(c, http.StatusAccepted, gin.H{"delivered": delivered})
		return
	}

	if req.Lat == nil || req.Lng == nil {
		writeError(c, http.StatusBadRequest, "missing lat/lng")
		return
	}
	u := location.Update{Position: types.Point{Lat: *req.Lat, Lng: *req.Lng}, AccuracyM: req.AccuracyM}
	if req.Timestamp != nil {
		u.Timestamp = *req.Timestamp
	}
	delivered, err := h.location.PushSample(ctx, uid, u)
	if err != nil {
		writeLocationError(c, err)
		return
	}
	writeJSON(c, http.StatusAccepted, gin.H{"delivered": delivered})
}
