// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pickleheart/internal/http/middleware"
	"pickleheart/internal/modules/geofence"
	"pickleheart/internal/modules/location"
	"pickleheart/internal/modules/matching"
	"pickleheart/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// caller returns the authenticated user id; Auth guarantees it on /api.
func caller(c *gin.Context) (types.ID, bool) {
	uid := middleware.CallerUID(c)
	if uid == "" {
		writeError(c, http.StatusUnauthorized, "unauthenticated")
		return "", false
	}
	return types.ID(uid), true
}

func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	writeError(c, http.StatusInternalServerError, "internal error")
}

func writeLocationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, location.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, location.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		internalError(c, err)
	}
}

func writeGeofenceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, geofence.ErrSharingDisabled), errors.Is(err, geofence.ErrPermissionNotGranted):
		writeJSON(c, http.StatusOK, gin.H{"started": false, "reason": err.Error()})
	case errors.Is(err, geofence.ErrNotRunning):
		writeError(c, http.StatusConflict, err.Error())
	default:
		internalError(c, err)
	}
}

func writeMatchingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, matching.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, matching.ErrNoPreferences):
		writeError(c, http.StatusConflict, err.Error())
	default:
		internalError(c, err)
	}
}
