// README: Geofence start/stop and diagnostics handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"pickleheart/internal/modules/diagnostics"
	"pickleheart/internal/modules/geofence"
	"pickleheart/internal/types"
)

type monitor interface {
	Start(ctx context.Context, userID types.ID) (*geofence.Watch, error)
	Stop(userID types.ID) error
}

type reporter interface {
	Report(ctx context.Context, userID types.ID) (*diagnostics.Report, error)
}

type GeofenceHandler struct {
	monitor  monitor
	reporter reporter
	opts     geofence.WatchOptions
}

func NewGeofenceHandler(m monitor, r reporter, opts geofence.WatchOptions) *GeofenceHandler {
	return &GeofenceHandler{monitor: m, reporter: r, opts: opts}
}

func (h *GeofenceHandler) Start(c *gin.Context) {
	uid, ok := caller(c)
	if !ok {
		return
	}
	w, err := h.monitor.Start(c.Request.Context(), uid)
	if err != nil {
		writeGeofenceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"started":       true,
		"started_at":    w.StartedAt,
		"watch_options": h.opts,
	})
}

func (h *GeofenceHandler) Stop(c *gin.Context) {
	uid, ok := caller(c)
	if !ok {
		return
	}
	if err := h.monitor.Stop(uid); err != nil {
		writeGeofenceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"stopped": true})
}

func (h *GeofenceHandler) Diagnostics(c *gin.Context) {
	uid, ok := caller(c)
	if !ok {
		return
	}
	rep, err := h.reporter.Report(c.Request.Context(), uid)
	if err != nil {
		internalError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rep)
}
