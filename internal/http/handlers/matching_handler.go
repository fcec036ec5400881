// README: Matching preferences and on-demand matcher runs.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"pickleheart/internal/modules/matching"
	"pickleheart/internal/types"
)

type matchingService interface {
	GetPreferences(ctx context.Context, userID types.ID) (*matching.Preferences, error)
	UpdatePreferences(ctx context.Context, userID types.ID, p matching.Preferences) (*matching.Preferences, *matching.RunResult, error)
	RunForUser(ctx context.Context, userID types.ID) (*matching.RunResult, error)
}

type MatchingHandler struct {
	matching matchingService
}

func NewMatchingHandler(svc matchingService) *MatchingHandler {
	return &MatchingHandler{matching: svc}
}

func (h *MatchingHandler) GetPreferences(c *gin.Context) {
	uid, ok := caller(c)
	if !ok {
		return
	}
	p, err := h.matching.GetPreferences(c.Request.Context(), uid)
	if err != nil {
		writeMatchingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

// UpdatePreferences saves the caller's preferences and runs the matcher with
// them. The body's user_id, if any, is ignored.
func (h *MatchingHandler) UpdatePreferences(c *gin.Context) {
	uid, ok := caller(c)
	if !ok {
		return
	}
	var req matching.Preferences
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	saved, run, err := h.matching.UpdatePreferences(c.Request.Context(), uid, req)
	if err != nil {
		writeMatchingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"preferences": saved, "run": run})
}

func (h *MatchingHandler) Run(c *gin.Context) {
	uid, ok := caller(c)
	if !ok {
		return
	}
	res, err := h.matching.RunForUser(c.Request.Context(), uid)
	if err != nil {
		writeMatchingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}
