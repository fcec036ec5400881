package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"pickleheart/internal/infra"
)

type rejectAll struct{}

func (rejectAll) VerifyIDToken(context.Context, string) (*infra.FirebaseToken, error) {
	return nil, errors.New("rejected")
}

func TestRoutes_HealthIsPublic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewServer(ServerDeps{Verifier: rejectAll{}, RateLimit: 100, Burst: 10}).Routes(ctx)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRoutes_APIRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewServer(ServerDeps{Verifier: rejectAll{}}).Routes(context.Background())

	for _, rt := range []struct{ method, path string }{
		{http.MethodPost, "/api/geofence/start"},
		{http.MethodGet, "/api/geofence/diagnostics"},
		{http.MethodPut, "/api/me/matching-preferences"},
		{http.MethodGet, "/api/parks/active"},
	} {
		req := httptest.NewRequest(rt.method, rt.path, nil)
		req.Header.Set("Authorization", "Bearer x")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, rt.path)
	}
}
