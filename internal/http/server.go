// README: API gateway; builds the gin engine, registers routes and delegates to module services.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pickleheart/internal/http/handlers"
	"pickleheart/internal/http/middleware"
	"pickleheart/internal/infra"
	"pickleheart/internal/modules/diagnostics"
	"pickleheart/internal/modules/geofence"
	"pickleheart/internal/modules/location"
	"pickleheart/internal/modules/matching"
	"pickleheart/internal/modules/presence"
)

type ServerDeps struct {
	Location     *location.Service
	Monitor      *geofence.Monitor
	Diagnostics  *diagnostics.Reporter
	Presence     *presence.Service
	Matching     *matching.Service
	Verifier     infra.TokenVerifier
	WatchOptions geofence.WatchOptions
	RateLimit    rate.Limit
	Burst        int
	Log          *zap.Logger
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Server{deps: deps}
}

// Routes builds the engine. ctx bounds background work owned by middleware.
func (s *Server) Routes(ctx context.Context) *gin.Engine {
	d := s.deps
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(d.Log), middleware.Logging(d.Log))
	if d.RateLimit > 0 {
		r.Use(middleware.RateLimit(ctx, d.RateLimit, d.Burst))
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(d.Verifier))

	locationHandler := handlers.NewLocationHandler(d.Location)
	api.PUT("/location/permission", locationHandler.Permission)
	api.POST("/location/samples", locationHandler.Sample)

	geofenceHandler := handlers.NewGeofenceHandler(d.Monitor, d.Diagnostics, d.WatchOptions)
	api.POST("/geofence/start", geofenceHandler.Start)
	api.POST("/geofence/stop", geofenceHandler.Stop)
	api.GET("/geofence/diagnostics", geofenceHandler.Diagnostics)

	presenceHandler := handlers.NewPresenceHandler(d.Presence)
	api.GET("/parks/active", presenceHandler.ActiveParks)
	api.GET("/friends/presence", presenceHandler.Friends)

	matchingHandler := handlers.NewMatchingHandler(d.Matching)
	api.GET("/me/matching-preferences", matchingHandler.GetPreferences)
	api.PUT("/me/matching-preferences", matchingHandler.UpdatePreferences)
	api.POST("/matching/run", matchingHandler.Run)

	return r
}
