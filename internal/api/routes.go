// Package api wires the protection middleware, handlers, and routes into
// an HTTP server.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tripvar/search-analytics/internal/auth"
	"github.com/tripvar/search-analytics/internal/handler"
	"github.com/tripvar/search-analytics/internal/ratelimit"
	"github.com/tripvar/search-analytics/internal/telemetry"
)

// Deps carries everything route registration needs. Nil protection layers
// are skipped, which is how config toggles disable them.
type Deps struct {
	JWTSecret string

	Guard       *ratelimit.Guard
	Geo         *ratelimit.Geo
	Limiters    *ratelimit.Limiters
	Progressive *ratelimit.Progressive

	Analytics *handler.Analytics
	Tracking  *handler.Tracking
	Health    *handler.Health
}

// RegisterRoutes sets up the middleware chain and all routes.
//
// Order matters: the DDoS guard runs before anything else so a blocked IP
// never reaches a counter, geo rules next, then the general limiter. The
// per-route limiters sit inside the authenticated group.
func RegisterRoutes(r *gin.Engine, d Deps) {
	// Registered before the protection chain: probes and scrapes are never
	// rate limited.
	r.GET("/health", d.Health.Live)
	r.GET("/health/ready", d.Health.Ready)
	r.GET("/metrics", gin.WrapH(telemetry.Handler()))

	if d.Guard != nil {
		r.Use(d.Guard.Middleware())
	}
	if d.Geo != nil {
		r.Use(d.Geo.Middleware())
	}
	if d.Limiters != nil {
		r.Use(d.Limiters.General.Middleware())
	}

	v1 := r.Group("/api/v1", auth.Middleware(d.JWTSecret))

	reports := v1.Group("/analytics", auth.RequireAdmin())
	if d.Limiters != nil {
		reports.Use(d.Limiters.Admin.Middleware())
	}
	reports.GET("/dashboard", d.Analytics.Dashboard)
	reports.GET("/realtime", d.Analytics.Realtime)

	track := v1.Group("/analytics/track", BotFilter())
	if d.Progressive != nil {
		track.Use(d.Progressive.Middleware())
	}
	track.POST("/search", d.Tracking.TrackSearch)
	track.POST("/click", d.Tracking.TrackClick)
	track.POST("/booking", d.Tracking.TrackBooking)
}
