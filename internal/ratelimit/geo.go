package ratelimit

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tripvar/search-analytics/internal/logger"
)

// Country code headers checked in order. These are supplied by an upstream
// proxy and are spoofable when no such proxy is deployed; treat the geo
// layer as traffic shaping, not an access control boundary.
const (
	cfCountryHeader     = "CF-IPCountry"
	customCountryHeader = "X-Country-Code"

	// UnknownCountry is used when no country header is present.
	UnknownCountry = "unknown"
)

// GeoConfig configures the country-based limiter.
type GeoConfig struct {
	// Allowed is accepted but intentionally not enforced: the limiter has
	// never rejected countries absent from it, and enforcing it now is a
	// product decision, not a cleanup.
	Allowed []string
	// Blocked countries are rejected outright with 403 GEO_BLOCKED.
	Blocked []string
	// Limits maps a country code to a dedicated rate limit profile.
	Limits map[string]Profile
}

// Geo applies country block lists and country-specific limit profiles.
type Geo struct {
	blocked  map[string]struct{}
	limiters map[string]*Limiter
	log      logger.Logger
}

// NewGeo builds the geo limiter. One limiter per configured country is
// created over the shared store, keyed by client IP.
func NewGeo(cfg GeoConfig, store CounterStore, log logger.Logger) *Geo {
	g := &Geo{
		blocked:  make(map[string]struct{}, len(cfg.Blocked)),
		limiters: make(map[string]*Limiter, len(cfg.Limits)),
		log:      log,
	}
	for _, cc := range cfg.Blocked {
		g.blocked[strings.ToUpper(cc)] = struct{}{}
	}
	for cc, profile := range cfg.Limits {
		cc = strings.ToUpper(cc)
		g.limiters[cc] = New(Config{
			Name:    "geo_" + strings.ToLower(cc),
			Profile: profile,
		}, store, log)
	}
	return g
}

// CountryCode extracts the request's country from trusted proxy headers.
func CountryCode(c *gin.Context) string {
	if cc := c.GetHeader(cfCountryHeader); cc != "" {
		return strings.ToUpper(cc)
	}
	if cc := c.GetHeader(customCountryHeader); cc != "" {
		return strings.ToUpper(cc)
	}
	return UnknownCountry
}

// Middleware rejects blocked countries and applies per-country limits.
// Countries with no specific configuration pass through unconditionally.
func (g *Geo) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		country := CountryCode(c)

		if _, ok := g.blocked[country]; ok {
			g.log.Warn("Blocked country request rejected",
				logger.String("country", country),
				logger.String("ip", c.ClientIP()),
				logger.String("url", c.Request.URL.String()),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access from this region is not permitted",
				"code":  CodeGeoBlocked,
			})
			return
		}

		lim, ok := g.limiters[country]
		if !ok {
			c.Next()
			return
		}

		res, err := lim.Allow(c.Request.Context(), ByIP(c))
		if err != nil {
			g.log.Warn("Rate limit store unavailable, allowing request",
				logger.String("limiter", lim.Name()),
				logger.Error(err),
			)
			c.Next()
			return
		}
		if !res.Allowed {
			lim.reject(c, res)
			return
		}

		c.Next()
	}
}
