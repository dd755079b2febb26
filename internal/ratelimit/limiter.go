package ratelimit

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tripvar/search-analytics/internal/logger"
)

// Machine-readable rejection codes. Clients special-case 429 + code, so
// these values are part of the API contract.
const (
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeGeoBlocked        = "GEO_BLOCKED"
	CodeIPBlocked         = "IP_BLOCKED"
	CodeIPTempBlocked     = "IP_TEMPORARILY_BLOCKED"
	CodeDDoSTriggered     = "DDOS_PROTECTION_TRIGGERED"
)

// defaultMessage is the 429 body text when a profile supplies none.
const defaultMessage = "too many requests, please try again later"

// Profile is a window size and request ceiling pair.
type Profile struct {
	Window time.Duration
	Max    int
}

// Result is the outcome of a single counter check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Config describes one named limiter.
type Config struct {
	// Name namespaces this limiter's counters and appears in logs.
	Name string
	Profile
	// Key derives the client identity; defaults to the request IP.
	Key KeyFunc
	// SkipSuccessful refunds the increment when the request completes
	// below HTTP 400 (login attempts only count when they fail).
	SkipSuccessful bool
	// Message overrides the human-readable 429 body text.
	Message string
}

// Limiter enforces a fixed-window limit per derived key.
type Limiter struct {
	cfg   Config
	store CounterStore
	log   logger.Logger

	// OnReject, when set, is invoked with the limiter name on every
	// rejection. Used to feed telemetry without coupling to it.
	OnReject func(limiter string)
}

// New creates a limiter over the given counter store.
func New(cfg Config, store CounterStore, log logger.Logger) *Limiter {
	if cfg.Key == nil {
		cfg.Key = ByIP
	}
	if cfg.Message == "" {
		cfg.Message = defaultMessage
	}
	return &Limiter{cfg: cfg, store: store, log: log}
}

// Name returns the limiter's configured name.
func (l *Limiter) Name() string {
	return l.cfg.Name
}

// storeKey namespaces a client key under this limiter's name so limiters
// sharing a store never collide.
func (l *Limiter) storeKey(key string) string {
	return "rl:" + l.cfg.Name + ":" + key
}

// Allow counts one request for key and reports whether it is within the
// limit. RetryAfter is the full window length in whole seconds.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	count, err := l.store.Incr(ctx, l.storeKey(key), l.cfg.Window)
	if err != nil {
		return Result{}, err
	}

	if count > l.cfg.Max {
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: retryAfter(l.cfg.Window),
		}, nil
	}

	return Result{Allowed: true, Remaining: l.cfg.Max - count}, nil
}

// refund undoes the increment for a successful request.
func (l *Limiter) refund(ctx context.Context, key string) {
	if err := l.store.Decr(ctx, l.storeKey(key)); err != nil {
		l.log.Warn("Failed to refund rate limit counter",
			logger.String("limiter", l.cfg.Name),
			logger.Error(err),
		)
	}
}

// Middleware returns a gin handler enforcing this limiter. Store failures
// fail open: a broken Redis must not take the API down with it.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := l.cfg.Key(c)

		res, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			l.log.Warn("Rate limit store unavailable, allowing request",
				logger.String("limiter", l.cfg.Name),
				logger.Error(err),
			)
			c.Next()
			return
		}

		if !res.Allowed {
			l.reject(c, res)
			return
		}

		c.Next()

		if l.cfg.SkipSuccessful && c.Writer.Status() < http.StatusBadRequest {
			l.refund(c.Request.Context(), key)
		}
	}
}

// reject logs the violation and writes the 429 response.
func (l *Limiter) reject(c *gin.Context, res Result) {
	l.log.Warn("Rate limit exceeded",
		logger.String("limiter", l.cfg.Name),
		logger.String("ip", c.ClientIP()),
		logger.String("user_agent", c.Request.UserAgent()),
		logger.String("url", c.Request.URL.String()),
		logger.String("method", c.Request.Method),
		logger.Int("limit", l.cfg.Max),
		logger.Duration("window", l.cfg.Window),
	)

	if l.OnReject != nil {
		l.OnReject(l.cfg.Name)
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":      l.cfg.Message,
		"code":       CodeRateLimitExceeded,
		"retryAfter": int(res.RetryAfter.Seconds()),
	})
}

// retryAfter converts a window to whole seconds, rounding up.
func retryAfter(window time.Duration) time.Duration {
	secs := math.Ceil(window.Seconds())
	return time.Duration(secs) * time.Second
}
