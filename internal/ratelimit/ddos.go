package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tripvar/search-analytics/internal/logger"
)

// GuardConfig configures the DDoS guard.
type GuardConfig struct {
	// Window is the counting window (default 60s).
	Window time.Duration
	// MaxRequests is the per-IP ceiling within one window (default 100).
	MaxRequests int
	// BlockDuration is how long an offending IP stays blocked (default 5m).
	BlockDuration time.Duration
	// Whitelist IPs bypass the guard entirely.
	Whitelist []string
	// Blacklist IPs are rejected outright with 403 IP_BLOCKED.
	Blacklist []string
}

// SetDefaults applies default values where unset.
func (c *GuardConfig) SetDefaults() {
	if c.Window == 0 {
		c.Window = 60 * time.Second
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = 100
	}
	if c.BlockDuration == 0 {
		c.BlockDuration = 5 * time.Minute
	}
}

// Decision is the guard's verdict for one request.
type Decision struct {
	Allowed    bool
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
}

// Guard is a high-frequency per-IP counter with temporary blocking. It
// keeps its own state rather than reusing the limiter store because a
// block must outlive the counting window that triggered it.
type Guard struct {
	mu        sync.Mutex
	counts    map[string]*window
	blocked   map[string]time.Time
	whitelist map[string]struct{}
	blacklist map[string]struct{}
	cfg       GuardConfig
	log       logger.Logger

	now func() time.Time

	// OnBlock, when set, is invoked each time an IP is newly blocked.
	OnBlock func()
}

// NewGuard creates a DDoS guard with the given configuration.
func NewGuard(cfg GuardConfig, log logger.Logger) *Guard {
	cfg.SetDefaults()

	g := &Guard{
		counts:    make(map[string]*window),
		blocked:   make(map[string]time.Time),
		whitelist: make(map[string]struct{}, len(cfg.Whitelist)),
		blacklist: make(map[string]struct{}, len(cfg.Blacklist)),
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
	for _, ip := range cfg.Whitelist {
		g.whitelist[ip] = struct{}{}
	}
	for _, ip := range cfg.Blacklist {
		g.blacklist[ip] = struct{}{}
	}
	return g
}

// Check records one request from ip and returns the verdict.
func (g *Guard) Check(ip string) Decision {
	if _, ok := g.whitelist[ip]; ok {
		return Decision{Allowed: true}
	}
	if _, ok := g.blacklist[ip]; ok {
		return Decision{
			Status:  http.StatusForbidden,
			Code:    CodeIPBlocked,
			Message: "access denied",
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	if until, ok := g.blocked[ip]; ok {
		if now.Before(until) {
			return Decision{
				Status:     http.StatusTooManyRequests,
				Code:       CodeIPTempBlocked,
				Message:    "temporarily blocked due to excessive requests",
				RetryAfter: until.Sub(now),
			}
		}
		delete(g.blocked, ip)
	}

	w, ok := g.counts[ip]
	if !ok || now.After(w.expiresAt) {
		w = &window{expiresAt: now.Add(g.cfg.Window)}
		g.counts[ip] = w
	}
	w.count++

	if w.count > g.cfg.MaxRequests {
		g.blocked[ip] = now.Add(g.cfg.BlockDuration)

		g.log.Warn("DDoS protection triggered, IP blocked",
			logger.String("ip", ip),
			logger.Int("requests", w.count),
			logger.Duration("window", g.cfg.Window),
			logger.Duration("block_duration", g.cfg.BlockDuration),
		)
		if g.OnBlock != nil {
			g.OnBlock()
		}

		return Decision{
			Status:     http.StatusTooManyRequests,
			Code:       CodeDDoSTriggered,
			Message:    "request rate exceeded protective threshold",
			RetryAfter: g.cfg.BlockDuration,
		}
	}

	return Decision{Allowed: true}
}

// Middleware applies the guard to every request.
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		d := g.Check(c.ClientIP())
		if d.Allowed {
			c.Next()
			return
		}

		body := gin.H{
			"error": d.Message,
			"code":  d.Code,
		}
		if d.RetryAfter > 0 {
			body["retryAfter"] = int(d.RetryAfter.Seconds())
		}
		c.AbortWithStatusJSON(d.Status, body)
	}
}

// StartJanitor launches a goroutine that drops expired windows and blocks
// until done is closed.
func (g *Guard) StartJanitor(done <-chan struct{}, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.sweep()
			case <-done:
				return
			}
		}
	}()
}

func (g *Guard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for ip, w := range g.counts {
		if now.After(w.expiresAt) {
			delete(g.counts, ip)
		}
	}
	for ip, until := range g.blocked {
		if now.After(until) {
			delete(g.blocked, ip)
		}
	}
}
