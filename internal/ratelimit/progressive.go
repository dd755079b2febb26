package ratelimit

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tripvar/search-analytics/internal/logger"
)

// State is the escalation state of a client key.
type State string

const (
	// StateNormal applies the base profile.
	StateNormal State = "normal"
	// StateElevated applies the stricter profile after a recent violation.
	StateElevated State = "elevated"
)

// DefaultViolationDecay is how long a key stays elevated after its most
// recent violation.
const DefaultViolationDecay = time.Hour

type violation struct {
	count int
	last  time.Time
}

// ViolationTracker counts consecutive rate-limit violations per key with
// time-based decay. Process-local, like the memory counter store.
type ViolationTracker struct {
	mu    sync.Mutex
	m     map[string]*violation
	decay time.Duration

	now func() time.Time
}

// NewViolationTracker creates a tracker with the given decay window.
func NewViolationTracker(decay time.Duration) *ViolationTracker {
	if decay <= 0 {
		decay = DefaultViolationDecay
	}
	return &ViolationTracker{
		m:     make(map[string]*violation),
		decay: decay,
		now:   time.Now,
	}
}

// State reports the escalation state for key, expiring stale violations.
func (t *ViolationTracker) State(key string) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.m[key]
	if !ok {
		return StateNormal
	}
	if t.now().Sub(v.last) > t.decay {
		delete(t.m, key)
		return StateNormal
	}
	if v.count > 0 {
		return StateElevated
	}
	return StateNormal
}

// Record notes one violation for key.
func (t *ViolationTracker) Record(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.m[key]
	if !ok {
		v = &violation{}
		t.m[key] = v
	}
	v.count++
	v.last = t.now()
}

// Count returns the current violation count for key, after decay.
func (t *ViolationTracker) Count(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.m[key]
	if !ok {
		return 0
	}
	if t.now().Sub(v.last) > t.decay {
		delete(t.m, key)
		return 0
	}
	return v.count
}

// Progressive holds a client to a stricter profile once it has violated the
// base limit, until the violation decays.
type Progressive struct {
	base     *Limiter
	elevated *Limiter
	tracker  *ViolationTracker
	key      KeyFunc
	log      logger.Logger
}

// NewProgressive composes a base and a stricter limiter with a violation
// tracker keyed by IP.
func NewProgressive(base, elevated *Limiter, tracker *ViolationTracker, log logger.Logger) *Progressive {
	return &Progressive{
		base:     base,
		elevated: elevated,
		tracker:  tracker,
		key:      ByIP,
		log:      log,
	}
}

// Middleware selects the active profile per request and records violations
// on rejection, so the next request already sees the stricter limit.
func (p *Progressive) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := p.key(c)

		active := p.base
		if p.tracker.State(key) == StateElevated {
			active = p.elevated
		}

		res, err := active.Allow(c.Request.Context(), key)
		if err != nil {
			p.log.Warn("Rate limit store unavailable, allowing request",
				logger.String("limiter", active.Name()),
				logger.Error(err),
			)
			c.Next()
			return
		}

		if !res.Allowed {
			p.tracker.Record(key)
			active.reject(c, res)
			return
		}

		c.Next()
	}
}
