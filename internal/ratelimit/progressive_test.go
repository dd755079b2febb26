package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tripvar/search-analytics/internal/logger"
	"github.com/tripvar/search-analytics/internal/ratelimit"
)

func newProgressive(t *testing.T, clock *fakeClock, baseMax, strictMax int) (*ratelimit.Progressive, *ratelimit.ViolationTracker) {
	t.Helper()

	store := ratelimit.NewMemoryStore()
	store.SetClock(clock.Now)
	log := logger.NewNop()

	base := ratelimit.New(ratelimit.Config{
		Name:    "search",
		Profile: ratelimit.Profile{Window: time.Minute, Max: baseMax},
	}, store, log)
	strict := ratelimit.New(ratelimit.Config{
		Name:    "search_strict",
		Profile: ratelimit.Profile{Window: time.Minute, Max: strictMax},
	}, store, log)

	tracker := ratelimit.NewViolationTracker(time.Hour)
	tracker.SetClock(clock.Now)

	return ratelimit.NewProgressive(base, strict, tracker, log), tracker
}

func serveProgressive(p *ratelimit.Progressive, ip string) int {
	r := gin.New()
	r.GET("/", p.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = ip + ":1234"
	r.ServeHTTP(w, req)
	return w.Code
}

func TestProgressive_EscalatesAfterViolation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	clock := newFakeClock()
	p, tracker := newProgressive(t, clock, 3, 1)

	// Trip the base limiter: 3 allowed, 4th rejected and recorded.
	for i := 0; i < 3; i++ {
		if code := serveProgressive(p, "5.5.5.5"); code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, code)
		}
	}
	if code := serveProgressive(p, "5.5.5.5"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on violation, got %d", code)
	}
	if tracker.Count("5.5.5.5") != 1 {
		t.Fatalf("expected 1 recorded violation, got %d", tracker.Count("5.5.5.5"))
	}

	// New window: the strict profile (max 1) now applies immediately,
	// even though the base profile would still have headroom.
	clock.Advance(2 * time.Minute)
	if code := serveProgressive(p, "5.5.5.5"); code != http.StatusOK {
		t.Fatalf("expected first strict-window request allowed, got %d", code)
	}
	if code := serveProgressive(p, "5.5.5.5"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 under strict profile, got %d", code)
	}
}

func TestProgressive_DecayRestoresBaseProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)

	clock := newFakeClock()
	p, tracker := newProgressive(t, clock, 2, 1)

	// Record a violation.
	serveProgressive(p, "6.6.6.6")
	serveProgressive(p, "6.6.6.6")
	if code := serveProgressive(p, "6.6.6.6"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 to record a violation, got %d", code)
	}

	// More than the decay window later, the key is back to normal.
	clock.Advance(time.Hour + time.Minute)
	if tracker.State("6.6.6.6") != ratelimit.StateNormal {
		t.Fatal("expected state to decay back to normal")
	}

	// Base profile (max 2) applies again in the fresh window.
	if code := serveProgressive(p, "6.6.6.6"); code != http.StatusOK {
		t.Fatalf("expected 200 after decay, got %d", code)
	}
	if code := serveProgressive(p, "6.6.6.6"); code != http.StatusOK {
		t.Fatalf("expected second request allowed under base profile, got %d", code)
	}
}

func TestViolationTracker_CountsAndDecays(t *testing.T) {
	clock := newFakeClock()
	tracker := ratelimit.NewViolationTracker(time.Hour)
	tracker.SetClock(clock.Now)

	if tracker.State("k") != ratelimit.StateNormal {
		t.Fatal("fresh key should be normal")
	}

	tracker.Record("k")
	tracker.Record("k")
	if got := tracker.Count("k"); got != 2 {
		t.Fatalf("expected 2 violations, got %d", got)
	}
	if tracker.State("k") != ratelimit.StateElevated {
		t.Fatal("key with violations should be elevated")
	}

	clock.Advance(61 * time.Minute)
	if got := tracker.Count("k"); got != 0 {
		t.Fatalf("expected violations to decay to 0, got %d", got)
	}
}
