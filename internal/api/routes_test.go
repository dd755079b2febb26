package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tripvar/search-analytics/internal/auth"
	"github.com/tripvar/search-analytics/internal/domain"
	"github.com/tripvar/search-analytics/internal/handler"
	"github.com/tripvar/search-analytics/internal/logger"
	"github.com/tripvar/search-analytics/internal/ratelimit"
	"github.com/tripvar/search-analytics/internal/storage"
	"github.com/tripvar/search-analytics/internal/telemetry"
)

const testSecret = "routes-test-secret"

type stubReporter struct{}

func (stubReporter) Dashboard(context.Context, time.Time, time.Time, int) (*domain.DashboardReport, error) {
	return &domain.DashboardReport{}, nil
}

func (stubReporter) RealTime(context.Context) (*domain.RealTimeStats, error) {
	return &domain.RealTimeStats{}, nil
}

type stubAttributor struct{}

func (stubAttributor) AppendClick(context.Context, string, string, time.Time) (bool, error) {
	return true, nil
}

func (stubAttributor) AttachBooking(context.Context, string, string) (bool, error) {
	return true, nil
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, _, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.NewNop()
	metrics := telemetry.New(prometheus.NewRegistry())
	store := ratelimit.NewMemoryStore()

	r := gin.New()
	RegisterRoutes(r, Deps{
		JWTSecret: testSecret,
		Limiters:  ratelimit.NewLimiters(store, log),
		Analytics: handler.NewAnalytics(stubReporter{}, log, metrics),
		Tracking: handler.NewTracking(
			storage.NewBuffer(10), stubAttributor{}, log, metrics, time.Second),
		Health: handler.NewHealth(db, "search-analytics", "test"),
	})
	return r
}

func signToken(t *testing.T, role string) string {
	t.Helper()

	claims := auth.Claims{
		Sub:  "user-1",
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func do(r *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("User-Agent", "TripvarApp/2.4.1")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes_HealthIsPublic(t *testing.T) {
	r := testRouter(t)

	if w := do(r, http.MethodGet, "/health", "", ""); w.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", w.Code)
	}
	if w := do(r, http.MethodGet, "/metrics", "", ""); w.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d, want 200", w.Code)
	}
}

func TestRoutes_DashboardRequiresToken(t *testing.T) {
	r := testRouter(t)

	w := do(r, http.MethodGet, "/api/v1/analytics/dashboard", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("dashboard without token = %d, want 401", w.Code)
	}
}

func TestRoutes_DashboardRequiresAdmin(t *testing.T) {
	r := testRouter(t)

	w := do(r, http.MethodGet, "/api/v1/analytics/dashboard", signToken(t, ""), "")
	if w.Code != http.StatusForbidden {
		t.Errorf("dashboard with non-admin token = %d, want 403", w.Code)
	}

	w = do(r, http.MethodGet, "/api/v1/analytics/dashboard", signToken(t, auth.RoleAdmin), "")
	if w.Code != http.StatusOK {
		t.Errorf("dashboard with admin token = %d, want 200", w.Code)
	}
}

func TestRoutes_TrackAllowsAnyAuthenticatedUser(t *testing.T) {
	r := testRouter(t)

	w := do(r, http.MethodPost, "/api/v1/analytics/track/search",
		signToken(t, ""), `{"searchTerm":"paris"}`)
	if w.Code != http.StatusOK {
		t.Errorf("track/search with user token = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPost, "/api/v1/analytics/track/click",
		"", `{"searchId":"s","destinationId":"d"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("track/click without token = %d, want 401", w.Code)
	}
}
