package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripvar/search-analytics/internal/domain"
	"github.com/tripvar/search-analytics/internal/handler"
	"github.com/tripvar/search-analytics/internal/logger"
	"github.com/tripvar/search-analytics/internal/telemetry"
)

type fakeReporter struct {
	report    *domain.DashboardReport
	stats     *domain.RealTimeStats
	err       error
	lastStart time.Time
	lastEnd   time.Time
	lastLimit int
}

func (f *fakeReporter) Dashboard(_ context.Context, start, end time.Time, limit int) (*domain.DashboardReport, error) {
	f.lastStart, f.lastEnd, f.lastLimit = start, end, limit
	return f.report, f.err
}

func (f *fakeReporter) RealTime(_ context.Context) (*domain.RealTimeStats, error) {
	return f.stats, f.err
}

func analyticsRouter(reporter *fakeReporter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	metrics := telemetry.New(prometheus.NewRegistry())
	h := handler.NewAnalytics(reporter, logger.NewNop(), metrics)

	r := gin.New()
	r.GET("/analytics/dashboard", h.Dashboard)
	r.GET("/analytics/realtime", h.Realtime)
	return r
}

func TestDashboard_OK(t *testing.T) {
	reporter := &fakeReporter{
		report: &domain.DashboardReport{
			Summary: domain.DashboardSummary{TotalSearches: 42},
		},
	}
	r := analyticsRouter(reporter)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/analytics/dashboard", http.NoBody)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"success"`)
	assert.Contains(t, w.Body.String(), `"totalSearches":42`)
}

func TestDashboard_ParsesRangeAndLimit(t *testing.T) {
	reporter := &fakeReporter{report: &domain.DashboardReport{}}
	r := analyticsRouter(reporter)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/analytics/dashboard?startDate=2026-01-01&endDate=2026-02-01&limit=5", http.NoBody)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), reporter.lastStart)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), reporter.lastEnd)
	assert.Equal(t, 5, reporter.lastLimit)
}

func TestDashboard_BadDate(t *testing.T) {
	r := analyticsRouter(&fakeReporter{report: &domain.DashboardReport{}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/analytics/dashboard?startDate=yesterday", http.NoBody)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), handler.CodeValidationError)
}

func TestDashboard_BadLimit(t *testing.T) {
	r := analyticsRouter(&fakeReporter{report: &domain.DashboardReport{}})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/analytics/dashboard?limit=-3", http.NoBody)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDashboard_ServiceError(t *testing.T) {
	r := analyticsRouter(&fakeReporter{err: errors.New("db down")})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/analytics/dashboard", http.NoBody)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), handler.CodeInternalError)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestRealtime_OK(t *testing.T) {
	reporter := &fakeReporter{
		stats: &domain.RealTimeStats{Searches: 7, ActiveUsers: 3},
	}
	r := analyticsRouter(reporter)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/analytics/realtime", http.NoBody)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"searches":7`)
	assert.Contains(t, w.Body.String(), `"activeUsers":3`)
}
