// Package handler contains the gin HTTP handlers.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tripvar/search-analytics/internal/domain"
	"github.com/tripvar/search-analytics/internal/logger"
	"github.com/tripvar/search-analytics/internal/telemetry"
)

// Machine-readable error codes returned by the handlers.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeBufferFull      = "BUFFER_FULL"
)

// dateOnly is the short form accepted for dashboard range parameters.
const dateOnly = "2006-01-02"

// Reporter builds analytics reports.
type Reporter interface {
	Dashboard(ctx context.Context, start, end time.Time, limit int) (*domain.DashboardReport, error)
	RealTime(ctx context.Context) (*domain.RealTimeStats, error)
}

// Analytics serves the dashboard and realtime report endpoints.
type Analytics struct {
	svc     Reporter
	log     logger.Logger
	metrics *telemetry.Metrics
}

// NewAnalytics creates the analytics report handler.
func NewAnalytics(svc Reporter, log logger.Logger, metrics *telemetry.Metrics) *Analytics {
	return &Analytics{svc: svc, log: log, metrics: metrics}
}

// Dashboard handles GET /api/v1/analytics/dashboard.
func (h *Analytics) Dashboard(c *gin.Context) {
	h.metrics.DashboardQueries.WithLabelValues("dashboard").Inc()

	start, ok := parseDateParam(c, "startDate")
	if !ok {
		return
	}
	end, ok := parseDateParam(c, "endDate")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	report, err := h.svc.Dashboard(c.Request.Context(), start, end, limit)
	if err != nil {
		h.log.Error("Failed to build dashboard report", logger.Error(err))
		internalError(c)
		return
	}

	success(c, report, "dashboard report generated")
}

// Realtime handles GET /api/v1/analytics/realtime.
func (h *Analytics) Realtime(c *gin.Context) {
	h.metrics.DashboardQueries.WithLabelValues("realtime").Inc()

	stats, err := h.svc.RealTime(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to build realtime stats", logger.Error(err))
		internalError(c)
		return
	}

	success(c, stats, "realtime stats generated")
}

// parseDateParam reads an optional query parameter as RFC 3339 or
// YYYY-MM-DD. On a malformed value it writes the 400 response and returns
// ok=false.
func parseDateParam(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(dateOnly, raw); err == nil {
		return t, true
	}

	badRequest(c, name+" must be RFC 3339 or YYYY-MM-DD")
	return time.Time{}, false
}

// success writes the standard success envelope.
func success(c *gin.Context, data any, message string) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"data":    data,
		"message": message,
	})
}

// badRequest writes a 400 validation error.
func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": message,
		"code":  CodeValidationError,
	})
}

// internalError writes a 500 response without leaking details.
func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "internal server error",
		"code":  CodeInternalError,
	})
}
