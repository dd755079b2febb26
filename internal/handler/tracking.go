package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tripvar/search-analytics/internal/auth"
	"github.com/tripvar/search-analytics/internal/domain"
	"github.com/tripvar/search-analytics/internal/logger"
	"github.com/tripvar/search-analytics/internal/telemetry"
)

// BotContextKey flags requests from known crawlers. Tracking handlers
// acknowledge them normally but keep them out of the analytics data.
const BotContextKey = "is_bot"

// Attributor applies click and booking attribution to stored searches.
type Attributor interface {
	AppendClick(ctx context.Context, searchID, destinationID string, clickedAt time.Time) (bool, error)
	AttachBooking(ctx context.Context, searchID, bookingID string) (bool, error)
}

// EventSink accepts search events for asynchronous persistence.
type EventSink interface {
	Send(event domain.SearchEvent) bool
}

// Tracking serves the event ingestion endpoints.
type Tracking struct {
	sink       EventSink
	attributor Attributor
	log        logger.Logger
	metrics    *telemetry.Metrics
	timeout    time.Duration
	now        func() time.Time
}

// NewTracking creates the tracking handler. The timeout bounds the
// synchronous attribution writes.
func NewTracking(
	sink EventSink,
	attributor Attributor,
	log logger.Logger,
	metrics *telemetry.Metrics,
	timeout time.Duration,
) *Tracking {
	return &Tracking{
		sink:       sink,
		attributor: attributor,
		log:        log,
		metrics:    metrics,
		timeout:    timeout,
		now:        time.Now,
	}
}

type trackSearchRequest struct {
	SearchTerm     *string  `json:"searchTerm"`
	Category       *string  `json:"category"`
	Destination    *string  `json:"destination"`
	MinPrice       *float64 `json:"minPrice"`
	MaxPrice       *float64 `json:"maxPrice"`
	Guests         *int     `json:"guests"`
	ResultsCount   int      `json:"resultsCount"`
	ResponseTimeMs int      `json:"responseTime"`
}

// TrackSearch handles POST /api/v1/analytics/track/search. The event is
// buffered; persistence happens on the store's flush schedule.
func (h *Tracking) TrackSearch(c *gin.Context) {
	var req trackSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	if c.GetBool(BotContextKey) {
		h.log.Debug("Search event from bot discarded",
			logger.String("user_agent", c.Request.UserAgent()),
		)
		success(c, nil, "search tracked")
		return
	}

	event := domain.SearchEvent{
		ID:             uuid.NewString(),
		Timestamp:      h.now().UTC(),
		SearchTerm:     req.SearchTerm,
		Category:       req.Category,
		Destination:    req.Destination,
		MinPrice:       req.MinPrice,
		MaxPrice:       req.MaxPrice,
		Guests:         req.Guests,
		ResultsCount:   req.ResultsCount,
		ResponseTimeMs: req.ResponseTimeMs,
	}
	if userID := auth.UserID(c); userID != "" {
		event.UserID = &userID
	}

	if !h.sink.Send(event) {
		h.metrics.EventsDropped.Inc()
		h.log.Warn("Search event dropped, ingest buffer full",
			logger.String("event_id", event.ID),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "event buffer full",
			"code":  CodeBufferFull,
		})
		return
	}

	h.metrics.EventsTracked.WithLabelValues("search").Inc()
	success(c, gin.H{"searchId": event.ID}, "search tracked")
}

type trackClickRequest struct {
	SearchID      string `json:"searchId"`
	DestinationID string `json:"destinationId"`
}

// TrackClick handles POST /api/v1/analytics/track/click.
func (h *Tracking) TrackClick(c *gin.Context) {
	var req trackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.SearchID == "" || req.DestinationID == "" {
		badRequest(c, "searchId and destinationId are required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	found, err := h.attributor.AppendClick(ctx, req.SearchID, req.DestinationID, h.now().UTC())
	if err != nil {
		h.log.Error("Failed to record click",
			logger.Error(err),
			logger.String("search_id", req.SearchID),
		)
		internalError(c)
		return
	}
	if !found {
		h.log.Warn("Click for unknown search ignored",
			logger.String("search_id", req.SearchID),
			logger.String("destination_id", req.DestinationID),
		)
	} else {
		h.metrics.EventsTracked.WithLabelValues("click").Inc()
	}

	success(c, nil, "click tracked")
}

type trackBookingRequest struct {
	SearchID  string `json:"searchId"`
	BookingID string `json:"bookingId"`
}

// TrackBooking handles POST /api/v1/analytics/track/booking.
func (h *Tracking) TrackBooking(c *gin.Context) {
	var req trackBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.SearchID == "" || req.BookingID == "" {
		badRequest(c, "searchId and bookingId are required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	updated, err := h.attributor.AttachBooking(ctx, req.SearchID, req.BookingID)
	if err != nil {
		h.log.Error("Failed to record booking",
			logger.Error(err),
			logger.String("search_id", req.SearchID),
		)
		internalError(c)
		return
	}
	if !updated {
		h.log.Warn("Booking attribution ignored, search unknown or already attributed",
			logger.String("search_id", req.SearchID),
			logger.String("booking_id", req.BookingID),
		)
	} else {
		h.metrics.EventsTracked.WithLabelValues("booking").Inc()
	}

	success(c, nil, "booking tracked")
}
