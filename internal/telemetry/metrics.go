// Package telemetry exposes Prometheus metrics for the service.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	// RateLimitRejections counts 429 responses by limiter name.
	RateLimitRejections *prometheus.CounterVec
	// DDoSBlocks counts IPs newly blocked by the DDoS guard.
	DDoSBlocks prometheus.Counter
	// EventsTracked counts accepted tracking calls by type
	// (search, click, booking).
	EventsTracked *prometheus.CounterVec
	// EventsDropped counts search events dropped because the ingest
	// buffer was full.
	EventsDropped prometheus.Counter
	// DashboardQueries counts dashboard and realtime report requests.
	DashboardQueries *prometheus.CounterVec
}

// New registers the service metrics on the given registerer. Tests pass a
// fresh prometheus.NewRegistry to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RateLimitRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "search_analytics_ratelimit_rejections_total",
			Help: "Requests rejected with 429 by limiter name",
		}, []string{"limiter"}),
		DDoSBlocks: factory.NewCounter(prometheus.CounterOpts{
			Name: "search_analytics_ddos_blocks_total",
			Help: "IPs temporarily blocked by the DDoS guard",
		}),
		EventsTracked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "search_analytics_events_tracked_total",
			Help: "Tracking calls accepted by event type",
		}, []string{"type"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "search_analytics_events_dropped_total",
			Help: "Search events dropped due to a full ingest buffer",
		}),
		DashboardQueries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "search_analytics_report_queries_total",
			Help: "Analytics report requests by report kind",
		}, []string{"report"}),
	}
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
