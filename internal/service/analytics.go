// Package service assembles the analytics reports from the repository's
// aggregation queries.
package service

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tripvar/search-analytics/internal/domain"
	"github.com/tripvar/search-analytics/internal/logger"
	"github.com/tripvar/search-analytics/internal/storage"
)

// Defaults for dashboard and realtime queries.
const (
	DefaultTopLimit     = 10
	RealtimeTopLimit    = 5
	DefaultRangeDays    = 30
	RealtimeWindow      = time.Hour
	DefaultQueryTimeout = 5 * time.Second
)

// Repository is the read-side storage interface the service depends on.
type Repository interface {
	TopTerms(ctx context.Context, start, end time.Time, limit int) ([]domain.TermStat, error)
	TopCategories(ctx context.Context, start, end time.Time, limit int) ([]domain.TermStat, error)
	TopDestinations(ctx context.Context, start, end time.Time, limit int) ([]domain.TermStat, error)
	Trends(ctx context.Context, start, end time.Time) ([]domain.TrendPoint, error)
	PriceRanges(ctx context.Context, start, end time.Time, limit int) ([]domain.PriceRangeStat, error)
	GuestPrefs(ctx context.Context, start, end time.Time) ([]domain.GuestStat, error)
	Conversion(ctx context.Context, start, end time.Time) (storage.ConversionCounts, error)
	CountSearchesSince(ctx context.Context, since time.Time) (int, error)
	ActiveUsersSince(ctx context.Context, since time.Time) (int, error)
}

// Service computes analytics reports.
type Service struct {
	repo         Repository
	log          logger.Logger
	queryTimeout time.Duration
	now          func() time.Time
}

// New creates a Service. A queryTimeout of zero falls back to
// DefaultQueryTimeout.
func New(repo Repository, log logger.Logger, queryTimeout time.Duration) *Service {
	if queryTimeout == 0 {
		queryTimeout = DefaultQueryTimeout
	}
	return &Service{
		repo:         repo,
		log:          log,
		queryTimeout: queryTimeout,
		now:          time.Now,
	}
}

// Dashboard builds the full dashboard report for the given range. A zero
// end defaults to now, a zero start to DefaultRangeDays before end, and a
// non-positive limit to DefaultTopLimit. The aggregation queries run
// concurrently under one deadline.
func (s *Service) Dashboard(ctx context.Context, start, end time.Time, limit int) (*domain.DashboardReport, error) {
	if end.IsZero() {
		end = s.now()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -DefaultRangeDays)
	}
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	report := &domain.DashboardReport{
		DateRange: domain.DateRange{Start: start, End: end},
	}
	var counts storage.ConversionCounts

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		report.TopSearchTerms, err = s.repo.TopTerms(gctx, start, end, limit)
		return err
	})
	g.Go(func() (err error) {
		report.TopCategories, err = s.repo.TopCategories(gctx, start, end, limit)
		return err
	})
	g.Go(func() (err error) {
		report.TopDestinations, err = s.repo.TopDestinations(gctx, start, end, limit)
		return err
	})
	g.Go(func() (err error) {
		report.SearchTrends, err = s.repo.Trends(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		report.PriceRanges, err = s.repo.PriceRanges(gctx, start, end, limit)
		return err
	})
	g.Go(func() (err error) {
		report.GuestCounts, err = s.repo.GuestPrefs(gctx, start, end)
		return err
	})
	g.Go(func() (err error) {
		counts, err = s.repo.Conversion(gctx, start, end)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Summary = domain.DashboardSummary{TotalSearches: counts.Total}
	report.Conversion = conversionMetrics(counts)
	return report, nil
}

// RealTime builds the trailing-hour stats.
func (s *Service) RealTime(ctx context.Context) (*domain.RealTimeStats, error) {
	now := s.now()
	since := now.Add(-RealtimeWindow)

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	stats := &domain.RealTimeStats{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Searches, err = s.repo.CountSearchesSince(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		stats.ActiveUsers, err = s.repo.ActiveUsersSince(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		stats.TopSearches, err = s.repo.TopTerms(gctx, since, now, RealtimeTopLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// conversionMetrics derives the rate metrics from raw counters. All rates
// are zero when no searches fell in range.
func conversionMetrics(c storage.ConversionCounts) domain.ConversionMetrics {
	m := domain.ConversionMetrics{
		TotalSearches: c.Total,
		WithBookings:  c.WithBookings,
		WithClicks:    c.WithClicks,
	}
	if c.Total == 0 {
		return m
	}

	m.AvgClicksPerSearch = round2(float64(c.TotalClicks) / float64(c.Total))
	m.ConversionRate = round2(float64(c.WithBookings) / float64(c.Total) * 100)
	m.ClickThroughRate = round2(float64(c.WithClicks) / float64(c.Total) * 100)
	return m
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
