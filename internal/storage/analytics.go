package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tripvar/search-analytics/internal/domain"
)

// groupColumns whitelists the search_events columns the grouped term
// queries may aggregate on. Column names are interpolated into SQL, so
// only values from this map are accepted.
var groupColumns = map[string]string{
	"term":        "search_term",
	"category":    "category",
	"destination": "destination",
}

// Repository runs the read-side aggregation queries for analytics reports.
type Repository struct {
	db *sql.DB
}

// NewRepository creates an analytics repository over the given database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// TopTerms returns the most frequent search terms in [start, end).
func (r *Repository) TopTerms(ctx context.Context, start, end time.Time, limit int) ([]domain.TermStat, error) {
	return r.groupedStats(ctx, "term", start, end, limit)
}

// TopCategories returns the most searched categories in [start, end).
func (r *Repository) TopCategories(ctx context.Context, start, end time.Time, limit int) ([]domain.TermStat, error) {
	return r.groupedStats(ctx, "category", start, end, limit)
}

// TopDestinations returns the most searched destinations in [start, end).
func (r *Repository) TopDestinations(ctx context.Context, start, end time.Time, limit int) ([]domain.TermStat, error) {
	return r.groupedStats(ctx, "destination", start, end, limit)
}

// groupedStats groups events on one dimension and returns count plus
// rounded averages, most frequent first. Rows without a value for the
// dimension are excluded.
func (r *Repository) groupedStats(ctx context.Context, dimension string, start, end time.Time, limit int) ([]domain.TermStat, error) {
	column, ok := groupColumns[dimension]
	if !ok {
		return nil, fmt.Errorf("unknown group dimension %q", dimension)
	}

	query := fmt.Sprintf(
		`SELECT %[1]s,
		        COUNT(*) AS count,
		        ROUND(AVG(results_count))::int AS avg_results,
		        ROUND(AVG(response_time_ms))::int AS avg_response_time_ms
		 FROM search_events
		 WHERE ts >= $1 AND ts < $2 AND %[1]s IS NOT NULL
		 GROUP BY %[1]s
		 ORDER BY count DESC
		 LIMIT $3`, column)

	rows, err := r.db.QueryContext(ctx, query, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("query top %s: %w", dimension, err)
	}
	defer rows.Close()

	stats := make([]domain.TermStat, 0, limit)
	for rows.Next() {
		var s domain.TermStat
		if err := rows.Scan(&s.Term, &s.Count, &s.AvgResults, &s.AvgResponseTimeMs); err != nil {
			return nil, fmt.Errorf("scan top %s row: %w", dimension, err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top %s rows: %w", dimension, err)
	}
	return stats, nil
}

// Trends returns one point per UTC calendar day in [start, end), in
// chronological order.
func (r *Repository) Trends(ctx context.Context, start, end time.Time) ([]domain.TrendPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT to_char(ts AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		        COUNT(*) AS searches,
		        ROUND(AVG(results_count))::int AS avg_results,
		        ROUND(AVG(response_time_ms))::int AS avg_response_time_ms,
		        COUNT(DISTINCT user_id) AS unique_users
		 FROM search_events
		 WHERE ts >= $1 AND ts < $2
		 GROUP BY day
		 ORDER BY day ASC`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query trends: %w", err)
	}
	defer rows.Close()

	var points []domain.TrendPoint
	for rows.Next() {
		var p domain.TrendPoint
		if err := rows.Scan(&p.Day, &p.Searches, &p.AvgResults, &p.AvgResponseTimeMs, &p.UniqueUsers); err != nil {
			return nil, fmt.Errorf("scan trend row: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trend rows: %w", err)
	}
	return points, nil
}

// PriceRanges returns the most common price filter combinations. Events
// without any price filter are excluded.
func (r *Repository) PriceRanges(ctx context.Context, start, end time.Time, limit int) ([]domain.PriceRangeStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT min_price, max_price, COUNT(*) AS count
		 FROM search_events
		 WHERE ts >= $1 AND ts < $2
		   AND (min_price IS NOT NULL OR max_price IS NOT NULL)
		 GROUP BY min_price, max_price
		 ORDER BY count DESC
		 LIMIT $3`,
		start, end, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query price ranges: %w", err)
	}
	defer rows.Close()

	var stats []domain.PriceRangeStat
	for rows.Next() {
		var (
			s        domain.PriceRangeStat
			min, max sql.NullFloat64
		)
		if err := rows.Scan(&min, &max, &s.Count); err != nil {
			return nil, fmt.Errorf("scan price range row: %w", err)
		}
		if min.Valid {
			s.MinPrice = &min.Float64
		}
		if max.Valid {
			s.MaxPrice = &max.Float64
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price range rows: %w", err)
	}
	return stats, nil
}

// GuestPrefs returns search counts per guest count, ascending by guests.
// Events without a guest filter are excluded.
func (r *Repository) GuestPrefs(ctx context.Context, start, end time.Time) ([]domain.GuestStat, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT guests, COUNT(*) AS count
		 FROM search_events
		 WHERE ts >= $1 AND ts < $2 AND guests IS NOT NULL
		 GROUP BY guests
		 ORDER BY guests ASC`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("query guest prefs: %w", err)
	}
	defer rows.Close()

	var stats []domain.GuestStat
	for rows.Next() {
		var s domain.GuestStat
		if err := rows.Scan(&s.Guests, &s.Count); err != nil {
			return nil, fmt.Errorf("scan guest pref row: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guest pref rows: %w", err)
	}
	return stats, nil
}

// ConversionCounts holds the raw counters behind the conversion metrics;
// rate math lives in the service layer.
type ConversionCounts struct {
	Total        int
	WithBookings int
	WithClicks   int
	TotalClicks  int
}

// Conversion returns the conversion counters for [start, end).
func (r *Repository) Conversion(ctx context.Context, start, end time.Time) (ConversionCounts, error) {
	var c ConversionCounts
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) AS total,
		        COUNT(*) FILTER (WHERE booking_made) AS with_bookings,
		        COUNT(*) FILTER (WHERE EXISTS (
		            SELECT 1 FROM search_clicks c WHERE c.search_id = e.id
		        )) AS with_clicks,
		        (SELECT COUNT(*)
		         FROM search_clicks c
		         JOIN search_events se ON se.id = c.search_id
		         WHERE se.ts >= $1 AND se.ts < $2) AS total_clicks
		 FROM search_events e
		 WHERE e.ts >= $1 AND e.ts < $2`,
		start, end,
	).Scan(&c.Total, &c.WithBookings, &c.WithClicks, &c.TotalClicks)
	if err != nil {
		return ConversionCounts{}, fmt.Errorf("query conversion: %w", err)
	}
	return c, nil
}

// CountSearchesSince returns the number of searches recorded at or after
// since.
func (r *Repository) CountSearchesSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_events WHERE ts >= $1`, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("query search count: %w", err)
	}
	return count, nil
}

// ActiveUsersSince returns how many distinct known users searched at or
// after since.
func (r *Repository) ActiveUsersSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id)
		 FROM search_events
		 WHERE ts >= $1 AND user_id IS NOT NULL`, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("query active users: %w", err)
	}
	return count, nil
}
