package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/tripvar/search-analytics/internal/domain"
)

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewRepository(db), mock
}

var (
	rangeStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
)

func TestTopTerms(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := sqlmock.NewRows([]string{"search_term", "count", "avg_results", "avg_response_time_ms"}).
		AddRow("paris", 42, 18, 120).
		AddRow("tokyo", 17, 25, 95)

	mock.ExpectQuery("SELECT search_term").
		WithArgs(rangeStart, rangeEnd, 10).
		WillReturnRows(rows)

	stats, err := repo.TopTerms(context.Background(), rangeStart, rangeEnd, 10)
	if err != nil {
		t.Fatalf("TopTerms() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("TopTerms() returned %d stats, want 2", len(stats))
	}

	want := domain.TermStat{Term: "paris", Count: 42, AvgResults: 18, AvgResponseTimeMs: 120}
	if stats[0] != want {
		t.Errorf("TopTerms()[0] = %+v, want %+v", stats[0], want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGroupedStats_UnknownDimension(t *testing.T) {
	repo, _ := newMockRepository(t)

	if _, err := repo.groupedStats(context.Background(), "user_id; DROP TABLE", rangeStart, rangeEnd, 10); err == nil {
		t.Error("groupedStats() with unknown dimension returned nil error")
	}
}

func TestTrends(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := sqlmock.NewRows([]string{"day", "searches", "avg_results", "avg_response_time_ms", "unique_users"}).
		AddRow("2026-01-01", 100, 12, 80, 40).
		AddRow("2026-01-02", 90, 14, 85, 35)

	mock.ExpectQuery("SELECT to_char").
		WithArgs(rangeStart, rangeEnd).
		WillReturnRows(rows)

	points, err := repo.Trends(context.Background(), rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("Trends() error = %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("Trends() returned %d points, want 2", len(points))
	}
	if points[0].Day != "2026-01-01" || points[0].UniqueUsers != 40 {
		t.Errorf("Trends()[0] = %+v", points[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPriceRanges_NullBounds(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := sqlmock.NewRows([]string{"min_price", "max_price", "count"}).
		AddRow(100.0, 500.0, 30).
		AddRow(nil, 200.0, 12)

	mock.ExpectQuery("SELECT min_price, max_price").
		WithArgs(rangeStart, rangeEnd, 10).
		WillReturnRows(rows)

	stats, err := repo.PriceRanges(context.Background(), rangeStart, rangeEnd, 10)
	if err != nil {
		t.Fatalf("PriceRanges() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("PriceRanges() returned %d stats, want 2", len(stats))
	}
	if stats[0].MinPrice == nil || *stats[0].MinPrice != 100.0 {
		t.Errorf("PriceRanges()[0].MinPrice = %v, want 100", stats[0].MinPrice)
	}
	if stats[1].MinPrice != nil {
		t.Errorf("PriceRanges()[1].MinPrice = %v, want nil", stats[1].MinPrice)
	}
	if stats[1].MaxPrice == nil || *stats[1].MaxPrice != 200.0 {
		t.Errorf("PriceRanges()[1].MaxPrice = %v, want 200", stats[1].MaxPrice)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGuestPrefs(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := sqlmock.NewRows([]string{"guests", "count"}).
		AddRow(1, 10).
		AddRow(2, 55).
		AddRow(4, 20)

	mock.ExpectQuery("SELECT guests").
		WithArgs(rangeStart, rangeEnd).
		WillReturnRows(rows)

	stats, err := repo.GuestPrefs(context.Background(), rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("GuestPrefs() error = %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("GuestPrefs() returned %d stats, want 3", len(stats))
	}
	if stats[1].Guests != 2 || stats[1].Count != 55 {
		t.Errorf("GuestPrefs()[1] = %+v, want {2 55}", stats[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestConversion(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := sqlmock.NewRows([]string{"total", "with_bookings", "with_clicks", "total_clicks"}).
		AddRow(200, 18, 90, 340)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(rangeStart, rangeEnd).
		WillReturnRows(rows)

	counts, err := repo.Conversion(context.Background(), rangeStart, rangeEnd)
	if err != nil {
		t.Fatalf("Conversion() error = %v", err)
	}

	want := ConversionCounts{Total: 200, WithBookings: 18, WithClicks: 90, TotalClicks: 340}
	if counts != want {
		t.Errorf("Conversion() = %+v, want %+v", counts, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCountSearchesSince(t *testing.T) {
	repo, mock := newMockRepository(t)
	since := time.Date(2026, 2, 10, 11, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(77))

	count, err := repo.CountSearchesSince(context.Background(), since)
	if err != nil {
		t.Fatalf("CountSearchesSince() error = %v", err)
	}
	if count != 77 {
		t.Errorf("CountSearchesSince() = %d, want 77", count)
	}
}

func TestActiveUsersSince(t *testing.T) {
	repo, mock := newMockRepository(t)
	since := time.Date(2026, 2, 10, 11, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT.DISTINCT user_id").
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(31))

	count, err := repo.ActiveUsersSince(context.Background(), since)
	if err != nil {
		t.Fatalf("ActiveUsersSince() error = %v", err)
	}
	if count != 31 {
		t.Errorf("ActiveUsersSince() = %d, want 31", count)
	}
}
