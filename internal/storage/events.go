// Package storage persists search events to PostgreSQL and runs the
// aggregation queries behind the analytics reports.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tripvar/search-analytics/internal/domain"
	"github.com/tripvar/search-analytics/internal/logger"
)

const (
	// columnsPerRow is the number of columns inserted per search event row.
	columnsPerRow = 13

	// insertBatchSize is the maximum number of rows per INSERT statement.
	insertBatchSize = 50

	// flushTimeout is the context timeout for each flush operation.
	flushTimeout = 5 * time.Second
)

// Buffer is a channel-based buffer for non-blocking search event ingestion.
type Buffer struct {
	events chan domain.SearchEvent
	closed chan struct{}
	once   sync.Once
}

// NewBuffer creates a buffer with the given capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		events: make(chan domain.SearchEvent, capacity),
		closed: make(chan struct{}),
	}
}

// Send performs a non-blocking send of an event into the buffer.
// It returns false if the buffer channel is full.
func (b *Buffer) Send(event domain.SearchEvent) bool {
	select {
	case b.events <- event:
		return true
	default:
		return false
	}
}

// Len returns the number of events currently buffered.
func (b *Buffer) Len() int {
	return len(b.events)
}

// Close signals the buffer to stop accepting events.
// Safe to call multiple times.
func (b *Buffer) Close() {
	b.once.Do(func() {
		close(b.closed)
	})
}

// EventStore manages buffered writes of search events to PostgreSQL and
// applies click/booking attribution updates.
type EventStore struct {
	db             *sql.DB
	buffer         *Buffer
	log            logger.Logger
	flushInterval  time.Duration
	flushThreshold int
	wg             sync.WaitGroup
}

// NewEventStore creates a store that reads events from buffer and
// batch-inserts them.
func NewEventStore(
	db *sql.DB,
	buffer *Buffer,
	log logger.Logger,
	flushInterval time.Duration,
	flushThreshold int,
) *EventStore {
	return &EventStore{
		db:             db,
		buffer:         buffer,
		log:            log,
		flushInterval:  flushInterval,
		flushThreshold: flushThreshold,
	}
}

// Start launches the background flush goroutine.
func (s *EventStore) Start() {
	s.wg.Add(1)
	go s.flushLoop()
}

// Stop closes the buffer and waits for the final flush.
func (s *EventStore) Stop() {
	s.buffer.Close()
	s.wg.Wait()
}

// AppendClick records one clicked destination for a search. It returns
// false when no search with the given ID exists; callers decide whether
// that warrants more than a warning.
func (s *EventStore) AppendClick(ctx context.Context, searchID, destinationID string, clickedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO search_clicks (search_id, destination_id, clicked_at)
		 SELECT $1, $2, $3
		 WHERE EXISTS (SELECT 1 FROM search_events WHERE id = $1)`,
		searchID, destinationID, clickedAt,
	)
	if err != nil {
		return false, fmt.Errorf("append click: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append click rows affected: %w", err)
	}
	return rows > 0, nil
}

// AttachBooking marks a search as converted. The update only applies to
// searches not yet attributed, so re-attribution is a no-op.
func (s *EventStore) AttachBooking(ctx context.Context, searchID, bookingID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE search_events
		 SET booking_made = TRUE, booking_id = $2
		 WHERE id = $1 AND booking_made = FALSE`,
		searchID, bookingID,
	)
	if err != nil {
		return false, fmt.Errorf("attach booking: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("attach booking rows affected: %w", err)
	}
	return rows > 0, nil
}

// flushLoop reads events from the buffer, accumulates a batch, and flushes
// when the batch reaches flushThreshold or the interval ticker fires.
func (s *EventStore) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.SearchEvent, 0, s.flushThreshold)

	for {
		select {
		case event := <-s.buffer.events:
			batch = append(batch, event)
			if len(batch) >= s.flushThreshold {
				s.flush(batch)
				batch = make([]domain.SearchEvent, 0, s.flushThreshold)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = make([]domain.SearchEvent, 0, s.flushThreshold)
			}

		case <-s.buffer.closed:
			s.drain(&batch)
			if len(batch) > 0 {
				s.flush(batch)
			}
			return
		}
	}
}

// drain reads all remaining buffered events into the batch.
func (s *EventStore) drain(batch *[]domain.SearchEvent) {
	for {
		select {
		case event := <-s.buffer.events:
			*batch = append(*batch, event)
		default:
			return
		}
	}
}

// flush writes a batch of events in chunks of insertBatchSize.
func (s *EventStore) flush(batch []domain.SearchEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	for start := 0; start < len(batch); start += insertBatchSize {
		end := min(start+insertBatchSize, len(batch))

		if err := s.batchInsert(ctx, batch[start:end]); err != nil {
			s.log.Error("Failed to insert search events",
				logger.Error(err),
				logger.Int("batch_size", end-start),
			)
		}
	}

	s.log.Debug("Flushed search events", logger.Int("total", len(batch)))
}

// batchInsert builds and executes a single INSERT with multiple value tuples.
func (s *EventStore) batchInsert(ctx context.Context, events []domain.SearchEvent) error {
	if len(events) == 0 {
		return nil
	}

	args := make([]any, 0, len(events)*columnsPerRow)
	var sb strings.Builder

	sb.WriteString("INSERT INTO search_events (id, ts, user_id, search_term, category, " +
		"destination, min_price, max_price, guests, results_count, response_time_ms, " +
		"booking_made, booking_id) VALUES ")

	for i := range events {
		if i > 0 {
			sb.WriteString(", ")
		}

		writeValueTuple(&sb, i)

		e := &events[i]
		args = append(args,
			e.ID, e.Timestamp, e.UserID, e.SearchTerm, e.Category,
			e.Destination, e.MinPrice, e.MaxPrice, e.Guests, e.ResultsCount,
			e.ResponseTimeMs, e.BookingMade, e.BookingID,
		)
	}

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("exec batch insert: %w", err)
	}
	return nil
}

// writeValueTuple writes one ($1, ..., $13) placeholder tuple offset by the
// row index.
func writeValueTuple(sb *strings.Builder, rowIndex int) {
	base := rowIndex * columnsPerRow
	sb.WriteByte('(')
	for col := 1; col <= columnsPerRow; col++ {
		if col > 1 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "$%d", base+col)
	}
	sb.WriteByte(')')
}
