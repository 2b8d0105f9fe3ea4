package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ari-call-orchestrator/internal/models"
	"ari-call-orchestrator/internal/observability/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS call_logs (
	id             BIGSERIAL PRIMARY KEY,
	caller         TEXT NOT NULL,
	callee         TEXT NOT NULL,
	start_time     TIMESTAMPTZ NOT NULL,
	end_time       TIMESTAMPTZ,
	duration       INTEGER,
	recording_file TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres implements Store on a pgx connection pool. The pool serializes
// access safely under concurrent sessions; no two writers touch the same
// record, so no row locking is needed.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// Connect opens a pool against the database URL and ensures the schema.
func Connect(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// ConnectWithRetry calls Connect with a fixed backoff between attempts.
func ConnectWithRetry(ctx context.Context, url string, maxAttempts int, backoff time.Duration) (*Postgres, error) {
	logger := logging.WithComponent("store")

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		s, err := Connect(ctx, url)
		if err == nil {
			logger.Info().Int("attempt", attempt).Msg("PostgreSQL connected")
			return s, nil
		}
		lastErr = err
		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxAttempts", maxAttempts).
			Msg("PostgreSQL connection failed")

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("database not reachable after %d attempts: %w", maxAttempts, lastErr)
}

// Create inserts a new record and fills in its ID and timestamps.
func (s *Postgres) Create(ctx context.Context, rec *models.CallRecord) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	err := s.pool.QueryRow(ctx,
		`INSERT INTO call_logs (caller, callee, start_time, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		rec.Caller, rec.Callee, rec.StartTime, rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("inserting call record: %w", err)
	}
	return nil
}

// Finalize writes the end time, duration, and recording reference.
func (s *Postgres) Finalize(ctx context.Context, rec *models.CallRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE call_logs
		 SET end_time = $1, duration = $2, recording_file = $3, updated_at = $4
		 WHERE id = $5`,
		rec.EndTime, rec.Duration, rec.RecordingFile, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("finalizing call record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all records ordered by start time descending.
func (s *Postgres) List(ctx context.Context) ([]models.CallRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, caller, callee, start_time, end_time, duration,
		        COALESCE(recording_file, ''), created_at, updated_at
		 FROM call_logs
		 ORDER BY start_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing call records: %w", err)
	}
	defer rows.Close()

	var records []models.CallRecord
	for rows.Next() {
		var rec models.CallRecord
		if err := rows.Scan(&rec.ID, &rec.Caller, &rec.Callee, &rec.StartTime,
			&rec.EndTime, &rec.Duration, &rec.RecordingFile,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning call record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close releases the pool.
func (s *Postgres) Close() {
	s.pool.Close()
}
