// Package store persists call records. The Postgres implementation is
// used in production; the in-memory implementation backs tests and
// database-less development.
package store

import (
	"context"
	"errors"

	"ari-call-orchestrator/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("call record not found")

// Store is the call-log datastore. Each record is written exactly twice:
// created on channel start, finalized on channel end. Implementations
// must be safe for concurrent sessions.
type Store interface {
	// Create inserts a new record and fills in its ID and timestamps.
	Create(ctx context.Context, rec *models.CallRecord) error

	// Finalize writes the end time, duration, and recording reference.
	Finalize(ctx context.Context, rec *models.CallRecord) error

	// List returns all records ordered by start time descending.
	List(ctx context.Context) ([]models.CallRecord, error)

	// Close releases the underlying connections.
	Close()
}
