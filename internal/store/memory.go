package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"ari-call-orchestrator/internal/models"
)

// Memory implements Store in process memory.
type Memory struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]models.CallRecord
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID:  1,
		records: make(map[int64]models.CallRecord),
	}
}

// Create inserts a new record and fills in its ID and timestamps.
func (s *Memory) Create(ctx context.Context, rec *models.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	rec.ID = s.nextID
	s.nextID++
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.records[rec.ID] = *rec
	return nil
}

// Finalize writes the end time, duration, and recording reference.
func (s *Memory) Finalize(ctx context.Context, rec *models.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[rec.ID]
	if !ok {
		return ErrNotFound
	}
	stored.EndTime = rec.EndTime
	stored.Duration = rec.Duration
	stored.RecordingFile = rec.RecordingFile
	stored.UpdatedAt = time.Now().UTC()
	s.records[rec.ID] = stored
	rec.UpdatedAt = stored.UpdatedAt
	return nil
}

// List returns all records ordered by start time descending.
func (s *Memory) List(ctx context.Context) ([]models.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CallRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

// Close is a no-op.
func (s *Memory) Close() {}

// Get returns one record by ID. Used by tests.
func (s *Memory) Get(id int64) (models.CallRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}
