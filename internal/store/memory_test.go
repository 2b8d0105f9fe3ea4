package store

import (
	"context"
	"testing"
	"time"

	"ari-call-orchestrator/internal/models"
)

func TestMemory_CreateAndFinalize(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	rec := &models.CallRecord{
		Caller:    "1000",
		Callee:    "1001",
		StartTime: time.Now().UTC(),
	}
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("expected assigned ID")
	}

	end := rec.StartTime.Add(42 * time.Second)
	duration := 42
	rec.EndTime = &end
	rec.Duration = &duration
	rec.RecordingFile = "/sounds/chan-1.wav"
	if err := s.Finalize(ctx, rec); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	stored, ok := s.Get(rec.ID)
	if !ok {
		t.Fatal("record missing")
	}
	if stored.EndTime == nil || !stored.EndTime.Equal(end) {
		t.Errorf("unexpected end time: %v", stored.EndTime)
	}
	if stored.Duration == nil || *stored.Duration != 42 {
		t.Errorf("unexpected duration: %v", stored.Duration)
	}
}

func TestMemory_FinalizeUnknownRecord(t *testing.T) {
	s := NewMemory()
	end := time.Now().UTC()
	err := s.Finalize(context.Background(), &models.CallRecord{ID: 99, EndTime: &end})
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_ListOrdersByStartDescending(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		rec := &models.CallRecord{
			Caller:    "1000",
			Callee:    "1001",
			StartTime: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Create(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	records, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].StartTime.After(records[i-1].StartTime) {
			t.Error("records not ordered by start time descending")
		}
	}
}
