package playback

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ari-call-orchestrator/internal/ari"
	"ari-call-orchestrator/internal/ari/mock"
)

func writeArtifact(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x01}, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func fastOptions() Options {
	return Options{
		MaxAttempts:    5,
		AttemptTimeout: 50 * time.Millisecond,
		RetryBackoff:   time.Millisecond,
		MinFileBytes:   2000,
	}
}

func TestPlayAndWait_Success(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), "reply_1.wav", 3000)
	client := &mock.Client{}
	p := New(client, fastOptions())

	if err := p.PlayAndWait(context.Background(), "chan-1", "sound:reply_1", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.PlayCount() != 1 {
		t.Errorf("expected 1 play operation, got %d", client.PlayCount())
	}
}

func TestPlayAndWait_MissingFile_FailsWithoutPlaying(t *testing.T) {
	client := &mock.Client{}
	p := New(client, fastOptions())

	err := p.PlayAndWait(context.Background(), "chan-1", "sound:reply_1",
		filepath.Join(t.TempDir(), "nope.wav"))

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != FileNotReady {
		t.Fatalf("expected FileNotReady, got %v", err)
	}
	if client.PlayCount() != 0 {
		t.Errorf("expected no play operations, got %d", client.PlayCount())
	}
}

func TestPlayAndWait_SmallFile_FailsWithoutPlaying(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), "reply_1.wav", 100)
	client := &mock.Client{}
	p := New(client, fastOptions())

	err := p.PlayAndWait(context.Background(), "chan-1", "sound:reply_1", path)

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != FileNotReady {
		t.Fatalf("expected FileNotReady, got %v", err)
	}
	if client.PlayCount() != 0 {
		t.Errorf("expected no play operations, got %d", client.PlayCount())
	}
}

func TestPlayAndWait_RetriesExactlyFiveTimes(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), "reply_1.wav", 3000)

	failure := func(msg string) mock.PlaybackOutcome {
		return mock.PlaybackOutcome{Event: ari.PlaybackEvent{Type: ari.PlaybackFailed, Message: msg}}
	}
	client := &mock.Client{Playbacks: []mock.PlaybackOutcome{
		failure("err 1"), failure("err 2"), failure("err 3"), failure("err 4"), failure("err 5"),
		// A sixth attempt would succeed; it must never be issued.
		{Event: ari.PlaybackEvent{Type: ari.PlaybackFinished}},
	}}
	p := New(client, fastOptions())

	err := p.PlayAndWait(context.Background(), "chan-1", "sound:reply_1", path)

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != Failed {
		t.Fatalf("expected terminal playback error, got %v", err)
	}
	if perr.Message != "err 5" {
		t.Errorf("expected last error message 'err 5', got %q", perr.Message)
	}
	if client.PlayCount() != 5 {
		t.Errorf("expected exactly 5 play operations, got %d", client.PlayCount())
	}
}

func TestPlayAndWait_RecoversAfterFailure(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), "reply_1.wav", 3000)

	client := &mock.Client{Playbacks: []mock.PlaybackOutcome{
		{Event: ari.PlaybackEvent{Type: ari.PlaybackFailed, Message: "transient"}},
		{Event: ari.PlaybackEvent{Type: ari.PlaybackFinished}},
	}}
	p := New(client, fastOptions())

	if err := p.PlayAndWait(context.Background(), "chan-1", "sound:reply_1", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.PlayCount() != 2 {
		t.Errorf("expected 2 play operations, got %d", client.PlayCount())
	}
}

func TestPlayAndWait_TimeoutWhenNoNotification(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), "reply_1.wav", 3000)

	silent := mock.PlaybackOutcome{Silent: true}
	client := &mock.Client{Playbacks: []mock.PlaybackOutcome{
		silent, silent, silent, silent, silent,
	}}
	p := New(client, fastOptions())

	err := p.PlayAndWait(context.Background(), "chan-1", "sound:reply_1", path)

	var perr *Error
	if !errors.As(err, &perr) || perr.Kind != Timeout {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if client.PlayCount() != 5 {
		t.Errorf("expected 5 play operations, got %d", client.PlayCount())
	}
}

func TestPlayAndWait_StartedThenFinished(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), "reply_1.wav", 3000)

	client := &mock.Client{Playbacks: []mock.PlaybackOutcome{
		{Event: ari.PlaybackEvent{Type: ari.PlaybackStarted}},
	}}
	p := New(client, fastOptions())

	// The mock delivers only Started for the first attempt, so it times
	// out; the second attempt finishes.
	err := p.PlayAndWait(context.Background(), "chan-1", "sound:reply_1", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.PlayCount() != 2 {
		t.Errorf("expected 2 play operations, got %d", client.PlayCount())
	}
}

func TestPlayAndWait_ContextCancelled(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), "reply_1.wav", 3000)

	client := &mock.Client{Playbacks: []mock.PlaybackOutcome{{Silent: true}}}
	p := New(client, fastOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.PlayAndWait(ctx, "chan-1", "sound:reply_1", path)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
