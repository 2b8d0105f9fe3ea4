package session

import (
	"context"
	"sync"
	"time"

	"ari-call-orchestrator/internal/models"
)

// Session tracks one channel's lifecycle in process. It is exclusively
// owned by the goroutine handling that channel; the persisted record
// outlives it.
type Session struct {
	ID        string
	Caller    string
	Callee    string
	StartTime time.Time

	lifecycle *Lifecycle
	record    *models.CallRecord
	cancel    context.CancelFunc

	mu            sync.Mutex
	scriptIndex   int
	recordingPath string
}

func newSession(id, caller, callee string, cancel context.CancelFunc) *Session {
	return &Session{
		ID:        id,
		Caller:    caller,
		Callee:    callee,
		StartTime: time.Now().UTC(),
		lifecycle: NewLifecycle(),
		record:    &models.CallRecord{Caller: caller, Callee: callee},
		cancel:    cancel,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.lifecycle.State()
}

// nextLine returns the next scripted utterance and the new cursor value.
// The cursor names per-turn artifacts, so the first reply is reply_1.
func (s *Session) nextLine(script []string) (line string, turn int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scriptIndex >= len(script) {
		return "", s.scriptIndex, false
	}
	line = script[s.scriptIndex]
	s.scriptIndex++
	return line, s.scriptIndex, true
}

// ScriptIndex returns the dialogue cursor.
func (s *Session) ScriptIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scriptIndex
}

// setRecordingPath fixes the recording artifact path; immutable once set.
func (s *Session) setRecordingPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordingPath == "" {
		s.recordingPath = path
	}
}

// RecordingPath returns the recording artifact path, empty until
// recording starts.
func (s *Session) RecordingPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordingPath
}
