// Package session implements the per-call state machine that owns the
// channel lifecycle: answer, greeting playback, recording start, the
// scripted dialogue loop, and hangup.
package session

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a call session.
type State int

const (
	// StateCreated - session exists, channel not yet answered.
	StateCreated State = iota
	// StateAnswered - channel answered.
	StateAnswered
	// StateGreeting - greeting artifact played.
	StateGreeting
	// StateRecording - recording start issued (fire-and-forget).
	StateRecording
	// StateDialoguing - scripted dialogue loop running. The loop re-enters
	// send→synthesize→play internally without a state change.
	StateDialoguing
	// StateHangingUp - script exhausted, hangup issued.
	StateHangingUp
	// StateEnded - channel-end event processed, record finalized.
	// This is the terminal state.
	StateEnded
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateAnswered:
		return "ANSWERED"
	case StateGreeting:
		return "GREETING"
	case StateRecording:
		return "RECORDING"
	case StateDialoguing:
		return "DIALOGUING"
	case StateHangingUp:
		return "HANGING_UP"
	case StateEnded:
		return "ENDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Errors for invalid state transitions.
var (
	ErrSessionEnded       = errors.New("session already ended")
	ErrBackwardTransition = errors.New("state transitions are monotonic")
)

// Lifecycle manages the state machine for a single session.
// Thread-safe for concurrent access.
//
// State transitions are monotonic and strictly ordered:
//
//	CREATED → ANSWERED → GREETING → RECORDING → DIALOGUING → HANGING_UP → ENDED
//
// A session never revisits a state after leaving it. ENDED is reachable
// from any state because the channel can end at any point, and is entered
// exactly once.
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a session lifecycle in CREATED state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateCreated}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Ended returns true once the session reached the terminal state.
func (l *Lifecycle) Ended() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateEnded
}

// Advance moves the session forward to a later, non-terminal state.
// Moving backward or out of ENDED is rejected.
func (l *Lifecycle) Advance(to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateEnded {
		return ErrSessionEnded
	}
	if to <= l.state || to >= StateEnded {
		return fmt.Errorf("%w: %v -> %v", ErrBackwardTransition, l.state, to)
	}
	l.state = to
	return nil
}

// End transitions to ENDED from any state. Returns true on the first
// call, false if the session had already ended; finalization must happen
// exactly once no matter how far the session progressed.
func (l *Lifecycle) End() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateEnded {
		return false
	}
	l.state = StateEnded
	return true
}
