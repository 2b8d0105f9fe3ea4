// Package ari defines the interface to the call-control service and the
// events it emits. The real implementation speaks the Asterisk REST
// Interface; a mock implementation lives in the mock subpackage.
package ari

import "context"

// Event is a control-plane notification about a channel.
type Event interface {
	ChannelID() string
}

// ChannelStart signals that a channel entered application control.
type ChannelStart struct {
	ID            string
	CallerNumber  string
	Args          []string
	DialplanExten string
}

// ChannelID returns the channel identifier.
func (e ChannelStart) ChannelID() string { return e.ID }

// Callee resolves the called party from event args, falling back to the
// dialplan extension, then "unknown".
func (e ChannelStart) Callee() string {
	if len(e.Args) > 0 && e.Args[0] != "" {
		return e.Args[0]
	}
	if e.DialplanExten != "" {
		return e.DialplanExten
	}
	return "unknown"
}

// Caller resolves the calling party, defaulting to "unknown".
func (e ChannelStart) Caller() string {
	if e.CallerNumber != "" {
		return e.CallerNumber
	}
	return "unknown"
}

// ChannelEnd signals that a channel left application control. It is
// delivered regardless of why the channel ended.
type ChannelEnd struct {
	ID string
}

// ChannelID returns the channel identifier.
func (e ChannelEnd) ChannelID() string { return e.ID }

// PlaybackEventType classifies a playback lifecycle notification.
type PlaybackEventType int

const (
	// PlaybackStarted - media playback began on the channel.
	PlaybackStarted PlaybackEventType = iota
	// PlaybackFinished - media playback completed normally.
	PlaybackFinished
	// PlaybackFailed - media playback failed; Message carries the reason.
	PlaybackFailed
)

// String returns the string representation of the event type.
func (t PlaybackEventType) String() string {
	switch t {
	case PlaybackStarted:
		return "STARTED"
	case PlaybackFinished:
		return "FINISHED"
	case PlaybackFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// PlaybackEvent is an asynchronous lifecycle notification for one
// playback handle.
type PlaybackEvent struct {
	Type    PlaybackEventType
	Message string
}

// Playback is the handle returned when starting media playback. Lifecycle
// notifications for the operation arrive on Events. Close releases the
// handle; it must be called once the caller stops waiting so abandoned
// attempts do not leak subscriptions.
type Playback interface {
	ID() string
	Events() <-chan PlaybackEvent
	Close()
}

// RecordOptions controls a channel recording.
type RecordOptions struct {
	Name               string // recording name, no extension
	Format             string
	MaxDurationSeconds int
	Beep               bool
	IfExists           string // e.g. "overwrite"
}

// OriginateOptions controls an outbound call.
type OriginateOptions struct {
	Endpoint string // e.g. "SIP/msuser"
	App      string
	AppArgs  string
	CallerID string
}

// Client exposes the call-control operations the orchestrator needs.
// All methods are safe for concurrent use across channels.
type Client interface {
	// Answer answers the channel.
	Answer(ctx context.Context, channelID string) error

	// Play starts media playback on the channel and returns a handle whose
	// lifecycle events are delivered asynchronously.
	Play(ctx context.Context, channelID, mediaRef string) (Playback, error)

	// Record starts recording the channel.
	Record(ctx context.Context, channelID string, opts RecordOptions) error

	// Hangup hangs up the channel.
	Hangup(ctx context.Context, channelID string) error

	// Originate places an outbound call and returns the new channel ID.
	Originate(ctx context.Context, opts OriginateOptions) (string, error)

	// EndpointState reports the registration state of an endpoint
	// (e.g. "online").
	EndpointState(ctx context.Context, tech, resource string) (string, error)
}
