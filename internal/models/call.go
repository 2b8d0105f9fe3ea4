// Package models defines the data structures for call records and
// call-lifecycle events.
package models

import "time"

// CallRecord is the persisted log of one call session. It outlives the
// in-memory session: created on channel start, finalized on channel end.
type CallRecord struct {
	ID            int64      `json:"id"`
	Caller        string     `json:"caller"`
	Callee        string     `json:"callee"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       *time.Time `json:"endTime,omitempty"`
	Duration      *int       `json:"duration,omitempty"` // seconds
	RecordingFile string     `json:"recordingFile,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// CallStartedEvent is published when a channel enters application control.
type CallStartedEvent struct {
	EventType string `json:"eventType"`
	ChannelID string `json:"channelId"`
	Caller    string `json:"caller"`
	Callee    string `json:"callee"`
	Timestamp int64  `json:"timestamp"`
}

// CallEndedEvent is published when a channel leaves application control.
type CallEndedEvent struct {
	EventType       string `json:"eventType"`
	ChannelID       string `json:"channelId"`
	Caller          string `json:"caller"`
	Callee          string `json:"callee"`
	Timestamp       int64  `json:"timestamp"`
	DurationSeconds int    `json:"durationSeconds"`
	RecordingFile   string `json:"recordingFile,omitempty"`
}
