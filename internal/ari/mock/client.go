// Package mock provides a scripted call-control client for testing the
// orchestrator and the playback protocol without an Asterisk instance.
package mock

import (
	"context"
	"strconv"
	"sync"
	"time"

	"ari-call-orchestrator/internal/ari"
)

// PlaybackOutcome scripts the result of one playback attempt.
type PlaybackOutcome struct {
	// Event delivered after Delay. Ignored when Silent is set.
	Event ari.PlaybackEvent
	Delay time.Duration
	// Silent suppresses all notifications so the caller times out.
	Silent bool
	// StartErr fails the play operation itself.
	StartErr error
}

// Client implements ari.Client with scripted behavior. Zero value succeeds
// everything: playback finishes immediately, operations return nil.
type Client struct {
	mu sync.Mutex

	AnswerErr   error
	RecordErr   error
	HangupErr   error
	OriginateID string
	State       string // endpoint state, defaults to "online"

	// Playbacks are consumed in order per Play call; when exhausted the
	// playback finishes immediately.
	Playbacks []PlaybackOutcome

	AnswerCalls    []string
	PlayCalls      []string // media refs in order
	RecordCalls    []ari.RecordOptions
	HangupCalls    []string
	OriginateCalls []ari.OriginateOptions
	playIndex      int
}

var _ ari.Client = (*Client)(nil)

// Answer records the call and returns the scripted error.
func (c *Client) Answer(ctx context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AnswerCalls = append(c.AnswerCalls, channelID)
	return c.AnswerErr
}

// Play returns a handle that delivers the next scripted outcome.
func (c *Client) Play(ctx context.Context, channelID, mediaRef string) (ari.Playback, error) {
	c.mu.Lock()
	c.PlayCalls = append(c.PlayCalls, mediaRef)
	var outcome PlaybackOutcome
	if c.playIndex < len(c.Playbacks) {
		outcome = c.Playbacks[c.playIndex]
		c.playIndex++
	} else {
		outcome = PlaybackOutcome{Event: ari.PlaybackEvent{Type: ari.PlaybackFinished}}
	}
	n := len(c.PlayCalls)
	c.mu.Unlock()

	if outcome.StartErr != nil {
		return nil, outcome.StartErr
	}

	pb := &playback{
		id: mediaRef + "-" + strconv.Itoa(n),
		ch: make(chan ari.PlaybackEvent, 1),
	}
	if !outcome.Silent {
		if outcome.Delay == 0 {
			pb.ch <- outcome.Event
		} else {
			go func(ev ari.PlaybackEvent, d time.Duration) {
				time.Sleep(d)
				select {
				case pb.ch <- ev:
				default:
				}
			}(outcome.Event, outcome.Delay)
		}
	}
	return pb, nil
}

// Record records the options and returns the scripted error.
func (c *Client) Record(ctx context.Context, channelID string, opts ari.RecordOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RecordCalls = append(c.RecordCalls, opts)
	return c.RecordErr
}

// Hangup records the call and returns the scripted error.
func (c *Client) Hangup(ctx context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.HangupCalls = append(c.HangupCalls, channelID)
	return c.HangupErr
}

// Originate records the options and returns the scripted channel ID.
func (c *Client) Originate(ctx context.Context, opts ari.OriginateOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.OriginateCalls = append(c.OriginateCalls, opts)
	if c.OriginateID != "" {
		return c.OriginateID, nil
	}
	return "mock-channel-1", nil
}

// EndpointState returns the scripted state, defaulting to "online".
func (c *Client) EndpointState(ctx context.Context, tech, resource string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State != "" {
		return c.State, nil
	}
	return "online", nil
}

// PlayCount returns how many play operations were issued.
func (c *Client) PlayCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.PlayCalls)
}

// HangupCount returns how many hangups were issued.
func (c *Client) HangupCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.HangupCalls)
}

// AnswerCount returns how many answers were issued.
func (c *Client) AnswerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.AnswerCalls)
}

// RecordCount returns how many record operations were issued.
func (c *Client) RecordCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.RecordCalls)
}

type playback struct {
	id   string
	ch   chan ari.PlaybackEvent
	once sync.Once
}

func (p *playback) ID() string { return p.id }

func (p *playback) Events() <-chan ari.PlaybackEvent { return p.ch }

func (p *playback) Close() { p.once.Do(func() {}) }
