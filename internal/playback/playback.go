// Package playback drives one media-playback operation on a channel
// through its asynchronous lifecycle with timeout and bounded retry.
//
// Starting playback returns immediately; completion, failure, or silence
// is observed through lifecycle notifications tied to the playback
// handle. Each attempt fully settles before the next is issued, so no two
// play operations overlap on the same channel.
package playback

import (
	"context"
	"fmt"
	"os"
	"time"

	"ari-call-orchestrator/internal/ari"
	"ari-call-orchestrator/internal/observability/logging"
	"ari-call-orchestrator/internal/observability/metrics"
)

// ErrorKind classifies a playback failure.
type ErrorKind int

const (
	// FileNotReady - the source artifact is missing or implausibly small;
	// detected locally without contacting the telephony engine.
	FileNotReady ErrorKind = iota
	// Timeout - no lifecycle notification arrived within the attempt window.
	Timeout
	// Failed - the engine reported a playback error.
	Failed
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case FileNotReady:
		return "FILE_NOT_READY"
	case Timeout:
		return "PLAYBACK_TIMEOUT"
	case Failed:
		return "PLAYBACK_ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", k)
	}
}

// Error is a playback-stage failure. After the retry budget is exhausted
// the last attempt's Error is propagated to the caller.
type Error struct {
	Kind    ErrorKind
	Media   string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("playback %s for %s: %s", e.Kind, e.Media, e.Message)
	}
	return fmt.Sprintf("playback %s for %s", e.Kind, e.Media)
}

// Options bounds the retry protocol.
type Options struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
	MinFileBytes   int64
}

// DefaultOptions returns the production retry budget.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:    5,
		AttemptTimeout: 10 * time.Second,
		RetryBackoff:   time.Second,
		MinFileBytes:   2000,
	}
}

// Protocol plays media on channels with bounded retry.
type Protocol struct {
	client  ari.Client
	opts    Options
	metrics *metrics.Metrics
}

// New creates a playback protocol instance.
func New(client ari.Client, opts Options) *Protocol {
	return &Protocol{
		client:  client,
		opts:    opts,
		metrics: metrics.DefaultMetrics,
	}
}

// PlayAndWait plays mediaRef on the channel and blocks until the playback
// settles. sourcePath is the artifact backing the media reference; it is
// checked before each attempt. On failure the attempt is retried after a
// fixed backoff, up to the attempt budget; the last error is returned.
func (p *Protocol) PlayAndWait(ctx context.Context, channelID, mediaRef, sourcePath string) error {
	logger := logging.WithChannel(channelID)

	var lastErr error
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		err := p.attempt(ctx, channelID, mediaRef, sourcePath)
		if err == nil {
			if attempt > 1 {
				logger.Info().
					Str("media", mediaRef).
					Int("attempt", attempt).
					Msg("Playback succeeded after retry")
			}
			return nil
		}
		lastErr = err

		logger.Warn().
			Err(err).
			Str("media", mediaRef).
			Int("attempt", attempt).
			Int("maxAttempts", p.opts.MaxAttempts).
			Msg("Playback attempt failed")

		if attempt == p.opts.MaxAttempts {
			break
		}
		p.metrics.PlaybackRetries.Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.opts.RetryBackoff):
		}
	}

	var perr *Error
	if e, ok := lastErr.(*Error); ok {
		perr = e
	} else {
		perr = &Error{Kind: Failed, Media: mediaRef, Message: lastErr.Error()}
	}
	p.metrics.PlaybackFailures.WithLabelValues(perr.Kind.String()).Inc()
	return perr
}

// attempt issues one play operation and waits for it to settle.
func (p *Protocol) attempt(ctx context.Context, channelID, mediaRef, sourcePath string) error {
	if err := p.checkSource(mediaRef, sourcePath); err != nil {
		return err
	}

	p.metrics.PlaybackAttempts.Inc()

	pb, err := p.client.Play(ctx, channelID, mediaRef)
	if err != nil {
		return &Error{Kind: Failed, Media: mediaRef, Message: err.Error()}
	}
	defer pb.Close()

	timer := time.NewTimer(p.opts.AttemptTimeout)
	defer timer.Stop()

	for {
		select {
		case ev := <-pb.Events():
			switch ev.Type {
			case ari.PlaybackFinished:
				return nil
			case ari.PlaybackFailed:
				return &Error{Kind: Failed, Media: mediaRef, Message: ev.Message}
			case ari.PlaybackStarted:
				// Keep waiting for the terminal event.
			}
		case <-timer.C:
			return &Error{Kind: Timeout, Media: mediaRef}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// checkSource verifies the artifact locally before contacting the engine.
func (p *Protocol) checkSource(mediaRef, sourcePath string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return &Error{Kind: FileNotReady, Media: mediaRef, Message: "file not ready"}
	}
	if info.Size() < p.opts.MinFileBytes {
		return &Error{Kind: FileNotReady, Media: mediaRef,
			Message: fmt.Sprintf("file too small: %d bytes", info.Size())}
	}
	return nil
}
