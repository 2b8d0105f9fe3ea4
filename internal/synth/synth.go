// Package synth implements the speech synthesis pipeline: text in,
// validated telephony-format audio artifact out.
//
// The pipeline writes the provider request payload to a uniquely named
// temporary file, invokes the provider to produce raw compressed audio,
// transcodes it to 8 kHz mono 16-bit PCM WAV, makes the destination
// world-readable, flushes it to stable storage, and validates the result.
// Temporary files are removed on every exit path; a failed run leaves no
// partial destination artifact behind.
package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ari-call-orchestrator/internal/observability/logging"
	"ari-call-orchestrator/internal/observability/metrics"
	"ari-call-orchestrator/internal/transcode"
	"ari-call-orchestrator/internal/tts"
)

// Options bounds artifact validation.
type Options struct {
	// MinRawBytes is the smallest plausible provider output; anything
	// below it is treated as a provider error surfaced in the body.
	MinRawBytes int64
	// MinWAVBytes is the smallest plausible transcoded artifact.
	MinWAVBytes int64
	// MinDuration is the shortest plausible playable duration.
	MinDuration time.Duration
}

// DefaultOptions returns the validation thresholds used in production.
func DefaultOptions() Options {
	return Options{
		MinRawBytes: 1000,
		MinWAVBytes: 2000,
		MinDuration: 500 * time.Millisecond,
	}
}

// Pipeline drives one synthesis from text to a validated artifact.
type Pipeline struct {
	provider   tts.Synthesizer
	transcoder transcode.Transcoder
	validator  *Validator
	opts       Options
	modelID    string
	voice      tts.VoiceSettings
	metrics    *metrics.Metrics
}

// NewPipeline creates a synthesis pipeline.
func NewPipeline(provider tts.Synthesizer, transcoder transcode.Transcoder, modelID string, voice tts.VoiceSettings, opts Options) *Pipeline {
	return &Pipeline{
		provider:   provider,
		transcoder: transcoder,
		validator: &Validator{
			MinBytes:    opts.MinWAVBytes,
			MinDuration: opts.MinDuration,
			Prober:      transcoder,
		},
		opts:    opts,
		modelID: modelID,
		voice:   voice,
		metrics: metrics.DefaultMetrics,
	}
}

// Synthesize produces a validated artifact at destPath. Calling it twice
// with the same destination overwrites. On failure the partial destination
// is removed; temporary files are removed on both outcomes.
func (p *Pipeline) Synthesize(ctx context.Context, text, destPath string) (err error) {
	logger := logging.WithComponent("synth")
	start := time.Now()

	payloadPath := filepath.Join(filepath.Dir(destPath),
		fmt.Sprintf("payload_%d.json", time.Now().UnixNano()))
	rawPath := rawArtifactPath(destPath)

	defer func() {
		if rmErr := removeIfExists(payloadPath); rmErr != nil {
			logger.Warn().Err(rmErr).Str("path", payloadPath).Msg("Payload cleanup failed")
		}
		if rmErr := removeIfExists(rawPath); rmErr != nil {
			logger.Warn().Err(rmErr).Str("path", rawPath).Msg("Raw artifact cleanup failed")
		}
		if err != nil {
			if rmErr := removeIfExists(destPath); rmErr != nil {
				logger.Warn().Err(rmErr).Str("path", destPath).Msg("Partial artifact cleanup failed")
			}
			kind := "UNKNOWN"
			var serr *Error
			if errors.As(err, &serr) {
				kind = serr.Kind.String()
			}
			p.metrics.RecordSynthesis(kind, time.Since(start).Seconds())
			logger.Error().Err(err).Str("destPath", destPath).Msg("Synthesis failed")
		} else {
			p.metrics.RecordSynthesis("", time.Since(start).Seconds())
		}
	}()

	// Step 1: request payload to a uniquely named temp file.
	req := tts.Request{Text: text, ModelID: p.modelID, VoiceSettings: p.voice}
	payload, err := json.Marshal(req)
	if err != nil {
		return &Error{Kind: ProviderFailure, Path: destPath, Err: err}
	}
	if err = os.WriteFile(payloadPath, payload, 0o600); err != nil {
		return &Error{Kind: ProviderFailure, Path: destPath, Err: err}
	}

	// Step 2: provider call, raw audio to the _raw temp path.
	if err = p.provider.Synthesize(ctx, payloadPath, rawPath); err != nil {
		return &Error{Kind: ProviderFailure, Path: destPath, Err: err}
	}

	// Step 3: implausibly small raw output is a provider-side error
	// surfaced in the response body.
	info, statErr := os.Stat(rawPath)
	if statErr != nil {
		return &Error{Kind: ProviderFailure, Path: destPath, Err: statErr}
	}
	if info.Size() < p.opts.MinRawBytes {
		return &Error{Kind: ProviderFailure, Path: destPath,
			Err: fmt.Errorf("provider returned %d bytes, need %d", info.Size(), p.opts.MinRawBytes)}
	}

	// Step 4: transcode to the telephony format.
	if err = p.transcoder.Transcode(ctx, rawPath, destPath); err != nil {
		return &Error{Kind: TranscodeFailure, Path: destPath, Err: err}
	}

	// Step 5: the telephony engine runs as a different principal.
	if err = os.Chmod(destPath, 0o644); err != nil {
		return &Error{Kind: PermissionFailure, Path: destPath, Err: err}
	}

	// Step 6: the engine may read the file moments later from another
	// process; make the write visible before returning.
	if err = syncFile(destPath); err != nil {
		return &Error{Kind: ValidationFailure, Path: destPath, Err: err}
	}

	// Step 7: final artifact check.
	if err = p.validator.Validate(ctx, destPath); err != nil {
		return &Error{Kind: ValidationFailure, Path: destPath, Err: err}
	}

	logger.Info().
		Str("destPath", destPath).
		Int("textLength", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("Synthesized and converted")
	return nil
}

// rawArtifactPath derives the temporary raw audio path from the
// destination: <dest without .wav>_raw.mp3.
func rawArtifactPath(destPath string) string {
	return strings.TrimSuffix(destPath, filepath.Ext(destPath)) + "_raw.mp3"
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
