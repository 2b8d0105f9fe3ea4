// Package elevenlabs implements the TTS Synthesizer against the
// ElevenLabs streaming endpoint. The request payload is streamed from
// disk and the response audio is streamed to disk, mirroring a
// curl --data-binary / -o transfer.
package elevenlabs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"ari-call-orchestrator/internal/tts"
)

// Config holds ElevenLabs connection settings.
type Config struct {
	// BaseURL without a trailing slash, e.g. https://api.elevenlabs.io/v1/text-to-speech.
	BaseURL string
	APIKey  string
	VoiceID string
}

// Synthesizer implements tts.Synthesizer using the ElevenLabs HTTP API.
type Synthesizer struct {
	cfg   Config
	httpc *http.Client
}

var _ tts.Synthesizer = (*Synthesizer)(nil)

// New creates a new ElevenLabs synthesizer.
func New(cfg Config) *Synthesizer {
	return &Synthesizer{
		cfg:   cfg,
		httpc: &http.Client{},
	}
}

// Synthesize posts the payload file to the streaming endpoint and writes
// the response body to rawPath.
func (s *Synthesizer) Synthesize(ctx context.Context, payloadPath, rawPath string) error {
	payload, err := os.Open(payloadPath)
	if err != nil {
		return fmt.Errorf("opening payload: %w", err)
	}
	defer payload.Close()

	u := strings.TrimRight(s.cfg.BaseURL, "/") + "/" + s.cfg.VoiceID + "/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, payload)
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tts provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	out, err := os.Create(rawPath)
	if err != nil {
		return fmt.Errorf("creating raw artifact: %w", err)
	}

	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing raw artifact: %w", err)
	}

	log.Debug().
		Str("rawPath", rawPath).
		Int64("bytes", n).
		Msg("TTS raw audio written")
	return nil
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }
