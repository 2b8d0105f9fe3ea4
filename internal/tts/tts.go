// Package tts defines the interface for text-to-speech providers.
//
// The orchestrator uses TTS to turn NLU replies into audio artifacts that
// the telephony engine can play into a call. Providers consume a JSON
// request payload from disk and write raw compressed audio to disk, so a
// failed run never holds audio in memory.
package tts

import "context"

// Request is the provider request payload written to the temporary
// payload file before invoking the provider.
type Request struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// VoiceSettings holds the fixed voice parameters.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesizer converts a serialized request payload into raw audio bytes
// on disk.
type Synthesizer interface {
	// Synthesize reads the request payload at payloadPath, invokes the
	// provider, and writes the raw audio to rawPath.
	Synthesize(ctx context.Context, payloadPath, rawPath string) error

	// Close releases any resources held by the synthesizer.
	Close() error
}
