// Package config loads the orchestrator configuration from environment
// variables with sensible defaults for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the root configuration for the orchestrator.
type Configuration struct {
	Service       ServiceConfig
	ARI           ARIConfig
	TTS           TTSConfig
	NLU           NLUConfig
	Database      DatabaseConfig
	Kafka         KafkaConfig
	Dialogue      DialogueConfig
	Playback      PlaybackConfig
	Synthesis     SynthesisConfig
	Recording     RecordingConfig
	Endpoint      EndpointConfig
	HTTP          HTTPConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds identity and filesystem settings.
type ServiceConfig struct {
	Name      string
	SoundsDir string // directory shared with the telephony engine
}

// ARIConfig holds call-control connection settings.
type ARIConfig struct {
	URL            string // base REST URL, e.g. http://asterisk:8088/ari
	Username       string
	Password       string
	App            string // Stasis application name
	ConnectRetries int
	ConnectBackoff time.Duration
}

// TTSConfig holds the speech-synthesis provider settings.
type TTSConfig struct {
	BaseURL         string
	APIKey          string
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
}

// NLUConfig holds the natural-language backend settings.
type NLUConfig struct {
	WebhookURL    string
	StatusURL     string
	Timeout       time.Duration
	ReadyRetries  int
	ReadyInterval time.Duration
}

// DatabaseConfig holds call-log datastore settings. An empty URL selects
// the in-memory store.
type DatabaseConfig struct {
	URL            string
	ConnectRetries int
	ConnectBackoff time.Duration
}

// KafkaConfig holds the call-lifecycle event bus settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicStarted string
	TopicEnded   string
	Principal    string
}

// DialogueConfig drives the scripted dialogue loop.
type DialogueConfig struct {
	Script               []string
	FallbackReply        string
	GreetingText         string
	GreetingPromptID     string
	InterTurnDelay       time.Duration
	HangupOnSetupFailure bool
}

// PlaybackConfig bounds the playback-retry protocol.
type PlaybackConfig struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	RetryBackoff   time.Duration
	MinFileBytes   int64
}

// SynthesisConfig bounds artifact validation in the synthesis pipeline.
type SynthesisConfig struct {
	MinRawBytes int64
	MinWAVBytes int64
	MinDuration time.Duration
}

// RecordingConfig bounds channel recordings.
type RecordingConfig struct {
	MaxDurationSeconds int
}

// EndpointConfig drives the availability poller that triggers the initial
// outbound call once the SIP endpoint registers.
type EndpointConfig struct {
	Enabled      bool
	Tech         string
	Resource     string
	PollInterval time.Duration
	CallerID     string
	AppArgs      string
}

// HTTPConfig holds the dashboard API settings.
type HTTPConfig struct {
	Addr string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// DefaultScript is the fixed ordered utterance sequence driving the
// automated dialogue. Every session walks the same script.
var DefaultScript = []string{
	"Hello!",
	"Can you tell me my balance?",
	"Yes, that's right.",
	"No, that's wrong.",
	"Goodbye!",
}

// Load reads configuration from environment variables.
func Load() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Name:      envOrDefault("SERVICE_NAME", "ari-call-orchestrator"),
			SoundsDir: envOrDefault("SOUNDS_DIR", "/var/lib/asterisk/sounds"),
		},
		ARI: ARIConfig{
			URL:            envOrDefault("ARI_URL", "http://asterisk:8088/ari"),
			Username:       envOrDefault("ARI_USERNAME", "asterisk"),
			Password:       envOrDefault("ARI_PASSWORD", "asteriskpw"),
			App:            envOrDefault("ARI_APP", "hello-world"),
			ConnectRetries: envOrDefaultInt("ARI_CONNECT_RETRIES", 30),
			ConnectBackoff: envOrDefaultDuration("ARI_CONNECT_BACKOFF", 3*time.Second),
		},
		TTS: TTSConfig{
			BaseURL:         envOrDefault("TTS_BASE_URL", "https://api.elevenlabs.io/v1/text-to-speech"),
			APIKey:          envOrDefault("TTS_API_KEY", ""),
			VoiceID:         envOrDefault("TTS_VOICE_ID", "8DzKSPdgEQPaK5vKG0Rs"),
			ModelID:         envOrDefault("TTS_MODEL_ID", "eleven_monolingual_v1"),
			Stability:       envOrDefaultFloat("TTS_STABILITY", 0.5),
			SimilarityBoost: envOrDefaultFloat("TTS_SIMILARITY_BOOST", 0.75),
		},
		NLU: NLUConfig{
			WebhookURL:    envOrDefault("NLU_WEBHOOK_URL", "http://rasa:5005/webhooks/rest/webhook"),
			StatusURL:     envOrDefault("NLU_STATUS_URL", "http://rasa:5005/status"),
			Timeout:       envOrDefaultDuration("NLU_TIMEOUT", 7*time.Second),
			ReadyRetries:  envOrDefaultInt("NLU_READY_RETRIES", 50),
			ReadyInterval: envOrDefaultDuration("NLU_READY_INTERVAL", 3*time.Second),
		},
		Database: DatabaseConfig{
			URL:            envOrDefault("DATABASE_URL", ""),
			ConnectRetries: envOrDefaultInt("DATABASE_CONNECT_RETRIES", 5),
			ConnectBackoff: envOrDefaultDuration("DATABASE_CONNECT_BACKOFF", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      envOrDefaultList("KAFKA_BROKERS", nil),
			TopicStarted: envOrDefault("KAFKA_TOPIC_STARTED", "calls.started"),
			TopicEnded:   envOrDefault("KAFKA_TOPIC_ENDED", "calls.ended"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", "svc-call-orchestrator"),
		},
		Dialogue: DialogueConfig{
			Script:               envOrDefaultScript("DIALOGUE_SCRIPT", DefaultScript),
			FallbackReply:        envOrDefault("DIALOGUE_FALLBACK_REPLY", "Sorry, I didn't understand that."),
			GreetingText:         envOrDefault("DIALOGUE_GREETING_TEXT", "Good morning! Let's start your session."),
			GreetingPromptID:     envOrDefault("DIALOGUE_GREETING_PROMPT_ID", "greeting_good_morning"),
			InterTurnDelay:       envOrDefaultDuration("DIALOGUE_INTER_TURN_DELAY", 250*time.Millisecond),
			HangupOnSetupFailure: envOrDefaultBool("DIALOGUE_HANGUP_ON_SETUP_FAILURE", false),
		},
		Playback: PlaybackConfig{
			MaxAttempts:    envOrDefaultInt("PLAYBACK_MAX_ATTEMPTS", 5),
			AttemptTimeout: envOrDefaultDuration("PLAYBACK_ATTEMPT_TIMEOUT", 10*time.Second),
			RetryBackoff:   envOrDefaultDuration("PLAYBACK_RETRY_BACKOFF", time.Second),
			MinFileBytes:   envOrDefaultInt64("PLAYBACK_MIN_FILE_BYTES", 2000),
		},
		Synthesis: SynthesisConfig{
			MinRawBytes: envOrDefaultInt64("SYNTHESIS_MIN_RAW_BYTES", 1000),
			MinWAVBytes: envOrDefaultInt64("SYNTHESIS_MIN_WAV_BYTES", 2000),
			MinDuration: envOrDefaultDuration("SYNTHESIS_MIN_DURATION", 500*time.Millisecond),
		},
		Recording: RecordingConfig{
			MaxDurationSeconds: envOrDefaultInt("RECORDING_MAX_DURATION_SECONDS", 3600),
		},
		Endpoint: EndpointConfig{
			Enabled:      envOrDefaultBool("ENDPOINT_POLL_ENABLED", true),
			Tech:         envOrDefault("ENDPOINT_TECH", "SIP"),
			Resource:     envOrDefault("ENDPOINT_RESOURCE", "msuser"),
			PollInterval: envOrDefaultDuration("ENDPOINT_POLL_INTERVAL", 5*time.Second),
			CallerID:     envOrDefault("ENDPOINT_CALLER_ID", "1000"),
			AppArgs:      envOrDefault("ENDPOINT_APP_ARGS", "1001"),
		},
		HTTP: HTTPConfig{
			Addr: envOrDefault("HTTP_ADDR", ":3002"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

// envOrDefaultScript splits on "|" so utterances may contain commas.
func envOrDefaultScript(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, "|")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
