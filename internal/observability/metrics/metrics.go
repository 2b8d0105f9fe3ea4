// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ari_call_orchestrator"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Call metrics
	CallsTotal   prometheus.Counter
	CallsActive  prometheus.Gauge
	CallsEnded   prometheus.Counter
	CallDuration prometheus.Histogram

	// Synthesis metrics
	SynthesisTotal   prometheus.Counter
	SynthesisErrors  *prometheus.CounterVec
	SynthesisLatency prometheus.Histogram

	// Playback metrics
	PlaybackAttempts prometheus.Counter
	PlaybackRetries  prometheus.Counter
	PlaybackFailures *prometheus.CounterVec

	// NLU metrics
	NLURequests  prometheus.Counter
	NLUFallbacks prometheus.Counter
	NLULatency   prometheus.Histogram

	// Recording metrics
	RecordingsStarted prometheus.Counter
	RecordingFailures prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Call metrics
		CallsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total number of call sessions started",
		}),
		CallsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calls_active",
			Help:      "Number of currently active call sessions",
		}),
		CallsEnded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_ended_total",
			Help:      "Total number of call sessions ended and finalized",
		}),
		CallDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Duration of call sessions in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}),

		// Synthesis metrics
		SynthesisTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_total",
			Help:      "Total number of speech synthesis requests",
		}),
		SynthesisErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_errors_total",
			Help:      "Total number of speech synthesis failures",
		}, []string{"kind"}),
		SynthesisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_latency_seconds",
			Help:      "End-to-end latency of speech synthesis in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),

		// Playback metrics
		PlaybackAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_attempts_total",
			Help:      "Total number of playback attempts issued",
		}),
		PlaybackRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_retries_total",
			Help:      "Total number of playback retries after a failed attempt",
		}),
		PlaybackFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_failures_total",
			Help:      "Total number of terminal playback failures",
		}, []string{"kind"}),

		// NLU metrics
		NLURequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nlu_requests_total",
			Help:      "Total number of NLU webhook requests",
		}),
		NLUFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nlu_fallbacks_total",
			Help:      "Total number of turns answered with the fallback reply",
		}),
		NLULatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nlu_latency_seconds",
			Help:      "Latency of NLU webhook requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 7},
		}),

		// Recording metrics
		RecordingsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_started_total",
			Help:      "Total number of channel recordings started",
		}),
		RecordingFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_failures_total",
			Help:      "Total number of channel recording start failures",
		}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka publish operations",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Latency of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"topic", "event_type"}),
	}
}

// RecordCallStart records a new call session.
func (m *Metrics) RecordCallStart() {
	m.CallsTotal.Inc()
	m.CallsActive.Inc()
}

// RecordCallEnd records a finalized call session.
func (m *Metrics) RecordCallEnd(durationSeconds float64) {
	m.CallsActive.Dec()
	m.CallsEnded.Inc()
	m.CallDuration.Observe(durationSeconds)
}

// RecordSynthesis records a synthesis request outcome.
func (m *Metrics) RecordSynthesis(kind string, seconds float64) {
	m.SynthesisTotal.Inc()
	m.SynthesisLatency.Observe(seconds)
	if kind != "" {
		m.SynthesisErrors.WithLabelValues(kind).Inc()
	}
}

// RecordKafkaPublish records a Kafka publish outcome.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, seconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic, eventType).Observe(seconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
