// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "live_interpreter"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal      prometheus.Counter
	SessionsActive     prometheus.Gauge
	SessionFailures    *prometheus.CounterVec
	SpeakerSwitches    prometheus.Counter
	ReconnectTimeouts  prometheus.Counter
	ConnectionsOpened  prometheus.Counter
	ConnectionsFailed  *prometheus.CounterVec
	SwitchDuration     prometheus.Histogram
	StreamMessages     *prometheus.CounterVec
	MalformedMessages  prometheus.Counter
	StaleEventsDropped prometheus.Counter

	// Reconciliation metrics
	TokensClassified    *prometheus.CounterVec
	StaleTranslations   prometheus.Counter
	TimersArmed         prometheus.Counter
	TimersCancelled     prometheus.Counter
	StaleTimers         prometheus.Counter
	EntriesEmitted      *prometheus.CounterVec
	DuplicatesSuppressed *prometheus.CounterVec

	// Audio metrics
	AudioBytesSent    prometheus.Counter
	AudioChunksSent   prometheus.Counter
	AudioChunksDropped prometheus.Counter

	// Transcript fan-out metrics
	TranscriptEventsDropped *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Collaborator metrics (translate, tts, transcribe)
	CollaboratorRequests *prometheus.CounterVec
	CollaboratorLatency  *prometheus.HistogramVec

	// gRPC metrics
	RPCTotal    *prometheus.CounterVec
	RPCDuration prometheus.Histogram
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Session metrics
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of interpreter sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active interpreter sessions",
		}),
		SessionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_start_failures_total",
			Help:      "Total number of failed session starts",
		}, []string{"reason"}),
		SpeakerSwitches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speaker_switches_total",
			Help:      "Total number of speaker switches",
		}),
		ReconnectTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_timeouts_total",
			Help:      "Total number of speaker switches that continued without an open connection",
		}),
		ConnectionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_connections_opened_total",
			Help:      "Total number of streaming connections that reached the open state",
		}),
		ConnectionsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_connection_failures_total",
			Help:      "Total number of streaming connection errors and unexpected closes",
		}, []string{"kind"}),
		SwitchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "speaker_switch_duration_seconds",
			Help:      "Time taken by the speaker switch sequence",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.5, 1, 2, 3, 5},
		}),
		StreamMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_messages_total",
			Help:      "Total number of messages received from the streaming connection",
		}, []string{"kind"}),
		MalformedMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_messages_malformed_total",
			Help:      "Total number of unparsable stream messages dropped",
		}),
		StaleEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_stale_events_dropped_total",
			Help:      "Total number of events from detached connections that were ignored",
		}),

		// Reconciliation metrics
		TokensClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_classified_total",
			Help:      "Total number of tokens by classification",
		}, []string{"class"}),
		StaleTranslations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_without_source_total",
			Help:      "Total number of translation tokens discarded for lack of source context",
		}),
		TimersArmed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_timers_armed_total",
			Help:      "Total number of debounce timers armed",
		}),
		TimersCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_timers_cancelled_total",
			Help:      "Total number of debounce timers superseded before firing",
		}),
		StaleTimers: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debounce_timers_stale_total",
			Help:      "Total number of timer expiries ignored because they were superseded",
		}),
		EntriesEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_entries_total",
			Help:      "Total number of transcript entries emitted",
		}, []string{"path", "speaker"}),
		DuplicatesSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_duplicates_suppressed_total",
			Help:      "Total number of finalizations suppressed by the dedup ledger",
		}, []string{"path"}),

		// Audio metrics
		AudioBytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_sent_total",
			Help:      "Total audio bytes forwarded to the streaming connection",
		}),
		AudioChunksSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_sent_total",
			Help:      "Total audio chunks forwarded to the streaming connection",
		}),
		AudioChunksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_dropped_total",
			Help:      "Total audio chunks dropped because no connection was open",
		}),

		// Transcript fan-out metrics
		TranscriptEventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_events_dropped_total",
			Help:      "Total transcript events dropped for subscribers that fell behind",
		}, []string{"kind"}),

		// Kafka publish metrics
		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// Collaborator metrics
		CollaboratorRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_requests_total",
			Help:      "Total number of requests to external collaborators",
		}, []string{"collaborator", "outcome"}),
		CollaboratorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_latency_seconds",
			Help:      "Latency of external collaborator requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"collaborator"}),

		// gRPC metrics
		RPCTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC requests",
		}, []string{"method", "code"}),
		RPCDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "Duration of gRPC requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

// RecordSessionStart records a new session becoming active.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records an active session stopping.
func (m *Metrics) RecordSessionEnd() {
	m.SessionsActive.Dec()
}

// RecordSessionFailure records a session start that fell back to idle.
func (m *Metrics) RecordSessionFailure(reason string) {
	m.SessionFailures.WithLabelValues(reason).Inc()
}

// RecordSpeakerSwitch records a completed switch and how long it took.
func (m *Metrics) RecordSpeakerSwitch(durationSeconds float64, connected bool) {
	m.SpeakerSwitches.Inc()
	m.SwitchDuration.Observe(durationSeconds)
	if !connected {
		m.ReconnectTimeouts.Inc()
	}
}

// RecordConnectionOpened records a connection reaching the open state.
func (m *Metrics) RecordConnectionOpened() {
	m.ConnectionsOpened.Inc()
}

// RecordConnectionFailure records a connection error or unexpected close.
func (m *Metrics) RecordConnectionFailure(kind string) {
	m.ConnectionsFailed.WithLabelValues(kind).Inc()
}

// RecordStreamMessage records a message received from the streaming connection.
func (m *Metrics) RecordStreamMessage(kind string) {
	m.StreamMessages.WithLabelValues(kind).Inc()
}

// RecordMalformedMessage records an unparsable stream message.
func (m *Metrics) RecordMalformedMessage() {
	m.MalformedMessages.Inc()
}

// RecordStaleEvent records an event from a detached connection.
func (m *Metrics) RecordStaleEvent() {
	m.StaleEventsDropped.Inc()
}

// RecordTokens records n tokens of the given class.
func (m *Metrics) RecordTokens(class string, n int) {
	if n > 0 {
		m.TokensClassified.WithLabelValues(class).Add(float64(n))
	}
}

// RecordStaleTranslations records translation tokens dropped without source context.
func (m *Metrics) RecordStaleTranslations(n int) {
	if n > 0 {
		m.StaleTranslations.Add(float64(n))
	}
}

// RecordTimerArmed records a debounce timer being armed.
func (m *Metrics) RecordTimerArmed() {
	m.TimersArmed.Inc()
}

// RecordTimerCancelled records a debounce timer superseded before firing.
func (m *Metrics) RecordTimerCancelled() {
	m.TimersCancelled.Inc()
}

// RecordStaleTimer records an expiry ignored because its generation was superseded.
func (m *Metrics) RecordStaleTimer() {
	m.StaleTimers.Inc()
}

// RecordEntryEmitted records a transcript entry leaving the engine.
func (m *Metrics) RecordEntryEmitted(path, speaker string) {
	m.EntriesEmitted.WithLabelValues(path, speaker).Inc()
}

// RecordDuplicateSuppressed records a finalization blocked by the ledger.
func (m *Metrics) RecordDuplicateSuppressed(path string) {
	m.DuplicatesSuppressed.WithLabelValues(path).Inc()
}

// RecordAudioSent records an audio chunk forwarded to the connection.
func (m *Metrics) RecordAudioSent(bytes int) {
	m.AudioBytesSent.Add(float64(bytes))
	m.AudioChunksSent.Inc()
}

// RecordAudioDropped records an audio chunk with nowhere to go.
func (m *Metrics) RecordAudioDropped() {
	m.AudioChunksDropped.Inc()
}

// RecordTranscriptEventDropped records a lossy event discarded for a slow subscriber.
func (m *Metrics) RecordTranscriptEventDropped(kind string) {
	m.TranscriptEventsDropped.WithLabelValues(kind).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordCollaborator records a call to an external collaborator.
func (m *Metrics) RecordCollaborator(collaborator, outcome string, latencySeconds float64) {
	m.CollaboratorRequests.WithLabelValues(collaborator, outcome).Inc()
	m.CollaboratorLatency.WithLabelValues(collaborator).Observe(latencySeconds)
}

// RecordRPC records a completed gRPC call.
func (m *Metrics) RecordRPC(method, code string, durationSeconds float64) {
	m.RPCTotal.WithLabelValues(method, code).Inc()
	m.RPCDuration.Observe(durationSeconds)
}
