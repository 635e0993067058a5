// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "meeting_session"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Connection metrics
	ConnectionState       prometheus.Gauge
	StateTransitions      *prometheus.CounterVec
	ReconnectAttempts     prometheus.Counter
	ReconnectExhaustions  prometheus.Counter
	DeferredReconnects    prometheus.Counter
	WidgetInstances       prometheus.Counter
	WidgetConfigErrors    *prometheus.CounterVec

	// Lifecycle guard metrics
	KeepAlivePings         prometheus.Counter
	WakeLockReacquisitions prometheus.Counter
	AudioResumes           prometheus.Counter
	CapabilityFailures     *prometheus.CounterVec
	PageEvents             *prometheus.CounterVec

	// Recording / transcript metrics
	RecordingsStarted    prometheus.Counter
	TranscriptLines      *prometheus.CounterVec
	TranscriptionLatency prometheus.Histogram
	TranscriptionErrors  *prometheus.CounterVec

	// Save metrics
	SaveAttempts  *prometheus.CounterVec
	SaveLatency   prometheus.Histogram
	PendingSaves  prometheus.Gauge
	SavesDeferred prometheus.Counter

	// Event publish metrics
	PublishTotal   *prometheus.CounterVec
	PublishErrors  *prometheus.CounterVec
	PublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (0=connecting 1=connected 2=disconnected 3=reconnecting 4=ended 5=failed)",
		}),
		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Total connection state transitions",
		}, []string{"from", "to"}),
		ReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Total reconnect attempts",
		}),
		ReconnectExhaustions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_exhaustions_total",
			Help:      "Total times the reconnect budget was exhausted",
		}),
		DeferredReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deferred_reconnects_total",
			Help:      "Total disconnects deferred because the page was hidden",
		}),
		WidgetInstances: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "widget_instances_total",
			Help:      "Total widget instances created",
		}),
		WidgetConfigErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "widget_config_errors_total",
			Help:      "Total widget configuration/permission errors",
		}, []string{"code"}),

		KeepAlivePings: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keepalive_pings_total",
			Help:      "Total inert keep-alive messages sent through the widget data channel",
		}),
		WakeLockReacquisitions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wakelock_reacquisitions_total",
			Help:      "Total wake lock (re)acquisitions",
		}),
		AudioResumes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_resumes_total",
			Help:      "Total attempts to resume the near-silent audio keeper",
		}),
		CapabilityFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capability_failures_total",
			Help:      "Total best-effort platform capability failures",
		}, []string{"capability"}),
		PageEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_events_total",
			Help:      "Total platform lifecycle events observed",
		}, []string{"event"}),

		RecordingsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_started_total",
			Help:      "Total microphone recordings started",
		}),
		TranscriptLines: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_lines_total",
			Help:      "Total transcript lines accumulated",
		}, []string{"source"}),
		TranscriptionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_latency_seconds",
			Help:      "Remote transcription call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		TranscriptionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_errors_total",
			Help:      "Total transcription call failures",
		}, []string{"provider", "error_type"}),

		SaveAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_attempts_total",
			Help:      "Total end-of-call save attempts",
		}, []string{"outcome"}),
		SaveLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_latency_seconds",
			Help:      "Remote persistence call latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		PendingSaves: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_saves",
			Help:      "Whether a pending meeting save is currently held in local durable storage (0 or 1)",
		}),
		SavesDeferred: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saves_deferred_total",
			Help:      "Total saves deferred to local storage pending authentication",
		}),

		PublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total session events published",
		}, []string{"topic", "event_type"}),
		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total session event publish errors",
		}, []string{"topic", "event_type"}),
		PublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_latency_seconds",
			Help:      "Session event publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordTransition records a connection state transition.
func (m *Metrics) RecordTransition(from, to string, stateValue int) {
	m.StateTransitions.WithLabelValues(from, to).Inc()
	m.ConnectionState.Set(float64(stateValue))
}

// RecordReconnectAttempt records one reconnect attempt.
func (m *Metrics) RecordReconnectAttempt() {
	m.ReconnectAttempts.Inc()
}

// RecordReconnectExhausted records a reconnect budget exhaustion.
func (m *Metrics) RecordReconnectExhausted() {
	m.ReconnectExhaustions.Inc()
}

// RecordDeferredReconnect records a disconnect deferred while hidden.
func (m *Metrics) RecordDeferredReconnect() {
	m.DeferredReconnects.Inc()
}

// RecordWidgetCreated records a widget instance creation.
func (m *Metrics) RecordWidgetCreated() {
	m.WidgetInstances.Inc()
}

// RecordConfigError records a widget configuration/permission error.
func (m *Metrics) RecordConfigError(code string) {
	m.WidgetConfigErrors.WithLabelValues(code).Inc()
}

// RecordKeepAlive records a keep-alive ping.
func (m *Metrics) RecordKeepAlive() {
	m.KeepAlivePings.Inc()
}

// RecordCapabilityFailure records a best-effort capability failure.
func (m *Metrics) RecordCapabilityFailure(capability string) {
	m.CapabilityFailures.WithLabelValues(capability).Inc()
}

// RecordPageEvent records a platform lifecycle event.
func (m *Metrics) RecordPageEvent(event string) {
	m.PageEvents.WithLabelValues(event).Inc()
}

// RecordTranscriptLine records an accumulated transcript line.
func (m *Metrics) RecordTranscriptLine(source string) {
	m.TranscriptLines.WithLabelValues(source).Inc()
}

// RecordTranscription records a transcription call latency. Failures are
// counted separately with RecordTranscriptionError.
func (m *Metrics) RecordTranscription(latencySeconds float64) {
	m.TranscriptionLatency.Observe(latencySeconds)
}

// RecordTranscriptionError records a transcription call failure.
func (m *Metrics) RecordTranscriptionError(provider, errorType string) {
	m.TranscriptionErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordSaveAttempt records a save attempt outcome
// (success, error, needs_auth, skipped).
func (m *Metrics) RecordSaveAttempt(outcome string, latencySeconds float64) {
	m.SaveAttempts.WithLabelValues(outcome).Inc()
	if latencySeconds > 0 {
		m.SaveLatency.Observe(latencySeconds)
	}
}

// SetPendingSave records whether a pending save is held locally.
func (m *Metrics) SetPendingSave(present bool) {
	if present {
		m.PendingSaves.Set(1)
	} else {
		m.PendingSaves.Set(0)
	}
}

// RecordPublish records a session event publish attempt.
func (m *Metrics) RecordPublish(topic, eventType string, err error, latencySeconds float64) {
	m.PublishTotal.WithLabelValues(topic, eventType).Inc()
	m.PublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.PublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
