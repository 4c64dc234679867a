// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "voice_agent"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Turn metrics
	TurnsTotal   *prometheus.CounterVec
	TurnsActive  prometheus.Gauge
	TurnDuration *prometheus.HistogramVec

	// Routing and specialist metrics
	RoutingDecisions *prometheus.CounterVec
	GuardrailFlags   *prometheus.CounterVec
	Objections       *prometheus.CounterVec
	SentimentUpdates *prometheus.CounterVec
	LeadGrades       *prometheus.CounterVec
	Bookings         *prometheus.CounterVec

	// Completion service metrics
	CompletionLatency *prometheus.HistogramVec
	CompletionErrors  *prometheus.CounterVec

	// Checkpoint metrics
	CheckpointLatency *prometheus.HistogramVec
	CheckpointErrors  *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// gRPC metrics
	GRPCCalls         *prometheus.CounterVec
	GRPCStreamsActive prometheus.Gauge
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Turn metrics
		TurnsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of caller turns processed",
		}, []string{"specialist", "outcome"}),
		TurnsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "turns_active",
			Help:      "Number of turns currently being processed",
		}),
		TurnDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of turn processing in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"specialist"}),

		// Routing and specialist metrics
		RoutingDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Total number of routing decisions",
		}, []string{"specialist", "source"}),
		GuardrailFlags: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_flags_total",
			Help:      "Total number of guardrail checks that fired",
		}, []string{"check"}),
		Objections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "objections_total",
			Help:      "Total number of objections recorded",
		}, []string{"type", "outcome"}),
		SentimentUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentiment_updates_total",
			Help:      "Total number of sentiment updates",
		}, []string{"label", "source"}),
		LeadGrades: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lead_grades_total",
			Help:      "Total number of graded calls",
		}, []string{"grade"}),
		Bookings: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Total number of external booking attempts",
		}, []string{"result"}),

		// Completion service metrics
		CompletionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_seconds",
			Help:      "Completion service latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),
		CompletionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_errors_total",
			Help:      "Total number of completion service errors",
		}, []string{"provider"}),

		// Checkpoint metrics
		CheckpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkpoint_latency_seconds",
			Help:      "Checkpoint store operation latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"backend", "op"}),
		CheckpointErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_errors_total",
			Help:      "Total number of checkpoint store errors",
		}, []string{"backend", "op"}),

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

		// gRPC metrics
		GRPCCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls",
		}, []string{"method", "code"}),
		GRPCStreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grpc_streams_active",
			Help:      "Number of currently active gRPC streams",
		}),
	}
}

// RecordTurnStart records a turn entering processing.
func (m *Metrics) RecordTurnStart() {
	m.TurnsActive.Inc()
}

// RecordTurnEnd records a finished turn. outcome is "ok" or an error kind.
func (m *Metrics) RecordTurnEnd(specialist, outcome string, durationSeconds float64) {
	m.TurnsActive.Dec()
	m.TurnsTotal.WithLabelValues(specialist, outcome).Inc()
	m.TurnDuration.WithLabelValues(specialist).Observe(durationSeconds)
}

// RecordRouting records a routing decision.
func (m *Metrics) RecordRouting(specialist, source string) {
	m.RoutingDecisions.WithLabelValues(specialist, source).Inc()
}

// RecordGuardrails records every guardrail check that fired on a reply.
func (m *Metrics) RecordGuardrails(checks []string) {
	for _, c := range checks {
		m.GuardrailFlags.WithLabelValues(c).Inc()
	}
}

// RecordObjection records a new objection.
func (m *Metrics) RecordObjection(objectionType, outcome string) {
	m.Objections.WithLabelValues(objectionType, outcome).Inc()
}

// RecordSentiment records a sentiment update. source is "lexical" or "external".
func (m *Metrics) RecordSentiment(label, source string) {
	m.SentimentUpdates.WithLabelValues(label, source).Inc()
}

// RecordLeadGrade records a call's final grade.
func (m *Metrics) RecordLeadGrade(grade string) {
	m.LeadGrades.WithLabelValues(grade).Inc()
}

// RecordBooking records an external booking attempt.
func (m *Metrics) RecordBooking(result string) {
	m.Bookings.WithLabelValues(result).Inc()
}

// RecordCompletion records a completion service call.
func (m *Metrics) RecordCompletion(provider string, err error, latencySeconds float64) {
	m.CompletionLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.CompletionErrors.WithLabelValues(provider).Inc()
	}
}

// RecordCheckpoint records a checkpoint store operation.
func (m *Metrics) RecordCheckpoint(backend, op string, err error, latencySeconds float64) {
	m.CheckpointLatency.WithLabelValues(backend, op).Observe(latencySeconds)
	if err != nil {
		m.CheckpointErrors.WithLabelValues(backend, op).Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordGRPCCall records a finished gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
}
