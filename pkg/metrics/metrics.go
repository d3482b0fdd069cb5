// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// AnswerDuration tracks answer provider latency.
	AnswerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "answer_duration_seconds",
			Help:    "Answer provider call duration",
			Buckets: []float64{.1, .25, .5, 1, 1.5, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "status"},
	)

	// AnswersInFlight tracks answer provider calls that have not settled.
	AnswersInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "answers_in_flight",
			Help: "Answer provider calls awaiting completion",
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// PersistenceWritesTotal tracks durable slot writes.
	PersistenceWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persistence_writes_total",
			Help: "Durable slot writes",
		},
		[]string{"backend", "status"},
	)

	// PersistenceLoadsTotal tracks durable slot loads by outcome.
	PersistenceLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persistence_loads_total",
			Help: "Durable slot loads",
		},
		[]string{"result"},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks total messages appended.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages appended",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordAnswer records metrics for a settled answer provider call.
func RecordAnswer(provider, status string, duration float64) {
	AnswerDuration.WithLabelValues(provider, status).Observe(duration)
}

// RecordWrite records a durable slot write.
func RecordWrite(backend string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	PersistenceWritesTotal.WithLabelValues(backend, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
