package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EventMetrics records outcomes for outbox publishing and event fan-out.
type EventMetrics struct {
	handlerDuration *prometheus.HistogramVec
	handlerSuccess  *prometheus.CounterVec
	handlerFailure  *prometheus.CounterVec
	published       *prometheus.CounterVec
	deadLettered    *prometheus.CounterVec
}

// NewEventMetrics registers the event metrics on the provided registerer.
func NewEventMetrics(reg prometheus.Registerer) *EventMetrics {
	if reg == nil {
		return &EventMetrics{}
	}
	handlerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fanout_handler_duration_seconds",
		Help:    "Duration of fan-out handlers in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"handler"})
	handlerSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fanout_handler_success",
		Help: "Successful fan-out handler executions.",
	}, []string{"handler"})
	handlerFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fanout_handler_failure",
		Help: "Failed fan-out handler executions.",
	}, []string{"handler"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published",
		Help: "Outbox rows successfully published to Pub/Sub.",
	}, []string{"event_type"})
	deadLettered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_dead_lettered",
		Help: "Outbox rows moved to the dead letter queue.",
	}, []string{"event_type"})
	reg.MustRegister(handlerDuration, handlerSuccess, handlerFailure, published, deadLettered)
	return &EventMetrics{
		handlerDuration: handlerDuration,
		handlerSuccess:  handlerSuccess,
		handlerFailure:  handlerFailure,
		published:       published,
		deadLettered:    deadLettered,
	}
}

// ObserveHandlerDuration records the duration for the named handler.
func (m *EventMetrics) ObserveHandlerDuration(handler string, duration time.Duration) {
	if m == nil || m.handlerDuration == nil {
		return
	}
	m.handlerDuration.WithLabelValues(normalizeLabel(handler)).Observe(duration.Seconds())
}

// IncHandlerSuccess increments the success counter for the named handler.
func (m *EventMetrics) IncHandlerSuccess(handler string) {
	if m == nil || m.handlerSuccess == nil {
		return
	}
	m.handlerSuccess.WithLabelValues(normalizeLabel(handler)).Inc()
}

// IncHandlerFailure increments the failure counter for the named handler.
func (m *EventMetrics) IncHandlerFailure(handler string) {
	if m == nil || m.handlerFailure == nil {
		return
	}
	m.handlerFailure.WithLabelValues(normalizeLabel(handler)).Inc()
}

// IncPublished increments the published counter for the event type.
func (m *EventMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDeadLettered increments the DLQ counter for the event type.
func (m *EventMetrics) IncDeadLettered(eventType string) {
	if m == nil || m.deadLettered == nil {
		return
	}
	m.deadLettered.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
