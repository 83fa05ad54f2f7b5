package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderMetrics tracks payment provider call outcomes and retries.
type ProviderMetrics struct {
	callDuration *prometheus.HistogramVec
	retries      *prometheus.CounterVec
	failures     *prometheus.CounterVec
}

// NewProviderMetrics registers the provider metrics on the provided registerer.
func NewProviderMetrics(reg prometheus.Registerer) *ProviderMetrics {
	if reg == nil {
		return &ProviderMetrics{}
	}
	callDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_call_duration_seconds",
		Help:    "Duration of payment provider calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_call_retries",
		Help: "Rate-limited provider calls that were retried.",
	}, []string{"operation"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_call_failures",
		Help: "Provider calls that failed after retries.",
	}, []string{"operation"})
	reg.MustRegister(callDuration, retries, failures)
	return &ProviderMetrics{
		callDuration: callDuration,
		retries:      retries,
		failures:     failures,
	}
}

// ObserveCallDuration records the duration for the named operation.
func (m *ProviderMetrics) ObserveCallDuration(operation string, duration time.Duration) {
	if m == nil || m.callDuration == nil {
		return
	}
	m.callDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncRetry counts an extra attempt made for the named operation.
func (m *ProviderMetrics) IncRetry(operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncFailure counts a call that exhausted its attempts.
func (m *ProviderMetrics) IncFailure(operation string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(operation)).Inc()
}
