package usecase

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/example/face-liveness/internal/liveness"
)

// Metrics holds the collectors describing broker traffic to the liveness service.
type Metrics struct {
	sessionsCreated  prometheus.Counter
	upstreamCalls    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	verdicts         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "liveness",
			Name:      "sessions_created_total",
			Help:      "Face liveness sessions created through the broker.",
		}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "liveness",
			Name:      "upstream_calls_total",
			Help:      "Calls made to the liveness service by operation and outcome.",
		}, []string{"operation", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "liveness",
			Name:      "upstream_call_duration_seconds",
			Help:      "Latency of calls to the liveness service.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "liveness",
			Name:      "verdicts_total",
			Help:      "Liveness verdicts by result and session status.",
		}, []string{"result", "status"}),
	}
	reg.MustRegister(m.sessionsCreated, m.upstreamCalls, m.upstreamDuration, m.verdicts)
	return m
}

func (m *Metrics) sessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) observeUpstream(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.upstreamCalls.WithLabelValues(operation, outcome).Inc()
	m.upstreamDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) verdict(v liveness.Verdict) {
	if m == nil {
		return
	}
	result := "fail"
	if v.Success {
		result = "pass"
	}
	m.verdicts.WithLabelValues(result, string(v.Status)).Inc()
}
