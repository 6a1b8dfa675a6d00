package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink with the Prometheus client library.
// Registration errors are logged, never propagated.
type PrometheusSink struct {
	attemptsTotal    *prometheus.CounterVec
	outcomesTotal    *prometheus.CounterVec
	retriesTotal     prometheus.Counter
	disabledTotal    prometheus.Counter
	sweepErrorsTotal prometheus.Counter
	enqueuedTotal    prometheus.Counter
	attemptDuration  prometheus.Histogram
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockhook_delivery_attempts_total",
			Help: "Total number of outbound webhook delivery attempts.",
		}, []string{"status_class"}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockhook_delivery_outcomes_total",
			Help: "Total number of deliveries reaching a terminal state.",
		}, []string{"outcome"}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockhook_delivery_retries_scheduled_total",
			Help: "Total number of retryable failures re-queued with backoff.",
		}),
		disabledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockhook_endpoints_disabled_total",
			Help: "Total number of endpoints auto-disabled for persistent failure.",
		}),
		sweepErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockhook_sweep_errors_total",
			Help: "Total number of sweep cycles that failed against the store.",
		}),
		enqueuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockhook_deliveries_enqueued_total",
			Help: "Total number of delivery records created by fan-out.",
		}),
		attemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stockhook_delivery_attempt_duration_seconds",
			Help:    "Outbound webhook request latency in seconds (excludes backoff wait).",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}

	s.register(reg, s.attemptsTotal, "stockhook_delivery_attempts_total")
	s.register(reg, s.outcomesTotal, "stockhook_delivery_outcomes_total")
	s.register(reg, s.retriesTotal, "stockhook_delivery_retries_scheduled_total")
	s.register(reg, s.disabledTotal, "stockhook_endpoints_disabled_total")
	s.register(reg, s.sweepErrorsTotal, "stockhook_sweep_errors_total")
	s.register(reg, s.enqueuedTotal, "stockhook_deliveries_enqueued_total")
	s.register(reg, s.attemptDuration, "stockhook_delivery_attempt_duration_seconds")
	return s
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

func (s *PrometheusSink) DeliveryAttempt(statusClass string, duration time.Duration) {
	s.attemptsTotal.WithLabelValues(statusClass).Inc()
	s.attemptDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) DeliveryOutcome(outcome string) {
	s.outcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) RetryScheduled() {
	s.retriesTotal.Inc()
}

func (s *PrometheusSink) EndpointDisabled() {
	s.disabledTotal.Inc()
}

func (s *PrometheusSink) SweepError() {
	s.sweepErrorsTotal.Inc()
}

func (s *PrometheusSink) DeliveriesEnqueued(n int) {
	s.enqueuedTotal.Add(float64(n))
}
