package metrics

import "time"

// Sink records delivery-engine counters. All methods are fire-and-forget:
// implementations must not block or propagate errors.
type Sink interface {
	// DeliveryAttempt records one outbound HTTP attempt and its latency.
	DeliveryAttempt(statusClass string, duration time.Duration)
	// DeliveryOutcome records a delivery reaching a terminal state.
	DeliveryOutcome(outcome string)
	// RetryScheduled records a retryable failure that was re-queued.
	RetryScheduled()
	// EndpointDisabled records an endpoint crossing the auto-disable threshold.
	EndpointDisabled()
	// SweepError records a sweep cycle that failed against the store.
	SweepError()
	// DeliveriesEnqueued records the fan-out size of one emitted event.
	DeliveriesEnqueued(n int)
}

// Outcome constants for DeliveryOutcome.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
	OutcomeDLQ    = "dlq"
)

// StatusClass constants for DeliveryAttempt.
const (
	StatusClass2xx            = "2xx"
	StatusClass4xx            = "4xx"
	StatusClass5xx            = "5xx"
	StatusClassTransportError = "transport_error"
	StatusClassOther          = "other"
)

// ClassifyStatus maps an attempt result to a status class label.
func ClassifyStatus(statusCode int, failed bool) string {
	if failed {
		return StatusClassTransportError
	}
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassOther
	}
}
