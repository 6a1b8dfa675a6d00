package metrics

import "time"

// NoopSink is used when metrics are disabled, avoiding nil checks at call
// sites.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) DeliveryAttempt(statusClass string, duration time.Duration) {}
func (n *NoopSink) DeliveryOutcome(outcome string)                             {}
func (n *NoopSink) RetryScheduled()                                            {}
func (n *NoopSink) EndpointDisabled()                                          {}
func (n *NoopSink) SweepError()                                                {}
func (n *NoopSink) DeliveriesEnqueued(count int)                               {}
