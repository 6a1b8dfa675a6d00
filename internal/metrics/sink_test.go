package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		failed bool
		want   string
	}{
		{200, false, StatusClass2xx},
		{204, false, StatusClass2xx},
		{299, false, StatusClass2xx},
		{400, false, StatusClass4xx},
		{404, false, StatusClass4xx},
		{500, false, StatusClass5xx},
		{503, false, StatusClass5xx},
		{301, false, StatusClassOther},
		{0, true, StatusClassTransportError},
		{503, true, StatusClassTransportError},
	}
	for _, tt := range tests {
		if got := ClassifyStatus(tt.status, tt.failed); got != tt.want {
			t.Errorf("ClassifyStatus(%d, %v) = %q, want %q", tt.status, tt.failed, got, tt.want)
		}
	}
}

func TestPrometheusSinkCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)

	sink.DeliveryAttempt(StatusClass5xx, 20*time.Millisecond)
	sink.DeliveryAttempt(StatusClass5xx, 20*time.Millisecond)
	sink.DeliveryOutcome(OutcomeDLQ)
	sink.RetryScheduled()
	sink.EndpointDisabled()
	sink.SweepError()
	sink.DeliveriesEnqueued(3)

	if got := testutil.ToFloat64(sink.attemptsTotal.WithLabelValues(StatusClass5xx)); got != 2 {
		t.Errorf("attempts{5xx} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(sink.outcomesTotal.WithLabelValues(OutcomeDLQ)); got != 1 {
		t.Errorf("outcomes{dlq} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sink.retriesTotal); got != 1 {
		t.Errorf("retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sink.enqueuedTotal); got != 3 {
		t.Errorf("enqueued = %v, want 3", got)
	}
}

func TestPrometheusSinkDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusSink(reg)
	// A second sink on the same registry must not panic.
	NewPrometheusSink(reg)
}
