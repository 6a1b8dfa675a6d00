package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mehedi/stockhook/internal/metrics"
	"github.com/mehedi/stockhook/internal/models"
	"github.com/mehedi/stockhook/internal/storage"
)

// Executor runs one delivery attempt end to end: sign, POST, classify the
// outcome, persist the new delivery state, and update the owning endpoint's
// health counters on terminal outcomes.
type Executor struct {
	store            storage.Store
	sender           *Sender
	schedule         []time.Duration
	disableThreshold int
	sink             metrics.Sink
	log              zerolog.Logger
}

func NewExecutor(store storage.Store, sender *Sender, schedule []time.Duration, disableThreshold int, sink metrics.Sink, log zerolog.Logger) *Executor {
	if len(schedule) == 0 {
		schedule = DefaultBackoffSchedule
	}
	return &Executor{
		store:            store,
		sender:           sender,
		schedule:         schedule,
		disableThreshold: disableThreshold,
		sink:             sink,
		log:              log,
	}
}

func (e *Executor) Process(ctx context.Context, d models.Delivery) {
	ep, err := e.store.GetEndpoint(ctx, d.EndpointID)
	if err != nil {
		e.log.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to load endpoint for delivery")
		return
	}
	if ep == nil {
		e.failTerminal(ctx, &d, nil, "endpoint no longer exists", nil)
		return
	}

	if ep.Secret == "" {
		// Signing errors must never happen in normal operation; when they
		// do, the delivery terminates like a 4xx without consuming a retry.
		e.failTerminal(ctx, &d, ep, "signing error: endpoint has no secret", nil)
		return
	}

	result := e.sender.Send(ctx, ep.URL, ep.Secret, d.ID, d.EventType, d.Payload)
	e.sink.DeliveryAttempt(metrics.ClassifyStatus(result.StatusCode, result.TransportError()), result.Latency)

	d.Attempts++
	now := time.Now().UTC()

	switch {
	case !result.TransportError() && IsSuccess(result.StatusCode):
		d.Status = models.DeliverySent
		d.HTTPStatus = &result.StatusCode
		d.ErrorMessage = nil
		if err := e.store.UpdateDelivery(ctx, &d); err != nil {
			e.log.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to update delivery")
			return
		}
		// Counters are frozen once an endpoint is disabled; in-flight
		// deliveries still run to their terminal outcome.
		if ep.Status == models.EndpointActive {
			if err := e.store.RecordEndpointSuccess(ctx, ep.ID, now); err != nil {
				e.log.Error().Err(err).Str("endpoint_id", ep.ID).Msg("failed to record endpoint success")
			}
		}
		e.sink.DeliveryOutcome(metrics.OutcomeSent)
		e.log.Info().
			Str("delivery_id", d.ID).
			Str("endpoint_id", ep.ID).
			Int("status_code", result.StatusCode).
			Dur("latency", result.Latency).
			Msg("delivery sent")

	case result.TransportError() || IsRetryable(result.StatusCode):
		errMsg := result.Err
		if errMsg == "" {
			errMsg = fmt.Sprintf("server error: %d %s", result.StatusCode, truncate(result.Body, 256))
		}
		if !result.TransportError() {
			d.HTTPStatus = &result.StatusCode
		}
		d.ErrorMessage = &errMsg

		if d.Attempts >= d.MaxAttempts {
			d.Status = models.DeliveryDLQ
			if err := e.store.UpdateDelivery(ctx, &d); err != nil {
				e.log.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to update delivery")
				return
			}
			e.recordFailure(ctx, &d, ep, now)
			e.sink.DeliveryOutcome(metrics.OutcomeDLQ)
			e.log.Warn().
				Str("delivery_id", d.ID).
				Str("endpoint_id", ep.ID).
				Int("attempts", d.Attempts).
				Str("error", errMsg).
				Msg("delivery dead-lettered")
			return
		}

		d.Status = models.DeliveryPending
		d.NextAttemptAt = NextAttemptAt(now, d.Attempts, e.schedule)
		if err := e.store.UpdateDelivery(ctx, &d); err != nil {
			e.log.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to update delivery")
			return
		}
		e.sink.RetryScheduled()
		e.log.Info().
			Str("delivery_id", d.ID).
			Str("endpoint_id", ep.ID).
			Int("attempt", d.Attempts).
			Time("next_attempt_at", d.NextAttemptAt).
			Msg("delivery scheduled for retry")

	default:
		// Client error: terminal regardless of remaining attempt budget.
		msg := fmt.Sprintf("client error: %d %s", result.StatusCode, truncate(result.Body, 256))
		e.failTerminal(ctx, &d, ep, msg, &result.StatusCode)
	}
}

// failTerminal marks the delivery failed without scheduling a retry and, if
// the endpoint is known and still active, counts the terminal failure.
func (e *Executor) failTerminal(ctx context.Context, d *models.Delivery, ep *models.Endpoint, msg string, httpStatus *int) {
	if d.Attempts == 0 {
		d.Attempts = 1
	}
	d.Status = models.DeliveryFailed
	d.HTTPStatus = httpStatus
	d.ErrorMessage = &msg
	if err := e.store.UpdateDelivery(ctx, d); err != nil {
		e.log.Error().Err(err).Str("delivery_id", d.ID).Msg("failed to update delivery")
		return
	}
	if ep != nil {
		e.recordFailure(ctx, d, ep, time.Now().UTC())
	}
	e.sink.DeliveryOutcome(metrics.OutcomeFailed)
	e.log.Warn().
		Str("delivery_id", d.ID).
		Str("event_type", d.EventType).
		Str("error", msg).
		Msg("delivery failed")
}

func (e *Executor) recordFailure(ctx context.Context, d *models.Delivery, ep *models.Endpoint, now time.Time) {
	if ep.Status != models.EndpointActive {
		return
	}
	failures, disabled, err := e.store.RecordEndpointFailure(ctx, ep.ID, now, e.disableThreshold)
	if err != nil {
		e.log.Error().Err(err).Str("endpoint_id", ep.ID).Msg("failed to record endpoint failure")
		return
	}
	if disabled {
		e.sink.EndpointDisabled()
		e.log.Warn().
			Str("endpoint_id", ep.ID).
			Str("tenant_id", ep.TenantID).
			Int("consecutive_failures", failures).
			Msg("endpoint auto-disabled after persistent failures")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
