package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mehedi/stockhook/internal/config"
	"github.com/mehedi/stockhook/internal/metrics"
	"github.com/mehedi/stockhook/internal/models"
	"github.com/mehedi/stockhook/internal/storage"
)

// Dispatcher owns the two entry points of the delivery engine: Emit, the
// synchronous fan-out called by event producers, and the periodic sweep
// that claims due deliveries and hands them to the executor pool.
type Dispatcher struct {
	store         storage.Store
	executor      *Executor
	workers       int
	maxAttempts   int
	sweepInterval time.Duration
	claimLease    time.Duration
	sink          metrics.Sink
	log           zerolog.Logger
	kick          chan struct{}
	stop          chan struct{}
	wg            sync.WaitGroup
}

func New(cfg config.DeliveryConfig, store storage.Store, sink metrics.Sink, log zerolog.Logger, version string) *Dispatcher {
	schedule := cfg.BackoffSchedule
	if len(schedule) == 0 {
		schedule = DefaultBackoffSchedule
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = models.MaxAttempts
	}
	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = 2 * time.Second
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 32
	}
	disableThreshold := cfg.DisableThreshold
	if disableThreshold <= 0 {
		disableThreshold = 10
	}

	// A claim outlives any single attempt; a crashed process's claims
	// become reclaimable after the lease.
	claimLease := 2 * cfg.Timeout
	if claimLease < time.Minute {
		claimLease = time.Minute
	}

	sender := NewSender(cfg.Timeout, version)
	executor := NewExecutor(store, sender, schedule, disableThreshold, sink, log)

	return &Dispatcher{
		store:         store,
		executor:      executor,
		workers:       workers,
		maxAttempts:   maxAttempts,
		sweepInterval: sweepInterval,
		claimLease:    claimLease,
		sink:          sink,
		log:           log,
		kick:          make(chan struct{}, 1),
		stop:          make(chan struct{}),
	}
}

// Emit fans one business event out to every active endpoint of the tenant
// subscribed to eventType, creating one pending delivery per match. It
// returns once the records are persisted; transmission happens
// asynchronously, so producers never block on network I/O.
func (d *Dispatcher) Emit(ctx context.Context, tenantID, eventType string, payload json.RawMessage) (int, error) {
	endpoints, err := d.store.ListSubscribedEndpoints(ctx, tenantID, eventType)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve subscribed endpoints: %w", err)
	}
	if len(endpoints) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	deliveries := make([]models.Delivery, 0, len(endpoints))
	for _, ep := range endpoints {
		deliveries = append(deliveries, models.Delivery{
			ID:            models.NewID("dlv"),
			EndpointID:    ep.ID,
			EventType:     eventType,
			Payload:       payload,
			Status:        models.DeliveryPending,
			Attempts:      0,
			MaxAttempts:   d.maxAttempts,
			NextAttemptAt: now,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if err := d.store.CreateDeliveries(ctx, deliveries); err != nil {
		return 0, fmt.Errorf("failed to enqueue deliveries: %w", err)
	}

	d.sink.DeliveriesEnqueued(len(deliveries))
	d.log.Debug().
		Str("tenant_id", tenantID).
		Str("event_type", eventType).
		Int("deliveries", len(deliveries)).
		Msg("event fanned out")

	// Nudge the sweeper so fresh deliveries don't wait a full interval.
	select {
	case d.kick <- struct{}{}:
	default:
	}
	return len(deliveries), nil
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.log.Info().
		Int("workers", d.workers).
		Dur("sweep_interval", d.sweepInterval).
		Msg("starting delivery dispatcher")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sweepLoop(ctx)
	}()
}

func (d *Dispatcher) Stop() {
	d.log.Info().Msg("stopping delivery dispatcher")
	close(d.stop)
	d.wg.Wait()
	d.log.Info().Msg("delivery dispatcher stopped")
}

func (d *Dispatcher) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, d.workers)

	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.kick:
		}
		d.sweep(ctx, sem)
	}
}

// sweep claims every due pending delivery and dispatches each to the
// executor pool. Store errors abort the cycle; delivery state is untouched
// and the next tick retries.
func (d *Dispatcher) sweep(ctx context.Context, sem chan struct{}) {
	deliveries, err := d.store.ClaimDueDeliveries(ctx, time.Now().UTC(), d.claimLease, d.workers)
	if err != nil {
		d.sink.SweepError()
		d.log.Error().Err(err).Msg("failed to claim due deliveries")
		return
	}

	for _, dlv := range deliveries {
		dlv := dlv
		sem <- struct{}{}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer func() { <-sem }()
			d.executor.Process(ctx, dlv)
		}()
	}
}
