package storage

import (
	"context"
	"time"

	"github.com/mehedi/stockhook/internal/models"
)

// Store is the durable state of the delivery engine: the endpoint catalog
// and the delivery queue. Get* methods return (nil, nil) when no row
// matches.
type Store interface {
	// Endpoints
	CreateEndpoint(ctx context.Context, ep *models.Endpoint) error
	GetEndpoint(ctx context.Context, id string) (*models.Endpoint, error)
	ListEndpoints(ctx context.Context, tenantID string) ([]models.Endpoint, error)
	// ListSubscribedEndpoints returns the active endpoints of tenantID whose
	// subscriptions match eventType.
	ListSubscribedEndpoints(ctx context.Context, tenantID, eventType string) ([]models.Endpoint, error)
	SetEndpointStatus(ctx context.Context, id string, status models.EndpointStatus) error
	// RecordEndpointSuccess resets consecutive_failures to zero and stamps
	// last_triggered_at/last_success_at.
	RecordEndpointSuccess(ctx context.Context, id string, at time.Time) error
	// RecordEndpointFailure atomically increments consecutive_failures,
	// stamps last_triggered_at, and flips the endpoint to disabled once the
	// counter reaches disableThreshold. The increment and the threshold
	// check run as one row update so concurrent executors never lose counts.
	RecordEndpointFailure(ctx context.Context, id string, at time.Time, disableThreshold int) (failures int, disabled bool, err error)

	// Deliveries
	CreateDeliveries(ctx context.Context, ds []models.Delivery) error
	GetDelivery(ctx context.Context, id string) (*models.Delivery, error)
	ListDeliveriesByEndpoint(ctx context.Context, endpointID string, limit, offset int) ([]models.Delivery, error)
	// ClaimDueDeliveries atomically claims up to limit pending deliveries
	// whose next_attempt_at is not after now. A claim held longer than lease
	// (a crashed executor) becomes reclaimable. No two callers receive the
	// same delivery while a claim is live.
	ClaimDueDeliveries(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.Delivery, error)
	// UpdateDelivery persists the executor's outcome and releases the claim.
	UpdateDelivery(ctx context.Context, d *models.Delivery) error

	// Stats
	GetDeliveryStats(ctx context.Context, endpointID string) (*DeliveryStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

type DeliveryStats struct {
	Total           int64      `json:"total"`
	Sent            int64      `json:"sent"`
	Failed          int64      `json:"failed"`
	DLQ             int64      `json:"dlq"`
	Pending         int64      `json:"pending"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	LastSuccessAt   *time.Time `json:"last_success_at,omitempty"`
}
