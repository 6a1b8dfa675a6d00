package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mehedi/stockhook/internal/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS endpoints (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			url TEXT NOT NULL,
			secret TEXT NOT NULL,
			subscribed_events TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'active',
			consecutive_failures INTEGER NOT NULL DEFAULT 0,
			last_triggered_at DATETIME,
			last_success_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS deliveries (
			id TEXT PRIMARY KEY,
			endpoint_id TEXT NOT NULL REFERENCES endpoints(id),
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 3,
			http_status INTEGER,
			error_message TEXT,
			next_attempt_at DATETIME NOT NULL,
			claimed_at DATETIME,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_endpoints_tenant ON endpoints(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_endpoint ON deliveries(endpoint_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_due ON deliveries(status, next_attempt_at) WHERE status = 'pending'`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Endpoints ---

func (s *SQLiteStore) CreateEndpoint(ctx context.Context, ep *models.Endpoint) error {
	events, _ := json.Marshal(ep.SubscribedEvents)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO endpoints (id, tenant_id, url, secret, subscribed_events, status, consecutive_failures, last_triggered_at, last_success_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.ID, ep.TenantID, ep.URL, ep.Secret, string(events), ep.Status, ep.ConsecutiveFailures, ep.LastTriggeredAt, ep.LastSuccessAt, ep.CreatedAt, ep.UpdatedAt,
	)
	return err
}

const endpointColumns = `id, tenant_id, url, secret, subscribed_events, status, consecutive_failures, last_triggered_at, last_success_at, created_at, updated_at`

func (s *SQLiteStore) scanEndpoint(row interface{ Scan(...interface{}) error }) (*models.Endpoint, error) {
	var ep models.Endpoint
	var events string
	err := row.Scan(&ep.ID, &ep.TenantID, &ep.URL, &ep.Secret, &events, &ep.Status, &ep.ConsecutiveFailures, &ep.LastTriggeredAt, &ep.LastSuccessAt, &ep.CreatedAt, &ep.UpdatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(events), &ep.SubscribedEvents)
	return &ep, nil
}

func (s *SQLiteStore) GetEndpoint(ctx context.Context, id string) (*models.Endpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+endpointColumns+` FROM endpoints WHERE id = ?`, id)
	ep, err := s.scanEndpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ep, err
}

func (s *SQLiteStore) ListEndpoints(ctx context.Context, tenantID string) ([]models.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+endpointColumns+` FROM endpoints WHERE tenant_id = ? ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []models.Endpoint
	for rows.Next() {
		ep, err := s.scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, *ep)
	}
	return endpoints, rows.Err()
}

func (s *SQLiteStore) ListSubscribedEndpoints(ctx context.Context, tenantID, eventType string) ([]models.Endpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+endpointColumns+` FROM endpoints WHERE tenant_id = ? AND status = 'active' ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []models.Endpoint
	for rows.Next() {
		ep, err := s.scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		if ep.Subscribes(eventType) {
			endpoints = append(endpoints, *ep)
		}
	}
	return endpoints, rows.Err()
}

func (s *SQLiteStore) SetEndpointStatus(ctx context.Context, id string, status models.EndpointStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE endpoints SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	return err
}

func (s *SQLiteStore) RecordEndpointSuccess(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE endpoints SET consecutive_failures = 0, last_triggered_at = ?, last_success_at = ?, updated_at = ? WHERE id = ?`,
		at, at, at, id,
	)
	return err
}

func (s *SQLiteStore) RecordEndpointFailure(ctx context.Context, id string, at time.Time, disableThreshold int) (int, bool, error) {
	// Increment and threshold check in a single statement so concurrent
	// executors for the same endpoint cannot under-count.
	row := s.db.QueryRowContext(ctx,
		`UPDATE endpoints SET
			consecutive_failures = consecutive_failures + 1,
			status = CASE WHEN consecutive_failures + 1 >= ? THEN 'disabled' ELSE status END,
			last_triggered_at = ?,
			updated_at = ?
		 WHERE id = ?
		 RETURNING consecutive_failures, status`,
		disableThreshold, at, at, id,
	)

	var failures int
	var status models.EndpointStatus
	if err := row.Scan(&failures, &status); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, err
	}
	return failures, status == models.EndpointDisabled, nil
}

// --- Deliveries ---

func (s *SQLiteStore) CreateDeliveries(ctx context.Context, ds []models.Delivery) error {
	if len(ds) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, d := range ds {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO deliveries (id, endpoint_id, event_type, payload, status, attempts, max_attempts, http_status, error_message, next_attempt_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.EndpointID, d.EventType, string(d.Payload), d.Status, d.Attempts, d.MaxAttempts, d.HTTPStatus, d.ErrorMessage, d.NextAttemptAt, d.CreatedAt, d.UpdatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const deliveryColumns = `id, endpoint_id, event_type, payload, status, attempts, max_attempts, http_status, error_message, next_attempt_at, created_at, updated_at`

func (s *SQLiteStore) scanDelivery(row interface{ Scan(...interface{}) error }) (*models.Delivery, error) {
	var d models.Delivery
	var payload string
	err := row.Scan(&d.ID, &d.EndpointID, &d.EventType, &payload, &d.Status, &d.Attempts, &d.MaxAttempts, &d.HTTPStatus, &d.ErrorMessage, &d.NextAttemptAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.Payload = json.RawMessage(payload)
	return &d, nil
}

func (s *SQLiteStore) GetDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE id = ?`, id)
	d, err := s.scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (s *SQLiteStore) ListDeliveriesByEndpoint(ctx context.Context, endpointID string, limit, offset int) ([]models.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE endpoint_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		endpointID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []models.Delivery
	for rows.Next() {
		d, err := s.scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, rows.Err()
}

func (s *SQLiteStore) ClaimDueDeliveries(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.Delivery, error) {
	staleBefore := now.Add(-lease)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries
		 WHERE status = 'pending' AND next_attempt_at <= ?
		   AND (claimed_at IS NULL OR claimed_at <= ?)
		 ORDER BY next_attempt_at ASC LIMIT ?`,
		now, staleBefore, limit)
	if err != nil {
		return nil, err
	}

	var candidates []models.Delivery
	for rows.Next() {
		d, err := s.scanDelivery(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, *d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Conditional update per row: only the caller whose update lands first
	// wins the claim.
	var claimed []models.Delivery
	for _, d := range candidates {
		res, err := s.db.ExecContext(ctx,
			`UPDATE deliveries SET claimed_at = ?
			 WHERE id = ? AND status = 'pending'
			   AND (claimed_at IS NULL OR claimed_at <= ?)`,
			now, d.ID, staleBefore)
		if err != nil {
			return claimed, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return claimed, err
		}
		if n == 1 {
			claimed = append(claimed, d)
		}
	}
	return claimed, nil
}

func (s *SQLiteStore) UpdateDelivery(ctx context.Context, d *models.Delivery) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE deliveries SET status = ?, attempts = ?, http_status = ?, error_message = ?, next_attempt_at = ?, claimed_at = NULL, updated_at = ? WHERE id = ?`,
		d.Status, d.Attempts, d.HTTPStatus, d.ErrorMessage, d.NextAttemptAt, time.Now().UTC(), d.ID,
	)
	return err
}

// --- Stats ---

func (s *SQLiteStore) GetDeliveryStats(ctx context.Context, endpointID string) (*DeliveryStats, error) {
	stats := &DeliveryStats{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM deliveries WHERE endpoint_id = ? GROUP BY status`, endpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status models.DeliveryStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch status {
		case models.DeliverySent:
			stats.Sent = count
		case models.DeliveryFailed:
			stats.Failed = count
		case models.DeliveryDLQ:
			stats.DLQ = count
		case models.DeliveryPending:
			stats.Pending = count
		}
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT last_triggered_at, last_success_at FROM endpoints WHERE id = ?`, endpointID,
	).Scan(&stats.LastTriggeredAt, &stats.LastSuccessAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return stats, nil
}
