package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mehedi/stockhook/internal/models"
)

// MemoryStore keeps the same semantics as the SQLite driver in process
// memory. Used for tests and local development (storage.driver: memory).
type MemoryStore struct {
	mu         sync.Mutex
	endpoints  map[string]*models.Endpoint
	deliveries map[string]*models.Delivery
	claims     map[string]time.Time
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		endpoints:  make(map[string]*models.Endpoint),
		deliveries: make(map[string]*models.Delivery),
		claims:     make(map[string]time.Time),
	}
}

func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                      { return nil }

func copyEndpoint(ep *models.Endpoint) *models.Endpoint {
	c := *ep
	c.SubscribedEvents = append([]string(nil), ep.SubscribedEvents...)
	return &c
}

func copyDelivery(d *models.Delivery) *models.Delivery {
	c := *d
	c.Payload = append([]byte(nil), d.Payload...)
	return &c
}

// --- Endpoints ---

func (s *MemoryStore) CreateEndpoint(ctx context.Context, ep *models.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[ep.ID] = copyEndpoint(ep)
	return nil
}

func (s *MemoryStore) GetEndpoint(ctx context.Context, id string) (*models.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[id]
	if !ok {
		return nil, nil
	}
	return copyEndpoint(ep), nil
}

func (s *MemoryStore) ListEndpoints(ctx context.Context, tenantID string) ([]models.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Endpoint
	for _, ep := range s.endpoints {
		if ep.TenantID == tenantID {
			out = append(out, *copyEndpoint(ep))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListSubscribedEndpoints(ctx context.Context, tenantID, eventType string) ([]models.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Endpoint
	for _, ep := range s.endpoints {
		if ep.TenantID == tenantID && ep.Status == models.EndpointActive && ep.Subscribes(eventType) {
			out = append(out, *copyEndpoint(ep))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SetEndpointStatus(ctx context.Context, id string, status models.EndpointStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ep, ok := s.endpoints[id]; ok {
		ep.Status = status
		ep.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStore) RecordEndpointSuccess(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ep, ok := s.endpoints[id]; ok {
		ep.ConsecutiveFailures = 0
		ep.LastTriggeredAt = &at
		ep.LastSuccessAt = &at
		ep.UpdatedAt = at
	}
	return nil
}

func (s *MemoryStore) RecordEndpointFailure(ctx context.Context, id string, at time.Time, disableThreshold int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.endpoints[id]
	if !ok {
		return 0, false, nil
	}
	ep.ConsecutiveFailures++
	ep.LastTriggeredAt = &at
	ep.UpdatedAt = at
	if ep.ConsecutiveFailures >= disableThreshold {
		ep.Status = models.EndpointDisabled
	}
	return ep.ConsecutiveFailures, ep.Status == models.EndpointDisabled, nil
}

// --- Deliveries ---

func (s *MemoryStore) CreateDeliveries(ctx context.Context, ds []models.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range ds {
		s.deliveries[ds[i].ID] = copyDelivery(&ds[i])
	}
	return nil
}

func (s *MemoryStore) GetDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return nil, nil
	}
	return copyDelivery(d), nil
}

func (s *MemoryStore) ListDeliveriesByEndpoint(ctx context.Context, endpointID string, limit, offset int) ([]models.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var all []models.Delivery
	for _, d := range s.deliveries {
		if d.EndpointID == endpointID {
			all = append(all, *copyDelivery(d))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *MemoryStore) ClaimDueDeliveries(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]models.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	staleBefore := now.Add(-lease)

	var due []*models.Delivery
	for _, d := range s.deliveries {
		if d.Status != models.DeliveryPending || d.NextAttemptAt.After(now) {
			continue
		}
		if claimedAt, ok := s.claims[d.ID]; ok && claimedAt.After(staleBefore) {
			continue
		}
		due = append(due, d)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	var claimed []models.Delivery
	for _, d := range due {
		s.claims[d.ID] = now
		claimed = append(claimed, *copyDelivery(d))
	}
	return claimed, nil
}

func (s *MemoryStore) UpdateDelivery(ctx context.Context, d *models.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := copyDelivery(d)
	c.UpdatedAt = time.Now().UTC()
	s.deliveries[d.ID] = c
	delete(s.claims, d.ID)
	return nil
}

// --- Stats ---

func (s *MemoryStore) GetDeliveryStats(ctx context.Context, endpointID string) (*DeliveryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &DeliveryStats{}
	for _, d := range s.deliveries {
		if d.EndpointID != endpointID {
			continue
		}
		switch d.Status {
		case models.DeliverySent:
			stats.Sent++
		case models.DeliveryFailed:
			stats.Failed++
		case models.DeliveryDLQ:
			stats.DLQ++
		case models.DeliveryPending:
			stats.Pending++
		}
		stats.Total++
	}
	if ep, ok := s.endpoints[endpointID]; ok {
		stats.LastTriggeredAt = ep.LastTriggeredAt
		stats.LastSuccessAt = ep.LastSuccessAt
	}
	return stats, nil
}
