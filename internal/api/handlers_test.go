package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mehedi/stockhook/internal/config"
	"github.com/mehedi/stockhook/internal/models"
	"github.com/mehedi/stockhook/internal/storage"
)

type stubEmitter struct {
	tenantID  string
	eventType string
	payload   json.RawMessage
	n         int
	err       error
}

func (s *stubEmitter) Emit(ctx context.Context, tenantID, eventType string, payload json.RawMessage) (int, error) {
	s.tenantID = tenantID
	s.eventType = eventType
	s.payload = payload
	return s.n, s.err
}

func newTestServer(store storage.Store, emitter Emitter, authToken string) *Server {
	return NewServer(config.ServerConfig{AuthToken: authToken}, store, emitter, false, zerolog.Nop())
}

func seedEndpoint(t *testing.T, store storage.Store, mutate func(*models.Endpoint)) *models.Endpoint {
	t.Helper()
	now := time.Now().UTC()
	ep := &models.Endpoint{
		ID:               models.NewID("ep"),
		TenantID:         "tnt_1",
		URL:              "https://hooks.example.com/stock",
		Secret:           models.NewSecret(),
		SubscribedEvents: []string{"inventory.updated"},
		Status:           models.EndpointActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if mutate != nil {
		mutate(ep)
	}
	if err := store.CreateEndpoint(context.Background(), ep); err != nil {
		t.Fatalf("failed to seed endpoint: %v", err)
	}
	return ep
}

func TestCreateEndpoint(t *testing.T) {
	store := storage.NewMemory()
	srv := newTestServer(store, &stubEmitter{}, "")

	body := `{"tenant_id":"tnt_1","url":"https://hooks.example.com/x","subscribed_events":["order.created"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/endpoints", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var got models.Endpoint
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !strings.HasPrefix(got.Secret, "whsec_") {
		t.Errorf("secret = %q, want whsec_ prefix (shown once at creation)", got.Secret)
	}
	if got.Status != models.EndpointActive {
		t.Errorf("status = %s, want active", got.Status)
	}
	if got.ConsecutiveFailures != 0 {
		t.Errorf("consecutive_failures = %d, want 0", got.ConsecutiveFailures)
	}

	// Subsequent reads never expose the secret again.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/endpoints/"+got.ID, nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var fetched models.Endpoint
	json.Unmarshal(rec.Body.Bytes(), &fetched)
	if fetched.Secret != "" {
		t.Errorf("secret leaked on read: %q", fetched.Secret)
	}
}

func TestCreateEndpointValidation(t *testing.T) {
	store := storage.NewMemory()
	srv := newTestServer(store, &stubEmitter{}, "")

	tests := []struct {
		name string
		body string
	}{
		{"missing tenant", `{"url":"https://x.example"}`},
		{"missing url", `{"tenant_id":"tnt_1"}`},
		{"bad scheme", `{"tenant_id":"tnt_1","url":"ftp://x.example"}`},
		{"not json", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/endpoints", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestListEndpointsHidesSecrets(t *testing.T) {
	store := storage.NewMemory()
	seedEndpoint(t, store, nil)
	srv := newTestServer(store, &stubEmitter{}, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/endpoints?tenant_id=tnt_1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []models.Endpoint
	json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got) != 1 {
		t.Fatalf("endpoints = %d, want 1", len(got))
	}
	if got[0].Secret != "" {
		t.Errorf("secret leaked in list: %q", got[0].Secret)
	}
}

func TestEnableDisableEndpoint(t *testing.T) {
	store := storage.NewMemory()
	ep := seedEndpoint(t, store, nil)
	srv := newTestServer(store, &stubEmitter{}, "")

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/endpoints/"+ep.ID+"/disable", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("disable status = %d", rec.Code)
	}

	got, _ := store.GetEndpoint(context.Background(), ep.ID)
	if got.Status != models.EndpointDisabled {
		t.Errorf("status = %s, want disabled", got.Status)
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/endpoints/"+ep.ID+"/enable", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("enable status = %d", rec.Code)
	}

	got, _ = store.GetEndpoint(context.Background(), ep.ID)
	if got.Status != models.EndpointActive {
		t.Errorf("status = %s, want active after administrative re-enable", got.Status)
	}
}

func TestEmitEvent(t *testing.T) {
	store := storage.NewMemory()
	emitter := &stubEmitter{n: 2}
	srv := newTestServer(store, emitter, "")

	body := `{"tenant_id":"tnt_1","event_type":"inventory.updated","payload":{"sku":"W-1","qty":5}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if emitter.tenantID != "tnt_1" || emitter.eventType != "inventory.updated" {
		t.Errorf("emitter called with (%q, %q)", emitter.tenantID, emitter.eventType)
	}
	if string(emitter.payload) != `{"sku":"W-1","qty":5}` {
		t.Errorf("payload = %s", emitter.payload)
	}

	var resp map[string]int
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["deliveries_created"] != 2 {
		t.Errorf("deliveries_created = %d, want 2", resp["deliveries_created"])
	}
}

func TestEmitEventValidation(t *testing.T) {
	srv := newTestServer(storage.NewMemory(), &stubEmitter{}, "")

	for _, body := range []string{
		`{"event_type":"inventory.updated"}`,
		`{"tenant_id":"tnt_1"}`,
		`not json`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestEndpointStats(t *testing.T) {
	store := storage.NewMemory()
	ep := seedEndpoint(t, store, nil)

	now := time.Now().UTC()
	ds := []models.Delivery{
		{ID: models.NewID("dlv"), EndpointID: ep.ID, EventType: "a", Payload: json.RawMessage(`{}`), Status: models.DeliverySent, MaxAttempts: 3, NextAttemptAt: now, CreatedAt: now, UpdatedAt: now},
		{ID: models.NewID("dlv"), EndpointID: ep.ID, EventType: "a", Payload: json.RawMessage(`{}`), Status: models.DeliveryDLQ, MaxAttempts: 3, NextAttemptAt: now, CreatedAt: now, UpdatedAt: now},
		{ID: models.NewID("dlv"), EndpointID: ep.ID, EventType: "a", Payload: json.RawMessage(`{}`), Status: models.DeliveryPending, MaxAttempts: 3, NextAttemptAt: now, CreatedAt: now, UpdatedAt: now},
	}
	if err := store.CreateDeliveries(context.Background(), ds); err != nil {
		t.Fatalf("seed deliveries failed: %v", err)
	}

	srv := newTestServer(store, &stubEmitter{}, "")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/endpoints/"+ep.ID+"/stats", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats storage.DeliveryStats
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats.Total != 3 || stats.Sent != 1 || stats.DLQ != 1 || stats.Pending != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Sent+stats.Failed+stats.DLQ+stats.Pending != stats.Total {
		t.Error("status counts do not sum to total")
	}
}

func TestGetDeliveryNotFound(t *testing.T) {
	srv := newTestServer(storage.NewMemory(), &stubEmitter{}, "")
	req := httptest.NewRequest(http.MethodGet, "/api/v1/deliveries/dlv_missing", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	store := storage.NewMemory()
	srv := newTestServer(store, &stubEmitter{}, "sekrit")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/endpoints?tenant_id=tnt_1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/endpoints?tenant_id=tnt_1", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/endpoints?tenant_id=tnt_1", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}

	// Health stays open.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health: status = %d, want 200", rec.Code)
	}
}
