package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mehedi/stockhook/internal/models"
	"github.com/mehedi/stockhook/internal/storage"
)

type EndpointHandler struct {
	store storage.Store
}

func NewEndpointHandler(store storage.Store) *EndpointHandler {
	return &EndpointHandler{store: store}
}

type createEndpointRequest struct {
	TenantID         string   `json:"tenant_id"`
	URL              string   `json:"url"`
	SubscribedEvents []string `json:"subscribed_events"`
}

func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEndpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "url must be a valid http(s) URL")
		return
	}

	now := time.Now().UTC()
	ep := &models.Endpoint{
		ID:               models.NewID("ep"),
		TenantID:         req.TenantID,
		URL:              req.URL,
		Secret:           models.NewSecret(),
		SubscribedEvents: req.SubscribedEvents,
		Status:           models.EndpointActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.store.CreateEndpoint(r.Context(), ep); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create endpoint")
		return
	}

	// The secret is returned once, at creation, and never re-derived.
	writeJSON(w, http.StatusCreated, ep)
}

func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id query parameter is required")
		return
	}

	endpoints, err := h.store.ListEndpoints(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list endpoints")
		return
	}

	for i := range endpoints {
		endpoints[i].Secret = ""
	}
	if endpoints == nil {
		endpoints = []models.Endpoint{}
	}
	writeJSON(w, http.StatusOK, endpoints)
}

func (h *EndpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	ep, err := h.store.GetEndpoint(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get endpoint")
		return
	}
	if ep == nil {
		writeError(w, http.StatusNotFound, "endpoint not found")
		return
	}
	ep.Secret = ""
	writeJSON(w, http.StatusOK, ep)
}

// Enable is the explicit administrative re-enable; the engine itself never
// transitions an endpoint back to active.
func (h *EndpointHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.EndpointActive)
}

func (h *EndpointHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.EndpointDisabled)
}

func (h *EndpointHandler) setStatus(w http.ResponseWriter, r *http.Request, status models.EndpointStatus) {
	id := chi.URLParam(r, "id")
	ep, err := h.store.GetEndpoint(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get endpoint")
		return
	}
	if ep == nil {
		writeError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	if err := h.store.SetEndpointStatus(r.Context(), id, status); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update endpoint")
		return
	}

	ep.Status = status
	ep.Secret = ""
	writeJSON(w, http.StatusOK, ep)
}

func (h *EndpointHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ep, err := h.store.GetEndpoint(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get endpoint")
		return
	}
	if ep == nil {
		writeError(w, http.StatusNotFound, "endpoint not found")
		return
	}

	stats, err := h.store.GetDeliveryStats(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get delivery stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *EndpointHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	deliveries, err := h.store.ListDeliveriesByEndpoint(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}
	if deliveries == nil {
		deliveries = []models.Delivery{}
	}
	writeJSON(w, http.StatusOK, deliveries)
}
