package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// Emitter is the producer-facing entry point of the dispatch engine.
type Emitter interface {
	Emit(ctx context.Context, tenantID, eventType string, payload json.RawMessage) (int, error)
}

type EventHandler struct {
	emitter Emitter
}

func NewEventHandler(e Emitter) *EventHandler {
	return &EventHandler{emitter: e}
}

type emitRequest struct {
	TenantID  string          `json:"tenant_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type emitResponse struct {
	DeliveriesCreated int `json:"deliveries_created"`
}

// Emit enqueues deliveries for one business event. Fire-and-forget from the
// producer's perspective: the 202 means the records are persisted, not that
// anything was transmitted yet.
func (h *EventHandler) Emit(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" || req.EventType == "" {
		writeError(w, http.StatusBadRequest, "tenant_id and event_type are required")
		return
	}
	if len(req.Payload) == 0 {
		req.Payload = json.RawMessage("{}")
	}

	n, err := h.emitter.Emit(r.Context(), req.TenantID, req.EventType, req.Payload)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enqueue deliveries")
		return
	}
	writeJSON(w, http.StatusAccepted, emitResponse{DeliveriesCreated: n})
}
