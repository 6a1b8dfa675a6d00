package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mehedi/stockhook/internal/storage"
)

type DeliveryHandler struct {
	store storage.Store
}

func NewDeliveryHandler(store storage.Store) *DeliveryHandler {
	return &DeliveryHandler{store: store}
}

func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.GetDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get delivery")
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "delivery not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}
