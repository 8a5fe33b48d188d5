// Package safety exposes the alert history over HTTP.
package safety

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/auralabs/aura/backend/internal/store"
	"github.com/auralabs/aura/backend/pkg/utils"
)

// Handler serves safety alert queries.
type Handler struct {
	alerts store.AlertStore
}

// New creates the safety handler.
func New(alerts store.AlertStore) *Handler {
	return &Handler{alerts: alerts}
}

// RegisterRoutes registers the safety routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/safety/alerts", h.handleListAlerts)
}

// handleListAlerts lists the user's alerts, newest first.
func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		utils.RespondError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	alerts, err := h.alerts.ListByUser(r.Context(), userID)
	if err != nil {
		log.Printf("[safety] failed to list alerts: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	utils.RespondJSON(w, http.StatusOK, alerts)
}
