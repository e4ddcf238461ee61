package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prysmai/debate-arena/internal/store"
)

// HealthHandler reports service health including archive reachability.
type HealthHandler struct {
	archive store.Repository
}

// NewHealthHandler creates a health handler. archive may be nil.
func NewHealthHandler(archive store.Repository) *HealthHandler {
	return &HealthHandler{archive: archive}
}

// RegisterHealth mounts the detailed health endpoint.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.health)
}

func (h *HealthHandler) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"status":  "ok",
		"archive": "disabled",
	}

	if h.archive != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.archive.Ping(ctx); err != nil {
			resp["status"] = "degraded"
			resp["archive"] = "unreachable"
			JSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["archive"] = "ok"
	}

	JSON(w, http.StatusOK, resp)
}
