// Package httpapp exposes the service health surface over chi.
package httpapp

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/text2tracks/backend/internal/constants"
	"github.com/text2tracks/backend/internal/logger"
)

// Catalog is the read-only slice of the track store the handlers report on.
type Catalog interface {
	CountTracks(ctx context.Context) (int, error)
	CountPendingTracks(ctx context.Context) (int, error)
}

// Handler serves liveness and backlog endpoints. Catalog is nil when the
// service runs without a database; /stats degrades to 503 in that case.
type Handler struct {
	Catalog Catalog
	Logger  *logger.Logger
}

func NewHandler(catalog Catalog, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Catalog: catalog,
		Logger:  log.WithComponent("httpapp"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Health)
	r.Get("/healthz", h.Health)
	r.Get("/stats", h.Stats)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": constants.ServiceName,
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.Catalog == nil {
		http.Error(w, "catalog store not configured", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()
	tracks, err := h.Catalog.CountTracks(ctx)
	if err != nil {
		h.Logger.Error("failed to count tracks", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	pending, err := h.Catalog.CountPendingTracks(ctx)
	if err != nil {
		h.Logger.Error("failed to count pending tracks", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]int{
		"tracks":  tracks,
		"pending": pending,
	})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("failed to encode response", "error", err)
	}
}
