// Package httptransport is the thin HTTP layer: meal request endpoints for
// callers, plus operational surface (health, metrics, manual job triggers).
// It delegates to domain services without embedding business logic.
package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dErrors "mealcard/pkg/domain-errors"
)

// NewRouter wires all endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/meal", func(r chi.Router) {
		r.Post("/", h.handleMealSubmit)
		r.Get("/", h.handleMealGet)
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.handleJobsList)
		r.Post("/{name}/run", h.handleJobTrigger)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation so every handler returns
// the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	writeJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error": string(code),
	})
}
