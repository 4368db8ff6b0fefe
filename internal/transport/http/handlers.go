package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mealcard/internal/meal/models"
)

// MealService is the request-facing slice of the meal service.
type MealService interface {
	Submit(ctx context.Context, personID int64, date time.Time, slots []models.MealSlot) error
	Selections(ctx context.Context, personID int64, date time.Time) ([]models.MealSlot, error)
}

// JobTrigger runs scheduled jobs on demand.
type JobTrigger interface {
	Trigger(ctx context.Context, name string) error
	Jobs() []string
}

// HealthCheck probes one backing dependency for the health endpoint.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	meals  MealService
	jobs   JobTrigger
	checks map[string]HealthCheck
}

type HandlerOption func(*Handler)

// WithHealthCheck registers a named dependency probe reported by /health.
func WithHealthCheck(name string, check HealthCheck) HandlerOption {
	return func(h *Handler) { h.checks[name] = check }
}

func NewHandler(meals MealService, jobs JobTrigger, opts ...HandlerOption) *Handler {
	h := &Handler{meals: meals, jobs: jobs, checks: make(map[string]HealthCheck)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body[name] = err.Error()
			continue
		}
		body[name] = "ok"
	}
	writeJSON(w, status, body)
}

type mealSubmitRequest struct {
	PersonID int64    `json:"person_id"`
	Date     string   `json:"date"`
	Meals    []string `json:"meals"`
}

func (h *Handler) handleMealSubmit(w http.ResponseWriter, r *http.Request) {
	var req mealSubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, err)
		return
	}
	slots := make([]models.MealSlot, 0, len(req.Meals))
	for _, m := range req.Meals {
		slots = append(slots, models.MealSlot(m))
	}
	if err := h.meals.Submit(r.Context(), req.PersonID, date, slots); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "saved"})
}

func (h *Handler) handleMealGet(w http.ResponseWriter, r *http.Request) {
	personID, err := strconv.ParseInt(r.URL.Query().Get("person_id"), 10, 64)
	if err != nil {
		writeError(w, badRequest("person_id is required"))
		return
	}
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, err)
		return
	}
	slots, err := h.meals.Selections(r.Context(), personID, date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"meals": slots})
}

func (h *Handler) handleJobsList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": h.jobs.Jobs()})
}

func (h *Handler) handleJobTrigger(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.jobs.Trigger(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job": name, "status": "completed"})
}
