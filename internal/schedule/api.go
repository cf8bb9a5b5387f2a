package schedule

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sepguard/platform/internal/shared/errors"
)

// Handler provides HTTP handlers for the assessment schedule
type Handler struct {
	scheduler *Scheduler
}

// NewHandler creates a schedule handler
func NewHandler(scheduler *Scheduler) *Handler {
	return &Handler{scheduler: scheduler}
}

// Register adds the schedule routes to r
func (h *Handler) Register(r chi.Router) {
	r.Route("/testing-schedule", func(r chi.Router) {
		r.Get("/", h.GetSchedule)
		r.Put("/", h.UpdateSchedule)
		r.Post("/run", h.TriggerRound)
	})
}

// GetSchedule returns the assessment cadence, run times and round progress
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	status, err := h.scheduler.Status(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// UpdateSchedule changes the assessment interval
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req UpdateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	sched, err := h.scheduler.UpdateInterval(r.Context(), req.IntervalHours)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sched)
}

// TriggerRound runs an assessment round immediately
func (h *Handler) TriggerRound(w http.ResponseWriter, r *http.Request) {
	summary, err := h.scheduler.TriggerNow(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
