package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sepguard/platform/internal/alert"
	"github.com/sepguard/platform/internal/shared/errors"
	"github.com/sepguard/platform/internal/shared/middleware"
	"github.com/sepguard/platform/internal/shared/types"
)

// Handler provides the ingest and assessment endpoints
type Handler struct {
	service *Service
	limiter *middleware.IPRateLimiter
}

// NewHandler creates a monitor handler. The rate limiter guards the ingest
// endpoints against runaway device gateways; nil disables limiting.
func NewHandler(service *Service, limiter *middleware.IPRateLimiter) *Handler {
	return &Handler{service: service, limiter: limiter}
}

// Register adds the ingest routes to r. The patterns share the /patients
// prefix with the record store endpoints, so they are registered flat on
// the same router.
func (h *Handler) Register(r chi.Router) {
	ingest := r
	if h.limiter != nil {
		ingest = r.With(h.limiter.Middleware)
	}
	ingest.Post("/patients/{patientID}/vitals", h.IngestVitals)
	ingest.Post("/patients/{patientID}/labs", h.IngestLabs)
	r.Post("/patients/{patientID}/assess", h.Assess)
}

// IngestVitals accepts a vitals sample for a patient
func (h *Handler) IngestVitals(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	var req IngestVitalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	result, err := h.service.IngestVitals(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// IngestLabs accepts a lab result set for a patient
func (h *Handler) IngestLabs(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	var req IngestLabsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	result, err := h.service.IngestLabs(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// Assess re-scores a patient from stored samples on demand
func (h *Handler) Assess(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	result, err := h.service.Assess(r.Context(), id, alert.SourceVitalsMonitor)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
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
