package patient

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sepguard/platform/internal/shared/errors"
	"github.com/sepguard/platform/internal/shared/types"
)

// Discharger tears down everything attached to a patient on delete:
// alerts, lock state, whatever else the pipeline holds.
type Discharger interface {
	Discharge(ctx context.Context, id types.ID) error
}

// Handler provides HTTP handlers for patient records
type Handler struct {
	repo       Repository
	discharger Discharger
	clock      types.Clock
}

// NewHandler creates a new patient handler. discharger may be nil, in
// which case deletes go straight to the repository.
func NewHandler(repo Repository, discharger Discharger, clock types.Clock) *Handler {
	return &Handler{repo: repo, discharger: discharger, clock: clock}
}

// Register adds the patient routes to r. Flat patterns are used because
// the ingest endpoints live under the same /patients prefix in another
// package.
func (h *Handler) Register(r chi.Router) {
	r.Get("/patients", h.ListPatients)
	r.Post("/patients", h.CreatePatient)
	r.Get("/patients/{patientID}", h.GetPatient)
	r.Put("/patients/{patientID}", h.UpdatePatient)
	r.Delete("/patients/{patientID}", h.DeletePatient)
	r.Get("/patients/{patientID}/vitals", h.ListVitals)
	r.Get("/patients/{patientID}/vitals/latest", h.GetLatestVitals)
	r.Get("/patients/{patientID}/labs", h.ListLabs)
	r.Get("/patients/{patientID}/labs/latest", h.GetLatestLabs)
	r.Get("/patients/{patientID}/sensors", h.ListPatientSensors)
	r.Get("/sensors", h.ListSensors)
}

// ListPatients lists all patients
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.repo.ListPatients(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  patients,
		"total": len(patients),
	})
}

// GetPatient gets a patient by ID
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	p, err := h.repo.GetPatient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// CreatePatient admits a new patient
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	problems := make(map[string]string)
	if req.Name == "" {
		problems["name"] = "name is required"
	}
	if req.Room == "" {
		problems["room"] = "room is required"
	}
	if req.Age <= 0 || req.Age > 130 {
		problems["age"] = "age must be between 1 and 130"
	}
	if len(problems) > 0 {
		writeError(w, errors.Validation("validation failed", problems))
		return
	}

	now := h.clock.Now()
	admittedAt := now
	if req.AdmittedAt != nil {
		admittedAt = *req.AdmittedAt
	}

	p := &Patient{
		ID:         types.NewID(),
		Name:       req.Name,
		Room:       req.Room,
		Age:        req.Age,
		AdmittedAt: admittedAt,
		RiskScore:  0,
		RiskTier:   TierNormal,
		Trend:      TrendStable,
		CreatedAt:  now,
	}

	if err := h.repo.CreatePatient(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// UpdatePatient updates patient details
func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	p, err := h.repo.GetPatient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Room != nil {
		p.Room = *req.Room
	}
	if req.Age != nil {
		if *req.Age <= 0 || *req.Age > 130 {
			writeError(w, errors.Validation("validation failed", map[string]string{
				"age": "age must be between 1 and 130",
			}))
			return
		}
		p.Age = *req.Age
	}

	if err := h.repo.UpdatePatient(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// DeletePatient discharges a patient and drops their history
func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	if h.discharger != nil {
		err = h.discharger.Discharge(r.Context(), id)
	} else {
		err = h.repo.DeletePatient(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListVitals returns a patient's vitals history, newest first
func (h *Handler) ListVitals(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	if _, err := h.repo.GetPatient(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	samples, err := h.repo.ListVitals(r.Context(), id, parseLimit(r, 100))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  samples,
		"total": len(samples),
	})
}

// GetLatestVitals returns a patient's most recent vitals sample
func (h *Handler) GetLatestVitals(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	if _, err := h.repo.GetPatient(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	sample, err := h.repo.LatestVitals(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if sample == nil {
		writeError(w, errors.NotFound("vitals sample", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, sample)
}

// ListLabs returns a patient's lab history, newest first
func (h *Handler) ListLabs(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	if _, err := h.repo.GetPatient(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	samples, err := h.repo.ListLabs(r.Context(), id, parseLimit(r, 100))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  samples,
		"total": len(samples),
	})
}

// GetLatestLabs returns a patient's most recent lab panel
func (h *Handler) GetLatestLabs(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	if _, err := h.repo.GetPatient(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	sample, err := h.repo.LatestLabs(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if sample == nil {
		writeError(w, errors.NotFound("lab sample", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, sample)
}

// ListPatientSensors returns one patient's sensors
func (h *Handler) ListPatientSensors(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	if _, err := h.repo.GetPatient(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	sensors, err := h.repo.ListPatientSensors(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  sensors,
		"total": len(sensors),
	})
}

// ListSensors returns all sensors across the unit
func (h *Handler) ListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := h.repo.ListSensors(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  sensors,
		"total": len(sensors),
	})
}

func parseLimit(r *http.Request, def int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return def
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
