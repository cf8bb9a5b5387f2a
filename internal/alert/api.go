package alert

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sepguard/platform/internal/shared/auth"
	"github.com/sepguard/platform/internal/shared/errors"
	"github.com/sepguard/platform/internal/shared/types"
)

// Handler provides HTTP handlers for alerts and alert configuration
type Handler struct {
	engine *Engine
}

// NewHandler creates a new alert handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Register adds the alert routes to r
func (h *Handler) Register(r chi.Router) {
	r.Route("/alerts", func(r chi.Router) {
		r.Get("/", h.ListAlerts)
		r.Get("/active", h.ListActiveAlerts)

		r.Route("/{alertID}", func(r chi.Router) {
			r.Get("/", h.GetAlert)
			r.Post("/acknowledge", h.AcknowledgeAlert)
		})
	})

	r.Route("/alert-settings", func(r chi.Router) {
		r.Get("/", h.GetConfig)
		r.Put("/", h.UpdateConfig)
	})
}

// ListAlerts lists alerts, optionally active-only or per patient
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}

	if r.URL.Query().Get("active") == "true" {
		filter.ActiveOnly = true
	}
	if raw := r.URL.Query().Get("patient_id"); raw != "" {
		id, err := types.ParseID(raw)
		if err != nil {
			writeError(w, errors.BadRequest("invalid patient ID"))
			return
		}
		filter.PatientID = &id
	}
	if raw := r.URL.Query().Get("severity"); raw != "" {
		severity := Severity(raw)
		filter.Severity = &severity
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	alerts, err := h.engine.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  alerts,
		"total": len(alerts),
	})
}

// ListActiveAlerts lists unacknowledged alerts, newest first
func (h *Handler) ListActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.engine.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  alerts,
		"total": len(alerts),
	})
}

// GetAlert gets a single alert
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "alertID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid alert ID"))
		return
	}

	a, err := h.engine.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// AcknowledgeAlert marks an alert as seen by a clinician
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "alertID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid alert ID"))
		return
	}

	var req AcknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	// Fall back to the authenticated user when the body omits a name
	if req.AcknowledgedBy == "" {
		if user := auth.GetUser(r.Context()); user != nil {
			req.AcknowledgedBy = user.Name
		}
	}

	a, err := h.engine.Acknowledge(r.Context(), id, req.AcknowledgedBy)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// GetConfig returns the alert configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.engine.Config(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// UpdateConfig applies a partial configuration change
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	cfg, err := h.engine.UpdateConfig(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
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
