package alert

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sepguard/platform/internal/patient"
	"github.com/sepguard/platform/internal/risk"
	"github.com/sepguard/platform/internal/shared/errors"
	"github.com/sepguard/platform/internal/shared/metrics"
	"github.com/sepguard/platform/internal/shared/types"
)

// Notifier delivers an alert to external channels. Implementations must
// not block; the engine calls this on the ingest and assessment paths.
type Notifier interface {
	Notify(ctx context.Context, a *Alert, audio, email, sms bool)
}

// Broadcaster pushes an alert to connected dashboard clients
type Broadcaster interface {
	BroadcastAlert(a *Alert)
}

// Engine owns the alert lifecycle: raising with duplicate suppression,
// acknowledgement, and the unit-wide threshold configuration.
type Engine struct {
	repo        Repository
	notifier    Notifier
	broadcaster Broadcaster
	logger      *zap.Logger
	clock       types.Clock
}

// NewEngine creates an alert engine. notifier and broadcaster may be nil.
func NewEngine(repo Repository, notifier Notifier, broadcaster Broadcaster, logger *zap.Logger, clock types.Clock) *Engine {
	return &Engine{
		repo:        repo,
		notifier:    notifier,
		broadcaster: broadcaster,
		logger:      logger,
		clock:       clock,
	}
}

// Config returns the current alert configuration
func (e *Engine) Config(ctx context.Context) (*ThresholdConfig, error) {
	return e.repo.GetConfig(ctx)
}

// Thresholds returns the current tier cutoffs
func (e *Engine) Thresholds(ctx context.Context) (risk.Thresholds, error) {
	cfg, err := e.repo.GetConfig(ctx)
	if err != nil {
		return risk.Thresholds{}, err
	}
	return cfg.Thresholds, nil
}

// UpdateConfig applies a partial configuration change. The new cutoffs
// must stay strictly ordered or the whole update is rejected.
func (e *Engine) UpdateConfig(ctx context.Context, req UpdateConfigRequest) (*ThresholdConfig, error) {
	cfg, err := e.repo.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	if req.Critical != nil {
		cfg.Thresholds.Critical = *req.Critical
	}
	if req.Warning != nil {
		cfg.Thresholds.Warning = *req.Warning
	}
	if req.Monitor != nil {
		cfg.Thresholds.Monitor = *req.Monitor
	}
	if req.NotifyAudio != nil {
		cfg.NotifyAudio = *req.NotifyAudio
	}
	if req.NotifyEmail != nil {
		cfg.NotifyEmail = *req.NotifyEmail
	}
	if req.NotifySMS != nil {
		cfg.NotifySMS = *req.NotifySMS
	}
	if req.SuppressDuplicates != nil {
		cfg.SuppressDuplicates = *req.SuppressDuplicates
	}

	if !cfg.Thresholds.Valid() {
		return nil, errors.Validation("invalid thresholds", map[string]string{
			"thresholds": "critical > warning > monitor must hold, within 0-100",
		})
	}

	cfg.UpdatedAt = e.clock.Now()
	if err := e.repo.SaveConfig(ctx, cfg); err != nil {
		return nil, err
	}

	e.logger.Info("alert configuration updated",
		zap.Int("critical", cfg.Thresholds.Critical),
		zap.Int("warning", cfg.Thresholds.Warning),
		zap.Int("monitor", cfg.Thresholds.Monitor),
		zap.Bool("suppress_duplicates", cfg.SuppressDuplicates),
	)
	return cfg, nil
}

// Raise creates an alert unless an unacknowledged one of the same kind
// already exists for the patient and suppression is on. Returns (nil, nil)
// when suppressed.
func (e *Engine) Raise(ctx context.Context, patientID types.ID, severity Severity, kind, message, source string, score int) (*Alert, error) {
	cfg, err := e.repo.GetConfig(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.SuppressDuplicates {
		active, err := e.repo.HasActiveAlert(ctx, patientID, kind)
		if err != nil {
			return nil, err
		}
		if active {
			metrics.RecordAlertSuppressed()
			e.logger.Debug("duplicate alert suppressed",
				zap.String("patient_id", patientID.String()),
				zap.String("kind", kind),
			)
			return nil, nil
		}
	}

	a := &Alert{
		ID:        types.NewID(),
		PatientID: patientID,
		Severity:  severity,
		Kind:      kind,
		Message:   message,
		Source:    source,
		Score:     score,
		CreatedAt: e.clock.Now(),
	}

	if err := e.repo.CreateAlert(ctx, a); err != nil {
		return nil, err
	}

	metrics.RecordAlertRaised(string(severity), source)
	e.logger.Info("alert raised",
		zap.String("alert_id", a.ID.String()),
		zap.String("patient_id", patientID.String()),
		zap.String("severity", string(severity)),
		zap.String("kind", kind),
		zap.Int("score", score),
	)

	if e.notifier != nil {
		e.notifier.Notify(ctx, a, cfg.NotifyAudio, cfg.NotifyEmail, cfg.NotifySMS)
	}
	if e.broadcaster != nil {
		e.broadcaster.BroadcastAlert(a)
	}

	return a, nil
}

// RaiseForAssessment raises the alert an assessment calls for, if any.
// The critical and warning tiers alert on the overall score; below that, a
// critical lab breach still alerts on its own so a dangerous lactate or
// positive culture is never hidden by otherwise normal vitals.
func (e *Engine) RaiseForAssessment(ctx context.Context, patientID types.ID, a risk.Assessment, source string) (*Alert, error) {
	var severity Severity
	var kind string

	switch a.Tier {
	case patient.TierCritical:
		severity, kind = SeverityCritical, KindRiskCritical
	case patient.TierWarning:
		severity, kind = SeverityWarning, KindRiskWarning
	default:
		if f, ok := criticalLabFinding(a.Findings); ok {
			return e.Raise(ctx, patientID, SeverityWarning, KindLabFinding, f.Message, SourceLabAnalysis, a.Score)
		}
		return nil, nil
	}

	message := fmt.Sprintf("sepsis risk score %d (%s)", a.Score, a.Tier)
	if reasons := findingSummary(a.Findings); reasons != "" {
		message += ": " + reasons
	}

	return e.Raise(ctx, patientID, severity, kind, message, source, a.Score)
}

// criticalLabFinding returns the first critical lab observation, if any
func criticalLabFinding(findings []risk.Finding) (risk.Finding, bool) {
	for _, f := range findings {
		if f.Category == risk.FindingLabs && f.Severity == risk.FindingCritical {
			return f, true
		}
	}
	return risk.Finding{}, false
}

// findingSummary joins the most severe findings into a short reason string
func findingSummary(findings []risk.Finding) string {
	var parts []string
	for _, f := range findings {
		if f.Severity == risk.FindingCritical || f.Severity == risk.FindingWarning {
			parts = append(parts, f.Message)
		}
		if len(parts) == 3 {
			break
		}
	}
	return strings.Join(parts, "; ")
}

// Acknowledge marks an alert as seen. Acknowledging an already-acknowledged
// alert succeeds and returns it unchanged; the first acknowledger's stamp
// is kept.
func (e *Engine) Acknowledge(ctx context.Context, id types.ID, by string) (*Alert, error) {
	if by == "" {
		return nil, errors.Validation("validation failed", map[string]string{
			"acknowledged_by": "acknowledged_by is required",
		})
	}

	a, performed, err := e.repo.Acknowledge(ctx, id, by, e.clock.Now())
	if err != nil {
		return nil, err
	}

	if performed {
		metrics.RecordAlertAcknowledged()
		e.logger.Info("alert acknowledged",
			zap.String("alert_id", a.ID.String()),
			zap.String("acknowledged_by", by),
		)
		if e.broadcaster != nil {
			e.broadcaster.BroadcastAlert(a)
		}
	}

	return a, nil
}

// List returns alerts matching the filter, newest first
func (e *Engine) List(ctx context.Context, filter ListFilter) ([]*Alert, error) {
	return e.repo.ListAlerts(ctx, filter)
}

// ListActive returns all unacknowledged alerts, newest first
func (e *Engine) ListActive(ctx context.Context) ([]*Alert, error) {
	return e.repo.ListAlerts(ctx, ListFilter{ActiveOnly: true})
}

// Get returns a single alert
func (e *Engine) Get(ctx context.Context, id types.ID) (*Alert, error) {
	return e.repo.GetAlert(ctx, id)
}

// DeleteForPatient removes all alerts for a discharged patient
func (e *Engine) DeleteForPatient(ctx context.Context, patientID types.ID) error {
	return e.repo.DeleteAlertsForPatient(ctx, patientID)
}
