package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sepguard/platform/internal/alert"
	"github.com/sepguard/platform/internal/patient"
	"github.com/sepguard/platform/internal/risk"
	"github.com/sepguard/platform/internal/shared/errors"
	"github.com/sepguard/platform/internal/shared/metrics"
	"github.com/sepguard/platform/internal/shared/types"
)

// PatientBroadcaster pushes a patient's updated risk state to connected
// dashboard clients
type PatientBroadcaster interface {
	BroadcastPatient(p *patient.Patient)
}

// Service is the ingest and assessment pipeline. Each accepted sample is
// stored, scored against the latest data, and the patient's risk state is
// updated with any resulting alert raised, all as one unit.
//
// Writes for one patient are serialized through a per-patient lock so
// concurrent device pushes cannot interleave the evaluate-then-update
// step. Different patients proceed in parallel.
type Service struct {
	patients    patient.Repository
	evaluator   *risk.Evaluator
	alerts      *alert.Engine
	broadcaster PatientBroadcaster
	logger      *zap.Logger
	clock       types.Clock

	mu    sync.Mutex
	locks map[types.ID]*sync.Mutex
}

// NewService creates the monitor service. broadcaster may be nil.
func NewService(patients patient.Repository, evaluator *risk.Evaluator, alerts *alert.Engine, broadcaster PatientBroadcaster, logger *zap.Logger, clock types.Clock) *Service {
	return &Service{
		patients:    patients,
		evaluator:   evaluator,
		alerts:      alerts,
		broadcaster: broadcaster,
		logger:      logger,
		clock:       clock,
		locks:       make(map[types.ID]*sync.Mutex),
	}
}

func (s *Service) patientLock(id types.ID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// IngestVitalsRequest is a device or manual vitals push
type IngestVitalsRequest struct {
	HeartRate        *float64   `json:"heart_rate,omitempty"`
	TemperatureF     *float64   `json:"temperature_f,omitempty"`
	SystolicBP       *float64   `json:"systolic_bp,omitempty"`
	DiastolicBP      *float64   `json:"diastolic_bp,omitempty"`
	RespiratoryRate  *float64   `json:"respiratory_rate,omitempty"`
	OxygenSaturation *float64   `json:"oxygen_saturation,omitempty"`
	Source           string     `json:"source,omitempty"`
	RecordedAt       *time.Time `json:"recorded_at,omitempty"`
}

// IngestLabsRequest is a lab system or manual results push
type IngestLabsRequest struct {
	Lactate          *float64             `json:"lactate,omitempty"`
	WhiteCellCount   *float64             `json:"white_cell_count,omitempty"`
	CReactiveProtein *float64             `json:"c_reactive_protein,omitempty"`
	BloodCulture     patient.BloodCulture `json:"blood_culture,omitempty"`
	Source           string               `json:"source,omitempty"`
	RecordedAt       *time.Time           `json:"recorded_at,omitempty"`
}

// Result is the outcome of an ingest or assessment
type Result struct {
	Patient    *patient.Patient `json:"patient"`
	Assessment risk.Assessment  `json:"assessment"`
	Alert      *alert.Alert     `json:"alert,omitempty"`
}

// IngestVitals validates, stores and scores a vitals sample
func (s *Service) IngestVitals(ctx context.Context, patientID types.ID, req IngestVitalsRequest) (*Result, error) {
	source := req.Source
	if source == "" {
		source = "manual"
	}
	recordedAt := s.clock.Now()
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}

	sample := &patient.VitalsSample{
		ID:               types.NewID(),
		PatientID:        patientID,
		HeartRate:        req.HeartRate,
		TemperatureF:     req.TemperatureF,
		SystolicBP:       req.SystolicBP,
		DiastolicBP:      req.DiastolicBP,
		RespiratoryRate:  req.RespiratoryRate,
		OxygenSaturation: req.OxygenSaturation,
		Source:           source,
		RecordedAt:       recordedAt,
	}

	if problems := sample.Validate(); problems != nil {
		return nil, errors.Validation("invalid vitals sample", problems)
	}

	lock := s.patientLock(patientID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if err := s.patients.AppendVitals(ctx, sample); err != nil {
		return nil, err
	}
	metrics.RecordVitalsIngested(source)

	s.markSensorsSeen(ctx, sample)

	result, err := s.assessLocked(ctx, p, alert.SourceVitalsMonitor)
	if err != nil {
		return nil, err
	}

	s.logger.Info("vitals ingested",
		zap.String("patient_id", patientID.String()),
		zap.String("source", source),
		zap.Int("score", result.Assessment.Score),
		zap.String("tier", string(result.Assessment.Tier)),
	)
	return result, nil
}

// IngestLabs validates, stores and scores a lab result set
func (s *Service) IngestLabs(ctx context.Context, patientID types.ID, req IngestLabsRequest) (*Result, error) {
	source := req.Source
	if source == "" {
		source = "manual"
	}
	recordedAt := s.clock.Now()
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}

	sample := &patient.LabSample{
		ID:               types.NewID(),
		PatientID:        patientID,
		Lactate:          req.Lactate,
		WhiteCellCount:   req.WhiteCellCount,
		CReactiveProtein: req.CReactiveProtein,
		BloodCulture:     req.BloodCulture,
		Source:           source,
		RecordedAt:       recordedAt,
	}

	if problems := sample.Validate(); problems != nil {
		return nil, errors.Validation("invalid lab sample", problems)
	}

	lock := s.patientLock(patientID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if err := s.patients.AppendLabs(ctx, sample); err != nil {
		return nil, err
	}
	metrics.RecordLabsIngested(source)

	result, err := s.assessLocked(ctx, p, alert.SourceLabAnalysis)
	if err != nil {
		return nil, err
	}

	s.logger.Info("labs ingested",
		zap.String("patient_id", patientID.String()),
		zap.String("source", source),
		zap.Int("score", result.Assessment.Score),
		zap.String("tier", string(result.Assessment.Tier)),
	)
	return result, nil
}

// Assess re-scores a patient from their latest stored samples, without new
// data. The scheduler uses this for rounds; it also backs the manual
// re-assessment endpoint.
func (s *Service) Assess(ctx context.Context, patientID types.ID, source string) (*Result, error) {
	lock := s.patientLock(patientID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.patients.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	return s.assessLocked(ctx, p, source)
}

// assessLocked evaluates the patient's latest samples and persists the new
// risk state. Callers must hold the patient lock.
func (s *Service) assessLocked(ctx context.Context, p *patient.Patient, source string) (*Result, error) {
	vitals, err := s.patients.LatestVitals(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	labs, err := s.patients.LatestLabs(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	thresholds, err := s.alerts.Thresholds(ctx)
	if err != nil {
		return nil, err
	}

	assessment := s.evaluator.Evaluate(p.RiskScore, vitals, labs, thresholds)

	now := s.clock.Now()
	p.RiskScore = assessment.Score
	p.RiskTier = assessment.Tier
	p.Trend = assessment.Trend
	p.LastAssessedAt = &now

	if err := s.patients.UpdatePatient(ctx, p); err != nil {
		return nil, err
	}

	raised, err := s.alerts.RaiseForAssessment(ctx, p.ID, assessment, source)
	if err != nil {
		// The risk state is already saved; a failed alert write must not
		// roll it back. Surface in logs and move on.
		s.logger.Error("alert raise failed after assessment",
			zap.String("patient_id", p.ID.String()), zap.Error(err))
	}

	if s.broadcaster != nil {
		s.broadcaster.BroadcastPatient(p)
	}

	return &Result{Patient: p, Assessment: assessment, Alert: raised}, nil
}

// markSensorsSeen flags the sensors behind a sample's measurements online
func (s *Service) markSensorsSeen(ctx context.Context, sample *patient.VitalsSample) {
	now := s.clock.Now()

	var kinds []patient.SensorKind
	if sample.HeartRate != nil {
		kinds = append(kinds, patient.SensorHeartRate)
	}
	if sample.TemperatureF != nil {
		kinds = append(kinds, patient.SensorTemperature)
	}
	if sample.SystolicBP != nil || sample.DiastolicBP != nil {
		kinds = append(kinds, patient.SensorBloodPressure)
	}
	if sample.OxygenSaturation != nil {
		kinds = append(kinds, patient.SensorOxygen)
	}

	for _, kind := range kinds {
		err := s.patients.UpsertSensor(ctx, &patient.SensorStatus{
			ID:         types.NewID(),
			PatientID:  sample.PatientID,
			Kind:       kind,
			Status:     patient.SensorOnline,
			LastSeenAt: &now,
		})
		if err != nil {
			s.logger.Warn("sensor status update failed",
				zap.String("patient_id", sample.PatientID.String()),
				zap.String("kind", string(kind)), zap.Error(err))
		}
	}
}

// Discharge removes a patient together with their alerts and the
// per-patient lock entry. All deletion paths go through here so the lock
// map does not grow without bound.
func (s *Service) Discharge(ctx context.Context, id types.ID) error {
	if err := s.patients.DeletePatient(ctx, id); err != nil {
		return err
	}
	if err := s.alerts.DeleteForPatient(ctx, id); err != nil {
		s.logger.Error("failed to clear alerts for discharged patient",
			zap.String("patient_id", id.String()), zap.Error(err))
	}
	s.releaseLock(id)
	return nil
}

func (s *Service) releaseLock(id types.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, id)
}
