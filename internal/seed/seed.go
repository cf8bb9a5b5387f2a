package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/sepguard/platform/internal/alert"
	"github.com/sepguard/platform/internal/patient"
	"github.com/sepguard/platform/internal/shared/types"
)

// demoPatient drives the generated vitals and labs off its tier so the
// dataset looks like a real ward at a glance.
type demoPatient struct {
	name  string
	room  string
	age   int
	score int
	tier  patient.RiskTier
}

var demoPatients = []demoPatient{
	{"Maria Rodriguez", "302A", 67, 85, patient.TierCritical},
	{"James Wilson", "205B", 54, 72, patient.TierWarning},
	{"Eleanor Thompson", "418C", 78, 91, patient.TierCritical},
	{"Robert Chen", "115A", 45, 28, patient.TierNormal},
	{"Patricia Davis", "110A", 62, 45, patient.TierMonitor},
	{"Michael Brown", "307B", 58, 68, patient.TierWarning},
	{"Lisa Johnson", "221C", 41, 35, patient.TierNormal},
	{"David Miller", "156A", 73, 76, patient.TierWarning},
}

func f(v float64) *float64 { return &v }

// Demo fills an empty record store with a plausible ward: eight patients
// with recent vitals, labs and sensors, plus a few open alerts. Intended
// for development and limited mode; it refuses to touch a store that
// already holds patients.
func Demo(ctx context.Context, patients patient.Repository, alerts alert.Repository, clock types.Clock, logger *zap.Logger) error {
	existing, err := patients.ListPatients(ctx)
	if err != nil {
		return fmt.Errorf("failed to check record store: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	now := clock.Now()
	var firstID types.ID

	for _, d := range demoPatients {
		trend := patient.TrendStable
		if d.score > 70 {
			trend = patient.TrendUp
		}

		p := &patient.Patient{
			ID:         types.NewID(),
			Name:       d.name,
			Room:       d.room,
			Age:        d.age,
			AdmittedAt: now.Add(-time.Duration(rand.Intn(7*24)) * time.Hour),
			RiskScore:  d.score,
			RiskTier:   d.tier,
			Trend:      trend,
			CreatedAt:  now,
		}
		if err := patients.CreatePatient(ctx, p); err != nil {
			return fmt.Errorf("failed to seed patient %s: %w", d.name, err)
		}
		if firstID.IsZero() {
			firstID = p.ID
		}

		if err := patients.AppendVitals(ctx, demoVitals(p.ID, d.tier, now)); err != nil {
			return fmt.Errorf("failed to seed vitals for %s: %w", d.name, err)
		}
		if err := patients.AppendLabs(ctx, demoLabs(p.ID, d.tier, now)); err != nil {
			return fmt.Errorf("failed to seed labs for %s: %w", d.name, err)
		}

		for _, kind := range []patient.SensorKind{
			patient.SensorHeartRate, patient.SensorTemperature,
			patient.SensorBloodPressure, patient.SensorOxygen,
		} {
			seen := now.Add(-time.Duration(rand.Intn(60)) * time.Minute)
			state := patient.SensorOnline
			switch roll := rand.Float64(); {
			case roll < 0.05:
				state = patient.SensorError
			case roll < 0.1:
				state = patient.SensorOffline
			}
			s := &patient.SensorStatus{
				ID:         types.NewID(),
				PatientID:  p.ID,
				Kind:       kind,
				Status:     state,
				LastSeenAt: &seen,
			}
			if err := patients.UpsertSensor(ctx, s); err != nil {
				return fmt.Errorf("failed to seed sensor for %s: %w", d.name, err)
			}
		}
	}

	demoAlerts := []struct {
		severity alert.Severity
		kind     string
		message  string
		source   string
	}{
		{alert.SeverityCritical, alert.KindRiskCritical,
			"Lactate level critically elevated at 4.2 mmol/L (normal: <2.0). Immediate physician review required.",
			alert.SourceLabAnalysis},
		{alert.SeverityWarning, alert.KindRiskWarning,
			"Temperature spike detected: 101.8°F. Monitoring increased frequency recommended.",
			alert.SourceVitalsMonitor},
		{alert.SeverityInfo, alert.KindAssessmentOverdue,
			"Scheduled laboratory results are due. Please collect blood samples for analysis.",
			alert.SourceTestingSchedule},
	}

	for _, d := range demoAlerts {
		a := &alert.Alert{
			ID:        types.NewID(),
			PatientID: firstID,
			Severity:  d.severity,
			Kind:      d.kind,
			Message:   d.message,
			Source:    d.source,
			CreatedAt: now.Add(-time.Duration(rand.Intn(60)) * time.Minute),
		}
		if err := alerts.CreateAlert(ctx, a); err != nil {
			return fmt.Errorf("failed to seed alert: %w", err)
		}
	}

	logger.Info("seeded demo ward",
		zap.Int("patients", len(demoPatients)),
		zap.Int("alerts", len(demoAlerts)))

	return nil
}

func demoVitals(patientID types.ID, tier patient.RiskTier, now time.Time) *patient.VitalsSample {
	s := &patient.VitalsSample{
		ID:         types.NewID(),
		PatientID:  patientID,
		Source:     "seed",
		RecordedAt: now.Add(-time.Duration(rand.Intn(30)) * time.Minute),
	}

	switch tier {
	case patient.TierCritical:
		s.HeartRate = f(float64(110 + rand.Intn(20)))
		s.TemperatureF = f(101.0)
		s.SystolicBP = f(float64(90 + rand.Intn(10)))
		s.DiastolicBP = f(float64(55 + rand.Intn(10)))
		s.OxygenSaturation = f(float64(92 + rand.Intn(3)))
		s.RespiratoryRate = f(float64(20 + rand.Intn(5)))
	case patient.TierWarning:
		s.HeartRate = f(float64(85 + rand.Intn(15)))
		s.TemperatureF = f(99.8)
		s.SystolicBP = f(120)
		s.DiastolicBP = f(80)
		s.OxygenSaturation = f(98)
		s.RespiratoryRate = f(16)
	default:
		s.HeartRate = f(float64(70 + rand.Intn(10)))
		s.TemperatureF = f(98.6)
		s.SystolicBP = f(120)
		s.DiastolicBP = f(80)
		s.OxygenSaturation = f(98)
		s.RespiratoryRate = f(16)
	}

	return s
}

func demoLabs(patientID types.ID, tier patient.RiskTier, now time.Time) *patient.LabSample {
	s := &patient.LabSample{
		ID:         types.NewID(),
		PatientID:  patientID,
		Source:     "seed",
		RecordedAt: now.Add(-time.Duration(rand.Intn(120)) * time.Minute),
	}

	if tier == patient.TierCritical {
		s.Lactate = f(4.2)
		s.WhiteCellCount = f(15.2)
		s.CReactiveProtein = f(89)
		s.BloodCulture = patient.CulturePending
	} else {
		s.Lactate = f(2.1)
		s.WhiteCellCount = f(8.5)
		s.CReactiveProtein = f(5)
		s.BloodCulture = patient.CultureNegative
	}

	return s
}
