package stats

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sepguard/platform/internal/alert"
	"github.com/sepguard/platform/internal/patient"
	"github.com/sepguard/platform/internal/shared/types"
)

func seedPatient(t *testing.T, repo patient.Repository, name string, score int) *patient.Patient {
	t.Helper()
	p := &patient.Patient{
		ID:         types.NewID(),
		Name:       name,
		Room:       "101",
		Age:        60,
		AdmittedAt: time.Now(),
		RiskScore:  score,
		RiskTier:   patient.TierNormal,
		Trend:      patient.TrendStable,
		CreatedAt:  time.Now(),
	}
	if err := repo.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("CreatePatient failed: %v", err)
	}
	return p
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	patients := patient.NewMemoryRepository()
	engine := alert.NewEngine(alert.NewMemoryRepository(), nil, nil, zap.NewNop(), types.SystemClock{})

	p1 := seedPatient(t, patients, "High", 85)
	p2 := seedPatient(t, patients, "Borderline", 70)
	seedPatient(t, patients, "Low", 30)

	now := time.Now()
	patients.UpsertSensor(ctx, &patient.SensorStatus{
		ID: types.NewID(), PatientID: p1.ID, Kind: patient.SensorHeartRate,
		Status: patient.SensorOnline, LastSeenAt: &now,
	})
	patients.UpsertSensor(ctx, &patient.SensorStatus{
		ID: types.NewID(), PatientID: p1.ID, Kind: patient.SensorOxygen,
		Status: patient.SensorError,
	})
	patients.UpsertSensor(ctx, &patient.SensorStatus{
		ID: types.NewID(), PatientID: p2.ID, Kind: patient.SensorTemperature,
		Status: patient.SensorOnline, LastSeenAt: &now,
	})

	if _, err := engine.Raise(ctx, p1.ID, alert.SeverityCritical, alert.KindRiskCritical, "score 85", alert.SourceVitalsMonitor, 85); err != nil {
		t.Fatalf("Raise failed: %v", err)
	}
	if _, err := engine.Raise(ctx, p2.ID, alert.SeverityWarning, alert.KindRiskWarning, "score 70", alert.SourceVitalsMonitor, 70); err != nil {
		t.Fatalf("Raise failed: %v", err)
	}
	acked, err := engine.Raise(ctx, p1.ID, alert.SeverityWarning, alert.KindSensorOffline, "oxygen sensor offline", alert.SourceVitalsMonitor, 0)
	if err != nil {
		t.Fatalf("Raise failed: %v", err)
	}
	if _, err := engine.Acknowledge(ctx, acked.ID, "Nurse Chen"); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}

	agg := NewAggregator(patients, engine, 70)
	s, err := agg.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if s.TotalPatients != 3 {
		t.Errorf("Expected 3 patients, got %d", s.TotalPatients)
	}
	if s.ActiveAlerts != 2 {
		t.Errorf("Expected 2 active alerts, got %d", s.ActiveAlerts)
	}
	if s.CriticalAlerts != 1 {
		t.Errorf("Expected 1 critical alert, got %d", s.CriticalAlerts)
	}
	// The cutoff is inclusive, so a score of exactly 70 counts
	if s.HighRiskPatients != 2 {
		t.Errorf("Expected 2 high-risk patients, got %d", s.HighRiskPatients)
	}
	if s.SensorsOnline != 2 {
		t.Errorf("Expected 2 sensors online, got %d", s.SensorsOnline)
	}
	if s.TotalSensors != 3 {
		t.Errorf("Expected 3 sensors total, got %d", s.TotalSensors)
	}
}

func TestSnapshotEmptyWard(t *testing.T) {
	patients := patient.NewMemoryRepository()
	engine := alert.NewEngine(alert.NewMemoryRepository(), nil, nil, zap.NewNop(), types.SystemClock{})

	agg := NewAggregator(patients, engine, 70)
	s, err := agg.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if *s != (Summary{}) {
		t.Errorf("Expected zero summary, got %+v", *s)
	}
}
