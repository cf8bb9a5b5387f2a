package patient

import (
	"context"
	"testing"
	"time"

	"github.com/sepguard/platform/internal/shared/errors"
	"github.com/sepguard/platform/internal/shared/types"
)

func f(v float64) *float64 { return &v }

func newTestPatient(name, room string) *Patient {
	return &Patient{
		ID:         types.NewID(),
		Name:       name,
		Room:       room,
		Age:        60,
		AdmittedAt: time.Now(),
		RiskTier:   TierNormal,
		Trend:      TrendStable,
		CreatedAt:  time.Now(),
	}
}

// --- Validation Tests ---

func TestVitalsSampleValidate(t *testing.T) {
	tests := []struct {
		name    string
		sample  VitalsSample
		wantKey string
	}{
		{"valid", VitalsSample{HeartRate: f(80)}, ""},
		{"empty", VitalsSample{}, "sample"},
		{"heart rate too high", VitalsSample{HeartRate: f(320)}, "heart_rate"},
		{"heart rate negative", VitalsSample{HeartRate: f(-1)}, "heart_rate"},
		{"temperature too low", VitalsSample{TemperatureF: f(80)}, "temperature_f"},
		{"systolic too low", VitalsSample{SystolicBP: f(30)}, "systolic_bp"},
		{"diastolic too high", VitalsSample{DiastolicBP: f(250)}, "diastolic_bp"},
		{"respiratory rate too high", VitalsSample{RespiratoryRate: f(90)}, "respiratory_rate"},
		{"oxygen over 100", VitalsSample{OxygenSaturation: f(101)}, "oxygen_saturation"},
		{"boundary heart rate", VitalsSample{HeartRate: f(300)}, ""},
		{"boundary oxygen", VitalsSample{OxygenSaturation: f(0)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := tt.sample.Validate()
			if tt.wantKey == "" {
				if problems != nil {
					t.Errorf("Expected no problems, got %v", problems)
				}
				return
			}
			if _, ok := problems[tt.wantKey]; !ok {
				t.Errorf("Expected problem for '%s', got %v", tt.wantKey, problems)
			}
		})
	}
}

func TestLabSampleValidate(t *testing.T) {
	tests := []struct {
		name    string
		sample  LabSample
		wantKey string
	}{
		{"valid", LabSample{Lactate: f(2.5)}, ""},
		{"empty", LabSample{}, "sample"},
		{"lactate too high", LabSample{Lactate: f(35)}, "lactate"},
		{"wbc negative", LabSample{WhiteCellCount: f(-2)}, "white_cell_count"},
		{"crp too high", LabSample{CReactiveProtein: f(600)}, "c_reactive_protein"},
		{"culture only", LabSample{BloodCulture: CulturePending}, ""},
		{"bad culture", LabSample{BloodCulture: "maybe"}, "blood_culture"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := tt.sample.Validate()
			if tt.wantKey == "" {
				if problems != nil {
					t.Errorf("Expected no problems, got %v", problems)
				}
				return
			}
			if _, ok := problems[tt.wantKey]; !ok {
				t.Errorf("Expected problem for '%s', got %v", tt.wantKey, problems)
			}
		})
	}
}

func TestValidSensorKind(t *testing.T) {
	for _, k := range []SensorKind{SensorHeartRate, SensorTemperature, SensorBloodPressure, SensorOxygen} {
		if !ValidSensorKind(k) {
			t.Errorf("Expected %s to be valid", k)
		}
	}
	if ValidSensorKind("barometer") {
		t.Error("Expected barometer to be invalid")
	}
}

// --- Memory Repository Tests ---

func TestMemoryRepositoryPatientLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	p := newTestPatient("Maria Rodriguez", "302A")
	if err := repo.CreatePatient(ctx, p); err != nil {
		t.Fatalf("CreatePatient failed: %v", err)
	}

	if err := repo.CreatePatient(ctx, p); !errors.IsConflict(err) {
		t.Errorf("Expected conflict on duplicate create, got %v", err)
	}

	got, err := repo.GetPatient(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPatient failed: %v", err)
	}
	if got.Name != "Maria Rodriguez" {
		t.Errorf("Expected name 'Maria Rodriguez', got '%s'", got.Name)
	}

	// Mutating the returned copy must not affect the store
	got.Name = "changed"
	again, _ := repo.GetPatient(ctx, p.ID)
	if again.Name != "Maria Rodriguez" {
		t.Error("Repository returned aliased patient")
	}

	got.Name = "Maria R."
	if err := repo.UpdatePatient(ctx, got); err != nil {
		t.Fatalf("UpdatePatient failed: %v", err)
	}
	updated, _ := repo.GetPatient(ctx, p.ID)
	if updated.Name != "Maria R." {
		t.Errorf("Expected updated name, got '%s'", updated.Name)
	}

	if err := repo.DeletePatient(ctx, p.ID); err != nil {
		t.Fatalf("DeletePatient failed: %v", err)
	}
	if _, err := repo.GetPatient(ctx, p.ID); !errors.IsNotFound(err) {
		t.Errorf("Expected not found after delete, got %v", err)
	}
	if err := repo.DeletePatient(ctx, p.ID); !errors.IsNotFound(err) {
		t.Errorf("Expected not found on double delete, got %v", err)
	}
}

func TestMemoryRepositoryListPatientsSorted(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	repo.CreatePatient(ctx, newTestPatient("B Patient", "305"))
	repo.CreatePatient(ctx, newTestPatient("A Patient", "301"))
	repo.CreatePatient(ctx, newTestPatient("C Patient", "303"))

	patients, err := repo.ListPatients(ctx)
	if err != nil {
		t.Fatalf("ListPatients failed: %v", err)
	}
	if len(patients) != 3 {
		t.Fatalf("Expected 3 patients, got %d", len(patients))
	}
	if patients[0].Room != "301" || patients[2].Room != "305" {
		t.Errorf("Expected patients sorted by room, got %s, %s, %s",
			patients[0].Room, patients[1].Room, patients[2].Room)
	}
}

func TestMemoryRepositoryVitalsHistory(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := newTestPatient("Test", "101")
	repo.CreatePatient(ctx, p)

	base := time.Now()
	for i := 0; i < 5; i++ {
		err := repo.AppendVitals(ctx, &VitalsSample{
			ID:         types.NewID(),
			PatientID:  p.ID,
			HeartRate:  f(float64(80 + i)),
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendVitals failed: %v", err)
		}
	}

	latest, err := repo.LatestVitals(ctx, p.ID)
	if err != nil {
		t.Fatalf("LatestVitals failed: %v", err)
	}
	if latest == nil || *latest.HeartRate != 84 {
		t.Errorf("Expected latest heart rate 84, got %v", latest)
	}

	samples, err := repo.ListVitals(ctx, p.ID, 3)
	if err != nil {
		t.Fatalf("ListVitals failed: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("Expected 3 samples with limit, got %d", len(samples))
	}
	if !samples[0].RecordedAt.After(samples[1].RecordedAt) {
		t.Error("Expected samples ordered newest first")
	}
}

func TestMemoryRepositoryLatestVitalsOutOfOrderAppend(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := newTestPatient("Test", "101")
	repo.CreatePatient(ctx, p)

	now := time.Now()
	repo.AppendVitals(ctx, &VitalsSample{
		ID: types.NewID(), PatientID: p.ID, HeartRate: f(95), RecordedAt: now,
	})
	// Backfilled older sample arrives after the newer one
	repo.AppendVitals(ctx, &VitalsSample{
		ID: types.NewID(), PatientID: p.ID, HeartRate: f(70), RecordedAt: now.Add(-time.Hour),
	})

	latest, _ := repo.LatestVitals(ctx, p.ID)
	if latest == nil || *latest.HeartRate != 95 {
		t.Errorf("Expected latest by recorded time to be 95, got %v", latest)
	}
}

func TestMemoryRepositoryLatestWhenEmpty(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := newTestPatient("Test", "101")
	repo.CreatePatient(ctx, p)

	v, err := repo.LatestVitals(ctx, p.ID)
	if err != nil || v != nil {
		t.Errorf("Expected nil, nil for no vitals, got %v, %v", v, err)
	}
	l, err := repo.LatestLabs(ctx, p.ID)
	if err != nil || l != nil {
		t.Errorf("Expected nil, nil for no labs, got %v, %v", l, err)
	}
}

func TestMemoryRepositoryAppendVitalsUnknownPatient(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	err := repo.AppendVitals(ctx, &VitalsSample{
		ID:         types.NewID(),
		PatientID:  types.NewID(),
		HeartRate:  f(80),
		RecordedAt: time.Now(),
	})
	if !errors.IsNotFound(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestMemoryRepositorySensorUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := newTestPatient("Test", "101")
	repo.CreatePatient(ctx, p)

	seen := time.Now()
	err := repo.UpsertSensor(ctx, &SensorStatus{
		ID: types.NewID(), PatientID: p.ID, Kind: SensorHeartRate, Status: SensorOnline, LastSeenAt: &seen,
	})
	if err != nil {
		t.Fatalf("UpsertSensor failed: %v", err)
	}

	// Second upsert for the same kind updates in place
	err = repo.UpsertSensor(ctx, &SensorStatus{
		ID: types.NewID(), PatientID: p.ID, Kind: SensorHeartRate, Status: SensorError,
	})
	if err != nil {
		t.Fatalf("UpsertSensor update failed: %v", err)
	}

	sensors, _ := repo.ListPatientSensors(ctx, p.ID)
	if len(sensors) != 1 {
		t.Fatalf("Expected 1 sensor after upsert, got %d", len(sensors))
	}
	if sensors[0].Status != SensorError {
		t.Errorf("Expected sensor in error state after update, got %s", sensors[0].Status)
	}

	repo.UpsertSensor(ctx, &SensorStatus{
		ID: types.NewID(), PatientID: p.ID, Kind: SensorOxygen, Status: SensorOnline,
	})
	all, _ := repo.ListSensors(ctx)
	if len(all) != 2 {
		t.Errorf("Expected 2 sensors total, got %d", len(all))
	}
}

func TestMemoryRepositoryDeleteCascades(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p := newTestPatient("Test", "101")
	repo.CreatePatient(ctx, p)
	repo.AppendVitals(ctx, &VitalsSample{ID: types.NewID(), PatientID: p.ID, HeartRate: f(80), RecordedAt: time.Now()})
	repo.UpsertSensor(ctx, &SensorStatus{ID: types.NewID(), PatientID: p.ID, Kind: SensorOxygen, Status: SensorOnline})

	if err := repo.DeletePatient(ctx, p.ID); err != nil {
		t.Fatalf("DeletePatient failed: %v", err)
	}

	sensors, _ := repo.ListSensors(ctx)
	if len(sensors) != 0 {
		t.Errorf("Expected sensors removed with patient, got %d", len(sensors))
	}
	samples, _ := repo.ListVitals(ctx, p.ID, 0)
	if len(samples) != 0 {
		t.Errorf("Expected vitals removed with patient, got %d", len(samples))
	}
}
