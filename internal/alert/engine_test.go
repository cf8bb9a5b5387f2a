package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sepguard/platform/internal/patient"
	"github.com/sepguard/platform/internal/risk"
	"github.com/sepguard/platform/internal/shared/types"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []*Alert
}

func (n *recordingNotifier) Notify(ctx context.Context, a *Alert, audio, email, sms bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func newTestEngine(t *testing.T) (*Engine, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	engine := NewEngine(NewMemoryRepository(), notifier, nil, zap.NewNop(), types.SystemClock{})
	return engine, notifier
}

func TestEngineRaise(t *testing.T) {
	ctx := context.Background()
	engine, notifier := newTestEngine(t)
	patientID := types.NewID()

	a, err := engine.Raise(ctx, patientID, SeverityCritical, KindRiskCritical,
		"sepsis risk score 85 (critical)", SourceVitalsMonitor, 85)
	if err != nil {
		t.Fatalf("Raise failed: %v", err)
	}
	if a == nil {
		t.Fatal("Expected an alert, got nil")
	}
	if a.Severity != SeverityCritical {
		t.Errorf("Expected critical severity, got %s", a.Severity)
	}
	if a.Acknowledged {
		t.Error("New alert should not be acknowledged")
	}
	if notifier.count() != 1 {
		t.Errorf("Expected 1 notification, got %d", notifier.count())
	}
}

func TestEngineSuppressesDuplicates(t *testing.T) {
	ctx := context.Background()
	engine, notifier := newTestEngine(t)
	patientID := types.NewID()

	first, err := engine.Raise(ctx, patientID, SeverityCritical, KindRiskCritical, "first", SourceVitalsMonitor, 85)
	if err != nil || first == nil {
		t.Fatalf("First raise failed: %v, %v", first, err)
	}

	// Same patient and kind while the first is unacknowledged
	second, err := engine.Raise(ctx, patientID, SeverityCritical, KindRiskCritical, "second", SourceVitalsMonitor, 90)
	if err != nil {
		t.Fatalf("Second raise errored: %v", err)
	}
	if second != nil {
		t.Error("Expected duplicate to be suppressed")
	}
	if notifier.count() != 1 {
		t.Errorf("Expected suppressed alert not to notify, got %d notifications", notifier.count())
	}

	// A different kind for the same patient is not a duplicate
	other, err := engine.Raise(ctx, patientID, SeverityWarning, KindSensorOffline, "sensor", SourceVitalsMonitor, 0)
	if err != nil || other == nil {
		t.Errorf("Different kind should not be suppressed: %v, %v", other, err)
	}

	// Acknowledging clears the way for a new alert of that kind
	if _, err := engine.Acknowledge(ctx, first.ID, "Nurse Chen"); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}
	third, err := engine.Raise(ctx, patientID, SeverityCritical, KindRiskCritical, "third", SourceVitalsMonitor, 88)
	if err != nil || third == nil {
		t.Errorf("Raise after acknowledge should succeed: %v, %v", third, err)
	}
}

func TestEngineSuppressionOff(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)
	patientID := types.NewID()

	off := false
	if _, err := engine.UpdateConfig(ctx, UpdateConfigRequest{SuppressDuplicates: &off}); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}

	engine.Raise(ctx, patientID, SeverityCritical, KindRiskCritical, "first", SourceVitalsMonitor, 85)
	second, err := engine.Raise(ctx, patientID, SeverityCritical, KindRiskCritical, "second", SourceVitalsMonitor, 90)
	if err != nil || second == nil {
		t.Errorf("Expected duplicate allowed with suppression off: %v, %v", second, err)
	}
}

func TestEngineAcknowledgeFirstWins(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)
	patientID := types.NewID()

	a, _ := engine.Raise(ctx, patientID, SeverityWarning, KindRiskWarning, "msg", SourceVitalsMonitor, 65)

	const goroutines = 8
	names := []string{"Nurse A", "Nurse B", "Nurse C", "Nurse D", "Nurse E", "Nurse F", "Nurse G", "Nurse H"}

	var wg sync.WaitGroup
	results := make([]*Alert, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := engine.Acknowledge(ctx, a.ID, names[i])
			if err != nil {
				t.Errorf("Acknowledge failed: %v", err)
				return
			}
			results[i] = got
		}(i)
	}
	wg.Wait()

	final, err := engine.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !final.Acknowledged {
		t.Fatal("Alert should be acknowledged")
	}
	if final.AcknowledgedBy == "" || final.AcknowledgedAt == nil {
		t.Error("Acknowledgement stamp missing")
	}

	// Every caller saw the same winner
	for i, got := range results {
		if got == nil {
			continue
		}
		if got.AcknowledgedBy != final.AcknowledgedBy {
			t.Errorf("Caller %d saw acknowledger '%s', want '%s'", i, got.AcknowledgedBy, final.AcknowledgedBy)
		}
	}
}

func TestEngineAcknowledgeRequiresName(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	a, _ := engine.Raise(ctx, types.NewID(), SeverityWarning, KindRiskWarning, "msg", SourceVitalsMonitor, 65)
	if _, err := engine.Acknowledge(ctx, a.ID, ""); err == nil {
		t.Error("Expected validation error for empty acknowledger")
	}
}

func TestEngineRaiseForAssessment(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		tier         patient.RiskTier
		wantAlert    bool
		wantSeverity Severity
		wantKind     string
	}{
		{"critical", patient.TierCritical, true, SeverityCritical, KindRiskCritical},
		{"warning", patient.TierWarning, true, SeverityWarning, KindRiskWarning},
		{"monitor", patient.TierMonitor, false, "", ""},
		{"normal", patient.TierNormal, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newTestEngine(t)
			assessment := risk.Assessment{
				Score: 85,
				Tier:  tt.tier,
				Findings: []risk.Finding{
					{Severity: risk.FindingCritical, Category: risk.FindingVitals, Message: "severe tachycardia: heart rate 130 bpm"},
				},
			}

			a, err := engine.RaiseForAssessment(ctx, types.NewID(), assessment, SourceVitalsMonitor)
			if err != nil {
				t.Fatalf("RaiseForAssessment failed: %v", err)
			}
			if !tt.wantAlert {
				if a != nil {
					t.Errorf("Expected no alert for %s tier, got %v", tt.tier, a)
				}
				return
			}
			if a == nil {
				t.Fatal("Expected an alert")
			}
			if a.Severity != tt.wantSeverity {
				t.Errorf("Expected severity %s, got %s", tt.wantSeverity, a.Severity)
			}
			if a.Kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, a.Kind)
			}
			if a.Score != 85 {
				t.Errorf("Expected score 85, got %d", a.Score)
			}
		})
	}
}

func TestRaiseForAssessmentLabBreachAtLowTier(t *testing.T) {
	ctx := context.Background()
	engine, notifier := newTestEngine(t)

	// Normal tier overall, but a critical lab result must still alert
	assessment := risk.Assessment{
		Score: 25,
		Tier:  patient.TierNormal,
		Findings: []risk.Finding{
			{Severity: risk.FindingCritical, Category: risk.FindingLabs, Message: "critically elevated lactate 4.2 mmol/L"},
		},
	}

	a, err := engine.RaiseForAssessment(ctx, types.NewID(), assessment, SourceVitalsMonitor)
	if err != nil {
		t.Fatalf("RaiseForAssessment failed: %v", err)
	}
	if a == nil {
		t.Fatal("Expected a lab alert despite normal tier")
	}
	if a.Kind != KindLabFinding {
		t.Errorf("Expected kind %s, got %s", KindLabFinding, a.Kind)
	}
	if a.Severity != SeverityWarning {
		t.Errorf("Expected warning severity, got %s", a.Severity)
	}
	if a.Source != SourceLabAnalysis {
		t.Errorf("Expected source %q, got %q", SourceLabAnalysis, a.Source)
	}
	if notifier.count() != 1 {
		t.Errorf("Expected 1 notification, got %d", notifier.count())
	}

	// Warning-severity lab findings alone do not alert below the tiers
	quiet := risk.Assessment{
		Score: 10,
		Tier:  patient.TierNormal,
		Findings: []risk.Finding{
			{Severity: risk.FindingWarning, Category: risk.FindingLabs, Message: "elevated lactate 2.1 mmol/L"},
		},
	}
	a, err = engine.RaiseForAssessment(ctx, types.NewID(), quiet, SourceVitalsMonitor)
	if err != nil {
		t.Fatalf("RaiseForAssessment failed: %v", err)
	}
	if a != nil {
		t.Errorf("Expected no alert for warning-only lab finding, got %v", a)
	}
}

func TestEngineUpdateConfigValidation(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	bad := 30 // would put critical below warning
	if _, err := engine.UpdateConfig(ctx, UpdateConfigRequest{Critical: &bad}); err == nil {
		t.Error("Expected rejection of unordered thresholds")
	}

	// Original config must be untouched after a rejected update
	cfg, err := engine.Config(ctx)
	if err != nil {
		t.Fatalf("Config failed: %v", err)
	}
	if cfg.Thresholds.Critical != 80 {
		t.Errorf("Expected critical threshold 80 after rejected update, got %d", cfg.Thresholds.Critical)
	}

	crit, warn, mon := 90, 70, 50
	updated, err := engine.UpdateConfig(ctx, UpdateConfigRequest{Critical: &crit, Warning: &warn, Monitor: &mon})
	if err != nil {
		t.Fatalf("Valid update failed: %v", err)
	}
	if updated.Thresholds.Critical != 90 || updated.Thresholds.Warning != 70 || updated.Thresholds.Monitor != 50 {
		t.Errorf("Thresholds not applied: %+v", updated.Thresholds)
	}
	if updated.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be stamped")
	}
}

func TestEngineNotifyChannelFlags(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	// Floor-facing channels on, email off out of the box
	cfg, err := engine.Config(ctx)
	if err != nil {
		t.Fatalf("Config failed: %v", err)
	}
	if !cfg.NotifyAudio || cfg.NotifyEmail || !cfg.NotifySMS {
		t.Errorf("Expected audio+sms on and email off by default, got audio=%v email=%v sms=%v",
			cfg.NotifyAudio, cfg.NotifyEmail, cfg.NotifySMS)
	}

	off, on := false, true
	updated, err := engine.UpdateConfig(ctx, UpdateConfigRequest{NotifyAudio: &off, NotifyEmail: &on})
	if err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	if updated.NotifyAudio {
		t.Error("Expected audio alerts disabled")
	}
	if !updated.NotifyEmail {
		t.Error("Expected email notifications enabled")
	}
	if !updated.NotifySMS {
		t.Error("Expected SMS flag untouched")
	}
}

func TestEngineListActive(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)

	p1, p2 := types.NewID(), types.NewID()
	a1, _ := engine.Raise(ctx, p1, SeverityCritical, KindRiskCritical, "one", SourceVitalsMonitor, 85)
	time.Sleep(time.Millisecond)
	engine.Raise(ctx, p2, SeverityWarning, KindRiskWarning, "two", SourceLabAnalysis, 65)

	active, err := engine.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("Expected 2 active alerts, got %d", len(active))
	}
	if active[0].Message != "two" {
		t.Error("Expected newest alert first")
	}

	engine.Acknowledge(ctx, a1.ID, "Nurse Chen")
	active, _ = engine.ListActive(ctx)
	if len(active) != 1 {
		t.Errorf("Expected 1 active alert after acknowledge, got %d", len(active))
	}
}
