package risk

import (
	"testing"

	"github.com/sepguard/platform/internal/patient"
)

func f(v float64) *float64 { return &v }

func TestSepsisScorerVitals(t *testing.T) {
	scorer := NewSepsisScorer()

	tests := []struct {
		name     string
		vitals   patient.VitalsSample
		expected int
	}{
		{"all normal", patient.VitalsSample{
			HeartRate: f(72), TemperatureF: f(98.6), OxygenSaturation: f(98),
			SystolicBP: f(120), RespiratoryRate: f(14),
		}, 0},
		{"severe tachycardia", patient.VitalsSample{HeartRate: f(130)}, 30},
		{"marked tachycardia", patient.VitalsSample{HeartRate: f(115)}, 20},
		{"mild tachycardia", patient.VitalsSample{HeartRate: f(105)}, 12},
		{"elevated heart rate", patient.VitalsSample{HeartRate: f(92)}, 6},
		{"high fever", patient.VitalsSample{TemperatureF: f(103)}, 30},
		{"fever", patient.VitalsSample{TemperatureF: f(101)}, 20},
		{"low grade fever", patient.VitalsSample{TemperatureF: f(99.8)}, 10},
		{"hypothermia", patient.VitalsSample{TemperatureF: f(95.5)}, 15},
		{"severe hypoxemia", patient.VitalsSample{OxygenSaturation: f(85)}, 30},
		{"hypoxemia", patient.VitalsSample{OxygenSaturation: f(92)}, 20},
		{"borderline oxygen", patient.VitalsSample{OxygenSaturation: f(94)}, 10},
		{"hypotension", patient.VitalsSample{SystolicBP: f(85)}, 25},
		{"low systolic", patient.VitalsSample{SystolicBP: f(95)}, 15},
		{"severe tachypnea", patient.VitalsSample{RespiratoryRate: f(32)}, 20},
		{"tachypnea", patient.VitalsSample{RespiratoryRate: f(24)}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, _ := scorer.Score(&tt.vitals, nil)
			if score != tt.expected {
				t.Errorf("Expected score %d, got %d", tt.expected, score)
			}
		})
	}
}

func TestSepsisScorerLabs(t *testing.T) {
	scorer := NewSepsisScorer()

	tests := []struct {
		name     string
		labs     patient.LabSample
		expected int
	}{
		{"all normal", patient.LabSample{
			Lactate: f(1.0), WhiteCellCount: f(7), CReactiveProtein: f(5),
			BloodCulture: patient.CultureNegative,
		}, 0},
		{"critical lactate", patient.LabSample{Lactate: f(4.5)}, 25},
		{"elevated lactate", patient.LabSample{Lactate: f(2.5)}, 10},
		{"marked leukocytosis", patient.LabSample{WhiteCellCount: f(16)}, 15},
		{"leukocytosis", patient.LabSample{WhiteCellCount: f(13)}, 8},
		{"leukopenia", patient.LabSample{WhiteCellCount: f(3)}, 8},
		{"marked crp", patient.LabSample{CReactiveProtein: f(150)}, 15},
		{"elevated crp", patient.LabSample{CReactiveProtein: f(60)}, 8},
		{"positive culture", patient.LabSample{BloodCulture: patient.CulturePositive}, 20},
		{"pending culture", patient.LabSample{BloodCulture: patient.CulturePending}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, _ := scorer.Score(nil, &tt.labs)
			if score != tt.expected {
				t.Errorf("Expected score %d, got %d", tt.expected, score)
			}
		})
	}
}

func TestSepsisScorerDeterioratingPatient(t *testing.T) {
	scorer := NewSepsisScorer()

	// Fever, marked tachycardia and borderline oxygen together must
	// reach the critical tier cutoff.
	vitals := &patient.VitalsSample{
		HeartRate:        f(130),
		TemperatureF:     f(103.0),
		OxygenSaturation: f(92),
	}

	score, findings := scorer.Score(vitals, nil)
	if score != 80 {
		t.Errorf("Expected score 80, got %d", score)
	}
	if len(findings) != 3 {
		t.Errorf("Expected 3 findings, got %d", len(findings))
	}

	critical := 0
	for _, finding := range findings {
		if finding.Severity == FindingCritical {
			critical++
		}
	}
	if critical != 2 {
		t.Errorf("Expected 2 critical findings, got %d", critical)
	}
}

func TestSepsisScorerCapAt100(t *testing.T) {
	scorer := NewSepsisScorer()

	vitals := &patient.VitalsSample{
		HeartRate:        f(140),
		TemperatureF:     f(104),
		OxygenSaturation: f(82),
		SystolicBP:       f(78),
		RespiratoryRate:  f(36),
	}
	labs := &patient.LabSample{
		Lactate:        f(6),
		WhiteCellCount: f(22),
		BloodCulture:   patient.CulturePositive,
	}

	score, _ := scorer.Score(vitals, labs)
	if score != 100 {
		t.Errorf("Expected score capped at 100, got %d", score)
	}
}

func TestSepsisScorerNilSamples(t *testing.T) {
	scorer := NewSepsisScorer()

	score, findings := scorer.Score(nil, nil)
	if score != 0 {
		t.Errorf("Expected score 0 with no samples, got %d", score)
	}
	if len(findings) != 0 {
		t.Errorf("Expected no findings, got %d", len(findings))
	}
}

func TestSepsisScorerPartialSample(t *testing.T) {
	scorer := NewSepsisScorer()

	// Only heart rate reported; missing fields contribute nothing
	score, findings := scorer.Score(&patient.VitalsSample{HeartRate: f(112)}, nil)
	if score != 20 {
		t.Errorf("Expected score 20, got %d", score)
	}
	if len(findings) != 1 {
		t.Errorf("Expected 1 finding, got %d", len(findings))
	}
}
