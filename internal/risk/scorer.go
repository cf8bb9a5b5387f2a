package risk

import (
	"fmt"

	"github.com/sepguard/platform/internal/patient"
)

// FindingSeverity grades a single contributing observation
type FindingSeverity string

const (
	FindingCritical FindingSeverity = "critical"
	FindingWarning  FindingSeverity = "warning"
	FindingInfo     FindingSeverity = "info"
)

// FindingCategory tells which sample kind an observation came from
type FindingCategory string

const (
	FindingVitals FindingCategory = "vitals"
	FindingLabs   FindingCategory = "labs"
)

// Finding is one observation that contributed to a risk score
type Finding struct {
	Severity FindingSeverity `json:"severity"`
	Category FindingCategory `json:"category"`
	Message  string          `json:"message"`
}

// Scorer computes a 0-100 sepsis risk score from the most recent samples.
// Either sample may be nil when no data of that kind exists yet.
type Scorer interface {
	Score(vitals *patient.VitalsSample, labs *patient.LabSample) (int, []Finding)
}

// SepsisScorer is the default rule-based scorer. Each deranged measurement
// contributes points; the sum is capped at 100.
type SepsisScorer struct{}

// NewSepsisScorer creates the default scorer
func NewSepsisScorer() *SepsisScorer {
	return &SepsisScorer{}
}

// Score computes the risk score and the findings behind it
func (s *SepsisScorer) Score(vitals *patient.VitalsSample, labs *patient.LabSample) (int, []Finding) {
	score := 0
	var findings []Finding

	record := func(cat FindingCategory) func(points int, severity FindingSeverity, format string, args ...any) {
		return func(points int, severity FindingSeverity, format string, args ...any) {
			score += points
			findings = append(findings, Finding{
				Severity: severity,
				Category: cat,
				Message:  fmt.Sprintf(format, args...),
			})
		}
	}
	addVital := record(FindingVitals)
	addLab := record(FindingLabs)

	if vitals != nil {
		if hr := vitals.HeartRate; hr != nil {
			switch {
			case *hr >= 125:
				addVital(30, FindingCritical, "severe tachycardia: heart rate %.0f bpm", *hr)
			case *hr >= 110:
				addVital(20, FindingWarning, "marked tachycardia: heart rate %.0f bpm", *hr)
			case *hr >= 100:
				addVital(12, FindingWarning, "tachycardia: heart rate %.0f bpm", *hr)
			case *hr >= 90:
				addVital(6, FindingInfo, "elevated heart rate %.0f bpm", *hr)
			}
		}

		if temp := vitals.TemperatureF; temp != nil {
			switch {
			case *temp >= 102.2:
				addVital(30, FindingCritical, "high fever: temperature %.1f F", *temp)
			case *temp >= 100.4:
				addVital(20, FindingWarning, "fever: temperature %.1f F", *temp)
			case *temp >= 99.5:
				addVital(10, FindingInfo, "low-grade fever: temperature %.1f F", *temp)
			case *temp < 96.8:
				addVital(15, FindingWarning, "hypothermia: temperature %.1f F", *temp)
			}
		}

		if spo2 := vitals.OxygenSaturation; spo2 != nil {
			switch {
			case *spo2 < 88:
				addVital(30, FindingCritical, "severe hypoxemia: oxygen saturation %.0f%%", *spo2)
			case *spo2 <= 92:
				addVital(20, FindingWarning, "hypoxemia: oxygen saturation %.0f%%", *spo2)
			case *spo2 <= 95:
				addVital(10, FindingInfo, "borderline oxygen saturation %.0f%%", *spo2)
			}
		}

		if sbp := vitals.SystolicBP; sbp != nil {
			switch {
			case *sbp < 90:
				addVital(25, FindingCritical, "hypotension: systolic BP %.0f mmHg", *sbp)
			case *sbp < 100:
				addVital(15, FindingWarning, "low systolic BP %.0f mmHg", *sbp)
			}
		}

		if rr := vitals.RespiratoryRate; rr != nil {
			switch {
			case *rr >= 30:
				addVital(20, FindingCritical, "severe tachypnea: respiratory rate %.0f", *rr)
			case *rr >= 22:
				addVital(10, FindingWarning, "tachypnea: respiratory rate %.0f", *rr)
			}
		}
	}

	if labs != nil {
		if lac := labs.Lactate; lac != nil {
			switch {
			case *lac >= 4:
				addLab(25, FindingCritical, "critically elevated lactate %.1f mmol/L", *lac)
			case *lac >= 2:
				addLab(10, FindingWarning, "elevated lactate %.1f mmol/L", *lac)
			}
		}

		if wbc := labs.WhiteCellCount; wbc != nil {
			switch {
			case *wbc >= 15:
				addLab(15, FindingWarning, "marked leukocytosis: WBC %.1f", *wbc)
			case *wbc >= 12:
				addLab(8, FindingInfo, "leukocytosis: WBC %.1f", *wbc)
			case *wbc < 4:
				addLab(8, FindingWarning, "leukopenia: WBC %.1f", *wbc)
			}
		}

		if crp := labs.CReactiveProtein; crp != nil {
			switch {
			case *crp >= 100:
				addLab(15, FindingWarning, "markedly elevated CRP %.0f mg/L", *crp)
			case *crp >= 50:
				addLab(8, FindingInfo, "elevated CRP %.0f mg/L", *crp)
			}
		}

		switch labs.BloodCulture {
		case patient.CulturePositive:
			addLab(20, FindingCritical, "positive blood culture")
		case patient.CulturePending:
			addLab(5, FindingInfo, "blood culture pending")
		}
	}

	if score > 100 {
		score = 100
	}
	return score, findings
}
