package risk

import (
	"github.com/sepguard/platform/internal/patient"
)

// trendMargin is the hysteresis band around the previous score. Score
// wobble within the band reads as stable so the trend arrow does not
// flap between assessments.
const trendMargin = 3

// Thresholds are the score cutoffs for each risk tier.
// Critical > Warning > Monitor must hold.
type Thresholds struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Monitor  int `json:"monitor"`
}

// DefaultThresholds returns the standard tier cutoffs
func DefaultThresholds() Thresholds {
	return Thresholds{Critical: 80, Warning: 60, Monitor: 40}
}

// Valid reports whether the cutoffs are ordered and in range. Monitor
// may be 0, which puts every patient at least in the monitor tier.
func (t Thresholds) Valid() bool {
	return t.Critical > t.Warning && t.Warning > t.Monitor &&
		t.Monitor >= 0 && t.Critical <= 100
}

// TierFor maps a score to its risk tier under these thresholds
func (t Thresholds) TierFor(score int) patient.RiskTier {
	switch {
	case score >= t.Critical:
		return patient.TierCritical
	case score >= t.Warning:
		return patient.TierWarning
	case score >= t.Monitor:
		return patient.TierMonitor
	default:
		return patient.TierNormal
	}
}

// Assessment is one risk evaluation outcome
type Assessment struct {
	Score    int              `json:"score"`
	Tier     patient.RiskTier `json:"tier"`
	Trend    patient.Trend    `json:"trend"`
	Findings []Finding        `json:"findings,omitempty"`
	// VitalsUsed and LabsUsed report which sample kinds fed the score.
	VitalsUsed bool `json:"vitals_used"`
	LabsUsed   bool `json:"labs_used"`
	// Degraded is set when no samples existed and the previous score
	// was carried forward.
	Degraded bool `json:"degraded,omitempty"`
}

// Evaluator turns latest samples into tier and trend decisions
type Evaluator struct {
	scorer Scorer
}

// NewEvaluator creates an evaluator on top of the given scorer
func NewEvaluator(scorer Scorer) *Evaluator {
	return &Evaluator{scorer: scorer}
}

// Evaluate scores the given samples against the thresholds. When both
// samples are nil the previous score is carried forward unchanged but the
// tier is still recomputed, so threshold changes re-tier patients on the
// next round even without fresh data.
func (e *Evaluator) Evaluate(prevScore int, vitals *patient.VitalsSample, labs *patient.LabSample, th Thresholds) Assessment {
	if vitals == nil && labs == nil {
		return Assessment{
			Score:    prevScore,
			Tier:     th.TierFor(prevScore),
			Trend:    patient.TrendStable,
			Degraded: true,
		}
	}

	score, findings := e.scorer.Score(vitals, labs)

	trend := patient.TrendStable
	switch {
	case score > prevScore+trendMargin:
		trend = patient.TrendUp
	case score < prevScore-trendMargin:
		trend = patient.TrendDown
	}

	return Assessment{
		Score:      score,
		Tier:       th.TierFor(score),
		Trend:      trend,
		Findings:   findings,
		VitalsUsed: vitals != nil,
		LabsUsed:   labs != nil,
	}
}
