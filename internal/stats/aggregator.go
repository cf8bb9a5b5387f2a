package stats

import (
	"context"

	"github.com/sepguard/platform/internal/alert"
	"github.com/sepguard/platform/internal/patient"
	"github.com/sepguard/platform/internal/shared/metrics"
)

// Summary is the ward-level snapshot shown on the dashboard header.
type Summary struct {
	TotalPatients    int `json:"total_patients"`
	ActiveAlerts     int `json:"active_alerts"`
	CriticalAlerts   int `json:"critical_alerts"`
	HighRiskPatients int `json:"high_risk_patients"`
	SensorsOnline    int `json:"sensors_online"`
	TotalSensors     int `json:"total_sensors"`
}

// Aggregator computes dashboard statistics on demand. Counts are derived
// from the record store and alert engine rather than maintained
// incrementally, so a snapshot is always consistent with what the list
// endpoints return.
type Aggregator struct {
	patients patient.Repository
	alerts   *alert.Engine
	// highRiskCutoff is the score at or above which a patient counts as
	// high risk. Independent from the alerting thresholds.
	highRiskCutoff int
}

func NewAggregator(patients patient.Repository, alerts *alert.Engine, highRiskCutoff int) *Aggregator {
	return &Aggregator{
		patients:       patients,
		alerts:         alerts,
		highRiskCutoff: highRiskCutoff,
	}
}

func (a *Aggregator) Snapshot(ctx context.Context) (*Summary, error) {
	patients, err := a.patients.ListPatients(ctx)
	if err != nil {
		return nil, err
	}

	active, err := a.alerts.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	sensors, err := a.patients.ListSensors(ctx)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		TotalPatients: len(patients),
		ActiveAlerts:  len(active),
		TotalSensors:  len(sensors),
	}

	for _, p := range patients {
		if p.RiskScore >= a.highRiskCutoff {
			s.HighRiskPatients++
		}
	}
	for _, al := range active {
		if al.Severity == alert.SeverityCritical {
			s.CriticalAlerts++
		}
	}
	// Errored sensors count as not online; they are reachable but
	// cannot be trusted for readings.
	for _, sn := range sensors {
		if sn.Status == patient.SensorOnline {
			s.SensorsOnline++
		}
	}

	metrics.SetActiveAlerts(s.ActiveAlerts)
	metrics.SetHighRiskPatients(s.HighRiskPatients)

	return s, nil
}
