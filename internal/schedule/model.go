package schedule

import "time"

// Schedule is the unit-wide assessment cadence. A single row per
// deployment.
type Schedule struct {
	IntervalHours int        `json:"interval_hours"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// UpdateScheduleRequest is the payload for changing the cadence
type UpdateScheduleRequest struct {
	IntervalHours int `json:"interval_hours"`
}

// Progress counts work done in the current or most recent round. It is
// readable mid-round, so the dashboard can show a round in flight.
type Progress struct {
	TotalPatients   int `json:"total_patients"`
	VitalsCompleted int `json:"vitals_completed"`
	LabsCompleted   int `json:"labs_completed"`
	RiskCalculated  int `json:"risk_calculated"`
}

// Status combines the cadence with round state for the API
type Status struct {
	Schedule
	Running  bool     `json:"running"`
	Progress Progress `json:"progress"`
}

// RoundSummary reports one assessment round's outcome
type RoundSummary struct {
	Trigger      string        `json:"trigger"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Patients     int           `json:"patients"`
	Assessed     int           `json:"assessed"`
	Failed       int           `json:"failed"`
	AlertsRaised int           `json:"alerts_raised"`
}

// Round triggers
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)
