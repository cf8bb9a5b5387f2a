package patient

import (
	"time"

	"github.com/sepguard/platform/internal/shared/types"
)

// RiskTier classifies a patient's current sepsis risk score
type RiskTier string

const (
	TierCritical RiskTier = "critical"
	TierWarning  RiskTier = "warning"
	TierMonitor  RiskTier = "monitor"
	TierNormal   RiskTier = "normal"
)

// Trend describes how the risk score is moving between assessments
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// SensorKind identifies a bedside sensor type
type SensorKind string

const (
	SensorHeartRate     SensorKind = "heart_rate"
	SensorTemperature   SensorKind = "temperature"
	SensorBloodPressure SensorKind = "blood_pressure"
	SensorOxygen        SensorKind = "oxygen"
)

// SensorState is a bedside sensor's connectivity state. Error means the
// sensor is reachable but reporting a fault, as opposed to plain offline.
type SensorState string

const (
	SensorOnline  SensorState = "online"
	SensorOffline SensorState = "offline"
	SensorError   SensorState = "error"
)

// BloodCulture is the state of a blood culture order
type BloodCulture string

const (
	CulturePositive BloodCulture = "positive"
	CultureNegative BloodCulture = "negative"
	CulturePending  BloodCulture = "pending"
)

// Patient is an admitted patient under sepsis monitoring
type Patient struct {
	ID             types.ID   `json:"id"`
	Name           string     `json:"name"`
	Room           string     `json:"room"`
	Age            int        `json:"age"`
	AdmittedAt     time.Time  `json:"admitted_at"`
	RiskScore      int        `json:"risk_score"`
	RiskTier       RiskTier   `json:"risk_tier"`
	Trend          Trend      `json:"trend"`
	LastAssessedAt *time.Time `json:"last_assessed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// VitalsSample is one timestamped set of vital sign readings. Fields are
// pointers because devices report partial sets; nil means not measured.
type VitalsSample struct {
	ID               types.ID  `json:"id"`
	PatientID        types.ID  `json:"patient_id"`
	HeartRate        *float64  `json:"heart_rate,omitempty"`
	TemperatureF     *float64  `json:"temperature_f,omitempty"`
	SystolicBP       *float64  `json:"systolic_bp,omitempty"`
	DiastolicBP      *float64  `json:"diastolic_bp,omitempty"`
	RespiratoryRate  *float64  `json:"respiratory_rate,omitempty"`
	OxygenSaturation *float64  `json:"oxygen_saturation,omitempty"`
	Source           string    `json:"source"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// IsEmpty reports whether the sample carries no measurements at all
func (v *VitalsSample) IsEmpty() bool {
	return v.HeartRate == nil && v.TemperatureF == nil && v.SystolicBP == nil &&
		v.DiastolicBP == nil && v.RespiratoryRate == nil && v.OxygenSaturation == nil
}

// Validate checks measurement plausibility bounds. Out-of-range values are
// rejected rather than clamped so a miscalibrated device surfaces loudly.
func (v *VitalsSample) Validate() map[string]string {
	problems := make(map[string]string)

	if v.IsEmpty() {
		problems["sample"] = "at least one measurement is required"
	}
	if v.HeartRate != nil && (*v.HeartRate < 0 || *v.HeartRate > 300) {
		problems["heart_rate"] = "must be between 0 and 300"
	}
	if v.TemperatureF != nil && (*v.TemperatureF < 85 || *v.TemperatureF > 115) {
		problems["temperature_f"] = "must be between 85 and 115"
	}
	if v.SystolicBP != nil && (*v.SystolicBP < 40 || *v.SystolicBP > 300) {
		problems["systolic_bp"] = "must be between 40 and 300"
	}
	if v.DiastolicBP != nil && (*v.DiastolicBP < 20 || *v.DiastolicBP > 200) {
		problems["diastolic_bp"] = "must be between 20 and 200"
	}
	if v.RespiratoryRate != nil && (*v.RespiratoryRate < 0 || *v.RespiratoryRate > 80) {
		problems["respiratory_rate"] = "must be between 0 and 80"
	}
	if v.OxygenSaturation != nil && (*v.OxygenSaturation < 0 || *v.OxygenSaturation > 100) {
		problems["oxygen_saturation"] = "must be between 0 and 100"
	}

	if len(problems) == 0 {
		return nil
	}
	return problems
}

// LabSample is one timestamped set of lab results
type LabSample struct {
	ID               types.ID     `json:"id"`
	PatientID        types.ID     `json:"patient_id"`
	Lactate          *float64     `json:"lactate,omitempty"`
	WhiteCellCount   *float64     `json:"white_cell_count,omitempty"`
	CReactiveProtein *float64     `json:"c_reactive_protein,omitempty"`
	BloodCulture     BloodCulture `json:"blood_culture,omitempty"`
	Source           string       `json:"source"`
	RecordedAt       time.Time    `json:"recorded_at"`
}

// IsEmpty reports whether the sample carries no results at all
func (l *LabSample) IsEmpty() bool {
	return l.Lactate == nil && l.WhiteCellCount == nil &&
		l.CReactiveProtein == nil && l.BloodCulture == ""
}

// Validate checks result plausibility bounds
func (l *LabSample) Validate() map[string]string {
	problems := make(map[string]string)

	if l.IsEmpty() {
		problems["sample"] = "at least one result is required"
	}
	if l.Lactate != nil && (*l.Lactate < 0 || *l.Lactate > 30) {
		problems["lactate"] = "must be between 0 and 30"
	}
	if l.WhiteCellCount != nil && (*l.WhiteCellCount < 0 || *l.WhiteCellCount > 100) {
		problems["white_cell_count"] = "must be between 0 and 100"
	}
	if l.CReactiveProtein != nil && (*l.CReactiveProtein < 0 || *l.CReactiveProtein > 500) {
		problems["c_reactive_protein"] = "must be between 0 and 500"
	}
	switch l.BloodCulture {
	case "", CulturePositive, CultureNegative, CulturePending:
	default:
		problems["blood_culture"] = "must be positive, negative or pending"
	}

	if len(problems) == 0 {
		return nil
	}
	return problems
}

// SensorStatus tracks one bedside sensor's connectivity
type SensorStatus struct {
	ID         types.ID    `json:"id"`
	PatientID  types.ID    `json:"patient_id"`
	Kind       SensorKind  `json:"kind"`
	Status     SensorState `json:"status"`
	LastSeenAt *time.Time  `json:"last_seen_at,omitempty"`
}

// ValidSensorKind reports whether k names a known sensor type
func ValidSensorKind(k SensorKind) bool {
	switch k {
	case SensorHeartRate, SensorTemperature, SensorBloodPressure, SensorOxygen:
		return true
	}
	return false
}

// ValidSensorState reports whether s names a known connectivity state
func ValidSensorState(s SensorState) bool {
	switch s {
	case SensorOnline, SensorOffline, SensorError:
		return true
	}
	return false
}

// CreatePatientRequest is the payload for admitting a patient
type CreatePatientRequest struct {
	Name       string     `json:"name"`
	Room       string     `json:"room"`
	Age        int        `json:"age"`
	AdmittedAt *time.Time `json:"admitted_at,omitempty"`
}

// UpdatePatientRequest is the payload for updating patient details
type UpdatePatientRequest struct {
	Name *string `json:"name,omitempty"`
	Room *string `json:"room,omitempty"`
	Age  *int    `json:"age,omitempty"`
}
