package alert

import (
	"time"

	"github.com/sepguard/platform/internal/risk"
	"github.com/sepguard/platform/internal/shared/types"
)

// Severity grades an alert
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Alert kinds. One unacknowledged alert per patient and kind is the
// dedup unit when suppression is on.
const (
	KindRiskCritical      = "risk_critical"
	KindRiskWarning       = "risk_warning"
	KindAssessmentOverdue = "assessment_overdue"
	KindLabFinding        = "lab_finding"
	KindSensorOffline     = "sensor_offline"
)

// Alert sources, shown to clinicians alongside the message
const (
	SourceLabAnalysis     = "Automated Lab Analysis"
	SourceVitalsMonitor   = "Vital Signs Monitor"
	SourceTestingSchedule = "Testing Schedule"
)

// Alert is a raised clinical notification awaiting acknowledgement
type Alert struct {
	ID             types.ID   `json:"id"`
	PatientID      types.ID   `json:"patient_id"`
	Severity       Severity   `json:"severity"`
	Kind           string     `json:"kind"`
	Message        string     `json:"message"`
	Source         string     `json:"source"`
	Score          int        `json:"score"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ThresholdConfig is the unit-wide alerting configuration. A single row
// per deployment; updated at runtime by charge staff.
type ThresholdConfig struct {
	Thresholds         risk.Thresholds `json:"thresholds"`
	NotifyAudio        bool            `json:"notify_audio"`
	NotifyEmail        bool            `json:"notify_email"`
	NotifySMS          bool            `json:"notify_sms"`
	SuppressDuplicates bool            `json:"suppress_duplicates"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// DefaultConfig returns the starting alert configuration. Audio and SMS
// reach staff on the floor immediately; email is opt-in because inboxes
// are not watched during a shift.
func DefaultConfig() *ThresholdConfig {
	return &ThresholdConfig{
		Thresholds:         risk.DefaultThresholds(),
		NotifyAudio:        true,
		NotifyEmail:        false,
		NotifySMS:          true,
		SuppressDuplicates: true,
	}
}

// UpdateConfigRequest is the payload for changing alert configuration
type UpdateConfigRequest struct {
	Critical           *int  `json:"critical,omitempty"`
	Warning            *int  `json:"warning,omitempty"`
	Monitor            *int  `json:"monitor,omitempty"`
	NotifyAudio        *bool `json:"notify_audio,omitempty"`
	NotifyEmail        *bool `json:"notify_email,omitempty"`
	NotifySMS          *bool `json:"notify_sms,omitempty"`
	SuppressDuplicates *bool `json:"suppress_duplicates,omitempty"`
}

// AcknowledgeRequest is the payload for acknowledging an alert
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
}

// ListFilter narrows alert listings
type ListFilter struct {
	PatientID  *types.ID
	Severity   *Severity
	ActiveOnly bool
	Limit      int
}
