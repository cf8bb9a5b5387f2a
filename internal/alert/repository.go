package alert

import (
	"context"
	"time"

	"github.com/sepguard/platform/internal/shared/types"
)

// Repository stores alerts and the unit-wide alert configuration.
//
// Acknowledge is first-wins: the first caller stamps the alert and gets
// performed=true; later callers get the already-stamped alert back with
// performed=false and no error.
type Repository interface {
	CreateAlert(ctx context.Context, a *Alert) error
	GetAlert(ctx context.Context, id types.ID) (*Alert, error)
	ListAlerts(ctx context.Context, filter ListFilter) ([]*Alert, error)
	HasActiveAlert(ctx context.Context, patientID types.ID, kind string) (bool, error)
	Acknowledge(ctx context.Context, id types.ID, by string, at time.Time) (a *Alert, performed bool, err error)
	DeleteAlertsForPatient(ctx context.Context, patientID types.ID) error

	GetConfig(ctx context.Context) (*ThresholdConfig, error)
	SaveConfig(ctx context.Context, cfg *ThresholdConfig) error
}
