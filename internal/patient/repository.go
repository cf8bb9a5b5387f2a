package patient

import (
	"context"

	"github.com/sepguard/platform/internal/shared/types"
)

// Repository is the record store for patients, their sample history and
// bedside sensors. Latest* return (nil, nil) when no sample exists yet;
// a patient with no history is a normal state, not an error.
type Repository interface {
	CreatePatient(ctx context.Context, p *Patient) error
	GetPatient(ctx context.Context, id types.ID) (*Patient, error)
	ListPatients(ctx context.Context) ([]*Patient, error)
	UpdatePatient(ctx context.Context, p *Patient) error
	DeletePatient(ctx context.Context, id types.ID) error

	AppendVitals(ctx context.Context, s *VitalsSample) error
	AppendLabs(ctx context.Context, s *LabSample) error
	LatestVitals(ctx context.Context, patientID types.ID) (*VitalsSample, error)
	LatestLabs(ctx context.Context, patientID types.ID) (*LabSample, error)
	ListVitals(ctx context.Context, patientID types.ID, limit int) ([]*VitalsSample, error)
	ListLabs(ctx context.Context, patientID types.ID, limit int) ([]*LabSample, error)

	UpsertSensor(ctx context.Context, s *SensorStatus) error
	ListSensors(ctx context.Context) ([]*SensorStatus, error)
	ListPatientSensors(ctx context.Context, patientID types.ID) ([]*SensorStatus, error)
}
