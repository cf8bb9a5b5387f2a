package patient

import (
	"context"
	"sort"
	"sync"

	"github.com/sepguard/platform/internal/shared/errors"
	"github.com/sepguard/platform/internal/shared/types"
)

// MemoryRepository is an in-memory record store. It backs limited mode
// (no database configured) and tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	patients map[types.ID]*Patient
	vitals   map[types.ID][]*VitalsSample
	labs     map[types.ID][]*LabSample
	sensors  map[types.ID]map[SensorKind]*SensorStatus
}

// NewMemoryRepository creates an empty in-memory record store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients: make(map[types.ID]*Patient),
		vitals:   make(map[types.ID][]*VitalsSample),
		labs:     make(map[types.ID][]*LabSample),
		sensors:  make(map[types.ID]map[SensorKind]*SensorStatus),
	}
}

func (r *MemoryRepository) CreatePatient(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.patients[p.ID]; exists {
		return errors.Conflict("patient already exists")
	}

	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetPatient(ctx context.Context, id types.ID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, errors.NotFound("patient", id.String())
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) ListPatients(ctx context.Context) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Patient, 0, len(r.patients))
	for _, p := range r.patients {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Room != out[j].Room {
			return out[i].Room < out[j].Room
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryRepository) UpdatePatient(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[p.ID]; !ok {
		return errors.NotFound("patient", p.ID.String())
	}
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *MemoryRepository) DeletePatient(ctx context.Context, id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[id]; !ok {
		return errors.NotFound("patient", id.String())
	}
	delete(r.patients, id)
	delete(r.vitals, id)
	delete(r.labs, id)
	delete(r.sensors, id)
	return nil
}

func (r *MemoryRepository) AppendVitals(ctx context.Context, s *VitalsSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[s.PatientID]; !ok {
		return errors.NotFound("patient", s.PatientID.String())
	}
	cp := *s
	r.vitals[s.PatientID] = append(r.vitals[s.PatientID], &cp)
	return nil
}

func (r *MemoryRepository) AppendLabs(ctx context.Context, s *LabSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[s.PatientID]; !ok {
		return errors.NotFound("patient", s.PatientID.String())
	}
	cp := *s
	r.labs[s.PatientID] = append(r.labs[s.PatientID], &cp)
	return nil
}

func (r *MemoryRepository) LatestVitals(ctx context.Context, patientID types.ID) (*VitalsSample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *VitalsSample
	for _, s := range r.vitals[patientID] {
		if latest == nil || s.RecordedAt.After(latest.RecordedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *MemoryRepository) LatestLabs(ctx context.Context, patientID types.ID) (*LabSample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *LabSample
	for _, s := range r.labs[patientID] {
		if latest == nil || s.RecordedAt.After(latest.RecordedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *MemoryRepository) ListVitals(ctx context.Context, patientID types.ID, limit int) ([]*VitalsSample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	samples := r.vitals[patientID]
	out := make([]*VitalsSample, 0, len(samples))
	for _, s := range samples {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) ListLabs(ctx context.Context, patientID types.ID, limit int) ([]*LabSample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	samples := r.labs[patientID]
	out := make([]*LabSample, 0, len(samples))
	for _, s := range samples {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) UpsertSensor(ctx context.Context, s *SensorStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[s.PatientID]; !ok {
		return errors.NotFound("patient", s.PatientID.String())
	}

	byKind, ok := r.sensors[s.PatientID]
	if !ok {
		byKind = make(map[SensorKind]*SensorStatus)
		r.sensors[s.PatientID] = byKind
	}

	cp := *s
	if existing, ok := byKind[s.Kind]; ok {
		cp.ID = existing.ID
	}
	byKind[s.Kind] = &cp
	return nil
}

func (r *MemoryRepository) ListSensors(ctx context.Context) ([]*SensorStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*SensorStatus
	for _, byKind := range r.sensors {
		for _, s := range byKind {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PatientID != out[j].PatientID {
			return out[i].PatientID < out[j].PatientID
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

func (r *MemoryRepository) ListPatientSensors(ctx context.Context, patientID types.ID) ([]*SensorStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*SensorStatus
	for _, s := range r.sensors[patientID] {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out, nil
}
