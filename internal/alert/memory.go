package alert

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sepguard/platform/internal/shared/errors"
	"github.com/sepguard/platform/internal/shared/types"
)

// MemoryRepository is the in-memory alert store for limited mode and tests
type MemoryRepository struct {
	mu     sync.RWMutex
	alerts map[types.ID]*Alert
	config ThresholdConfig
}

// NewMemoryRepository creates an in-memory alert store with default config
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		alerts: make(map[types.ID]*Alert),
		config: *DefaultConfig(),
	}
}

func (r *MemoryRepository) CreateAlert(ctx context.Context, a *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.alerts[a.ID]; exists {
		return errors.Conflict("alert already exists")
	}
	cp := *a
	r.alerts[a.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetAlert(ctx context.Context, id types.ID) (*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, errors.NotFound("alert", id.String())
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) ListAlerts(ctx context.Context, filter ListFilter) ([]*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Alert
	for _, a := range r.alerts {
		if filter.ActiveOnly && a.Acknowledged {
			continue
		}
		if filter.PatientID != nil && a.PatientID != *filter.PatientID {
			continue
		}
		if filter.Severity != nil && a.Severity != *filter.Severity {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) HasActiveAlert(ctx context.Context, patientID types.ID, kind string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.alerts {
		if a.PatientID == patientID && a.Kind == kind && !a.Acknowledged {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) Acknowledge(ctx context.Context, id types.ID, by string, at time.Time) (*Alert, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, false, errors.NotFound("alert", id.String())
	}

	if a.Acknowledged {
		cp := *a
		return &cp, false, nil
	}

	a.Acknowledged = true
	a.AcknowledgedBy = by
	a.AcknowledgedAt = &at
	cp := *a
	return &cp, true, nil
}

func (r *MemoryRepository) DeleteAlertsForPatient(ctx context.Context, patientID types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, a := range r.alerts {
		if a.PatientID == patientID {
			delete(r.alerts, id)
		}
	}
	return nil
}

func (r *MemoryRepository) GetConfig(ctx context.Context) (*ThresholdConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cp := r.config
	return &cp, nil
}

func (r *MemoryRepository) SaveConfig(ctx context.Context, cfg *ThresholdConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.config = *cfg
	return nil
}
