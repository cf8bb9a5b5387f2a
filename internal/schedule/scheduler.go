package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sepguard/platform/internal/alert"
	"github.com/sepguard/platform/internal/monitor"
	"github.com/sepguard/platform/internal/patient"
	"github.com/sepguard/platform/internal/shared/errors"
	"github.com/sepguard/platform/internal/shared/metrics"
	"github.com/sepguard/platform/internal/shared/types"
)

// tickInterval is how often the loop checks whether a round is due. Due
// times are persisted, so a restart picks up where the last run left off.
const tickInterval = time.Minute

// Scheduler runs periodic assessment rounds over all admitted patients.
// At most one round runs at a time; a manual trigger while a round is in
// flight is rejected rather than queued.
type Scheduler struct {
	repo     Repository
	patients patient.Repository
	monitor  *monitor.Service
	logger   *zap.Logger
	clock    types.Clock

	mu       sync.Mutex
	running  bool
	started  bool
	progress Progress
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates an assessment scheduler
func NewScheduler(repo Repository, patients patient.Repository, mon *monitor.Service, logger *zap.Logger, clock types.Clock) *Scheduler {
	return &Scheduler{
		repo:     repo,
		patients: patients,
		monitor:  mon,
		logger:   logger,
		clock:    clock,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the scheduling loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.Conflict("scheduler already started")
	}
	s.started = true
	s.mu.Unlock()

	// Anchor the first run if the schedule has never fired
	sched, err := s.repo.Get(ctx)
	if err != nil {
		return err
	}
	if sched.NextRunAt == nil {
		next := s.clock.Now().Add(time.Duration(sched.IntervalHours) * time.Hour)
		sched.NextRunAt = &next
		sched.UpdatedAt = s.clock.Now()
		if err := s.repo.Save(ctx, sched); err != nil {
			return err
		}
	}

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// Stop halts the scheduling loop. A round already in flight finishes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.maybeRun(ctx)
		}
	}
}

func (s *Scheduler) maybeRun(ctx context.Context) {
	sched, err := s.repo.Get(ctx)
	if err != nil {
		s.logger.Error("schedule read failed", zap.Error(err))
		return
	}
	if sched.NextRunAt == nil || s.clock.Now().Before(*sched.NextRunAt) {
		return
	}

	if _, err := s.RunRound(ctx, TriggerScheduled); err != nil {
		if !errors.IsConflict(err) {
			s.logger.Error("scheduled round failed", zap.Error(err))
		}
	}
}

// TriggerNow runs a round immediately. Fails with a conflict when a round
// is already in flight.
func (s *Scheduler) TriggerNow(ctx context.Context) (*RoundSummary, error) {
	return s.RunRound(ctx, TriggerManual)
}

// RunRound assesses every patient once. One patient's failure does not
// stop the round; failures are counted and logged.
func (s *Scheduler) RunRound(ctx context.Context, trigger string) (*RoundSummary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, errors.Conflict("assessment round already in progress")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := s.clock.Now()
	summary := &RoundSummary{Trigger: trigger, StartedAt: start}

	patients, err := s.patients.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	summary.Patients = len(patients)

	s.mu.Lock()
	s.progress = Progress{TotalPatients: len(patients)}
	s.mu.Unlock()

	for _, p := range patients {
		result, err := s.monitor.Assess(ctx, p.ID, alert.SourceTestingSchedule)
		if err != nil {
			summary.Failed++
			s.logger.Error("patient assessment failed",
				zap.String("patient_id", p.ID.String()), zap.Error(err))
			continue
		}
		summary.Assessed++
		if result.Alert != nil {
			summary.AlertsRaised++
		}

		s.mu.Lock()
		s.progress.RiskCalculated++
		if result.Assessment.VitalsUsed {
			s.progress.VitalsCompleted++
		}
		if result.Assessment.LabsUsed {
			s.progress.LabsCompleted++
		}
		s.mu.Unlock()
	}

	summary.Duration = s.clock.Now().Sub(start)
	metrics.RecordAssessmentRound(trigger, summary.Duration)

	// Advance the schedule from this run, not from the planned time, so a
	// delayed round does not cause a catch-up burst.
	sched, err := s.repo.Get(ctx)
	if err != nil {
		return summary, err
	}
	now := s.clock.Now()
	next := now.Add(time.Duration(sched.IntervalHours) * time.Hour)
	sched.LastRunAt = &now
	sched.NextRunAt = &next
	sched.UpdatedAt = now
	if err := s.repo.Save(ctx, sched); err != nil {
		return summary, err
	}

	s.logger.Info("assessment round complete",
		zap.String("trigger", trigger),
		zap.Int("patients", summary.Patients),
		zap.Int("assessed", summary.Assessed),
		zap.Int("failed", summary.Failed),
		zap.Int("alerts_raised", summary.AlertsRaised),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// Get returns the current schedule
func (s *Scheduler) Get(ctx context.Context) (*Schedule, error) {
	return s.repo.Get(ctx)
}

// Status returns the schedule along with round state and progress. The
// progress counters keep the last round's totals until the next one starts.
func (s *Scheduler) Status(ctx context.Context) (*Status, error) {
	sched, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	st := &Status{Schedule: *sched, Running: s.running, Progress: s.progress}
	s.mu.Unlock()
	return st, nil
}

// UpdateInterval changes the cadence. A NextRunAt already on the books
// stays where it is; the new interval takes effect when the next round
// completes and computes its successor.
func (s *Scheduler) UpdateInterval(ctx context.Context, hours int) (*Schedule, error) {
	if hours < 1 || hours > 24 {
		return nil, errors.Validation("invalid schedule", map[string]string{
			"interval_hours": "must be between 1 and 24",
		})
	}

	sched, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}

	sched.IntervalHours = hours
	now := s.clock.Now()
	sched.UpdatedAt = now

	if err := s.repo.Save(ctx, sched); err != nil {
		return nil, err
	}

	s.logger.Info("assessment interval updated", zap.Int("interval_hours", hours))
	return sched, nil
}
