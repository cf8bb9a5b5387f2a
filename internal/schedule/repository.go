package schedule

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sepguard/platform/internal/shared/errors"
)

// Repository stores the single schedule row
type Repository interface {
	Get(ctx context.Context) (*Schedule, error)
	Save(ctx context.Context, s *Schedule) error
}

// MemoryRepository holds the schedule in memory for limited mode and tests
type MemoryRepository struct {
	mu       sync.RWMutex
	schedule Schedule
}

// NewMemoryRepository creates an in-memory schedule store with the given
// starting interval
func NewMemoryRepository(intervalHours int) *MemoryRepository {
	return &MemoryRepository{
		schedule: Schedule{IntervalHours: intervalHours},
	}
}

func (r *MemoryRepository) Get(ctx context.Context) (*Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cp := r.schedule
	return &cp, nil
}

func (r *MemoryRepository) Save(ctx context.Context, s *Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.schedule = *s
	return nil
}

// PostgresRepository is the database-backed schedule store
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a schedule repository. Init must be called
// before Get or Save.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Init inserts the schedule row with the given interval if none exists
func (r *PostgresRepository) Init(ctx context.Context, intervalHours int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assessment_schedule (id, interval_hours, updated_at)
		VALUES (TRUE, $1, NOW())
		ON CONFLICT (id) DO NOTHING`,
		intervalHours,
	)
	if err != nil {
		return errors.Wrap(err, "failed to init schedule")
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context) (*Schedule, error) {
	s := &Schedule{}
	err := r.pool.QueryRow(ctx, `
		SELECT interval_hours, last_run_at, next_run_at, updated_at
		FROM assessment_schedule
		WHERE id = TRUE`,
	).Scan(&s.IntervalHours, &s.LastRunAt, &s.NextRunAt, &s.UpdatedAt)

	if err == pgx.ErrNoRows {
		return nil, errors.Wrap(err, "schedule not initialized")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get schedule")
	}
	return s, nil
}

func (r *PostgresRepository) Save(ctx context.Context, s *Schedule) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE assessment_schedule SET
			interval_hours = $1, last_run_at = $2, next_run_at = $3, updated_at = $4
		WHERE id = TRUE`,
		s.IntervalHours, s.LastRunAt, s.NextRunAt, s.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save schedule")
	}
	return nil
}
