package alert

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sepguard/platform/internal/shared/errors"
	"github.com/sepguard/platform/internal/shared/types"
)

// PostgresRepository is the database-backed alert store
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new alert repository. InitConfig must be
// called before the config accessors are used.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// InitConfig inserts the default configuration row if none exists yet
func (r *PostgresRepository) InitConfig(ctx context.Context) error {
	def := DefaultConfig()
	query := `
		INSERT INTO alert_settings (
			id, critical_threshold, warning_threshold, monitor_threshold,
			notify_audio, notify_email, notify_sms, suppress_duplicates, updated_at
		) VALUES (TRUE, $1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		def.Thresholds.Critical, def.Thresholds.Warning, def.Thresholds.Monitor,
		def.NotifyAudio, def.NotifyEmail, def.NotifySMS, def.SuppressDuplicates,
	)
	if err != nil {
		return errors.Wrap(err, "failed to init alert settings")
	}
	return nil
}

func (r *PostgresRepository) CreateAlert(ctx context.Context, a *Alert) error {
	query := `
		INSERT INTO alerts (
			id, patient_id, severity, kind, message, source, score,
			acknowledged, acknowledged_by, acknowledged_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	ackBy := any(nil)
	if a.AcknowledgedBy != "" {
		ackBy = a.AcknowledgedBy
	}

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.PatientID, a.Severity, a.Kind, a.Message, a.Source, a.Score,
		a.Acknowledged, ackBy, a.AcknowledgedAt, a.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("alert already exists")
		}
		if strings.Contains(err.Error(), "foreign key") {
			return errors.NotFound("patient", a.PatientID.String())
		}
		return errors.Wrap(err, "failed to create alert")
	}
	return nil
}

func (r *PostgresRepository) GetAlert(ctx context.Context, id types.ID) (*Alert, error) {
	query := `
		SELECT id, patient_id, severity, kind, message, source, score,
			acknowledged, COALESCE(acknowledged_by, ''), acknowledged_at, created_at
		FROM alerts
		WHERE id = $1`

	a := &Alert{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.PatientID, &a.Severity, &a.Kind, &a.Message, &a.Source, &a.Score,
		&a.Acknowledged, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("alert", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get alert")
	}
	return a, nil
}

func (r *PostgresRepository) ListAlerts(ctx context.Context, filter ListFilter) ([]*Alert, error) {
	query := `
		SELECT id, patient_id, severity, kind, message, source, score,
			acknowledged, COALESCE(acknowledged_by, ''), acknowledged_at, created_at
		FROM alerts`

	var conditions []string
	var args []any

	if filter.ActiveOnly {
		conditions = append(conditions, "NOT acknowledged")
	}
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		conditions = append(conditions, "patient_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Severity != nil {
		args = append(args, *filter.Severity)
		conditions = append(conditions, "severity = $"+strconv.Itoa(len(args)))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list alerts")
	}
	defer rows.Close()

	var out []*Alert
	for rows.Next() {
		a := &Alert{}
		err := rows.Scan(
			&a.ID, &a.PatientID, &a.Severity, &a.Kind, &a.Message, &a.Source, &a.Score,
			&a.Acknowledged, &a.AcknowledgedBy, &a.AcknowledgedAt, &a.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan alert")
		}
		out = append(out, a)
	}

	return out, rows.Err()
}

func (r *PostgresRepository) HasActiveAlert(ctx context.Context, patientID types.ID, kind string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE patient_id = $1 AND kind = $2 AND NOT acknowledged
		)`,
		patientID, kind,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check active alert")
	}
	return exists, nil
}

func (r *PostgresRepository) Acknowledge(ctx context.Context, id types.ID, by string, at time.Time) (*Alert, bool, error) {
	// Conditional update makes the first acknowledger win atomically
	query := `
		UPDATE alerts SET
			acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = $3
		WHERE id = $1 AND NOT acknowledged`

	tag, err := r.pool.Exec(ctx, query, id, by, at)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to acknowledge alert")
	}

	a, err := r.GetAlert(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return a, tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) DeleteAlertsForPatient(ctx context.Context, patientID types.ID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM alerts WHERE patient_id = $1`, patientID)
	if err != nil {
		return errors.Wrap(err, "failed to delete patient alerts")
	}
	return nil
}

func (r *PostgresRepository) GetConfig(ctx context.Context) (*ThresholdConfig, error) {
	query := `
		SELECT critical_threshold, warning_threshold, monitor_threshold,
			notify_audio, notify_email, notify_sms, suppress_duplicates, updated_at
		FROM alert_settings
		WHERE id = TRUE`

	cfg := &ThresholdConfig{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&cfg.Thresholds.Critical, &cfg.Thresholds.Warning, &cfg.Thresholds.Monitor,
		&cfg.NotifyAudio, &cfg.NotifyEmail, &cfg.NotifySMS, &cfg.SuppressDuplicates, &cfg.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.Wrap(err, "alert settings not initialized")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get alert settings")
	}
	return cfg, nil
}

func (r *PostgresRepository) SaveConfig(ctx context.Context, cfg *ThresholdConfig) error {
	query := `
		UPDATE alert_settings SET
			critical_threshold = $1, warning_threshold = $2, monitor_threshold = $3,
			notify_audio = $4, notify_email = $5, notify_sms = $6,
			suppress_duplicates = $7, updated_at = $8
		WHERE id = TRUE`

	tag, err := r.pool.Exec(ctx, query,
		cfg.Thresholds.Critical, cfg.Thresholds.Warning, cfg.Thresholds.Monitor,
		cfg.NotifyAudio, cfg.NotifyEmail, cfg.NotifySMS, cfg.SuppressDuplicates, cfg.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save alert settings")
	}
	if tag.RowsAffected() == 0 {
		return errors.Internal(fmt.Errorf("alert settings not initialized"))
	}
	return nil
}
