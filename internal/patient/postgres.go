package patient

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sepguard/platform/internal/shared/errors"
	"github.com/sepguard/platform/internal/shared/types"
)

// PostgresRepository is the database-backed record store
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new patient repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreatePatient(ctx context.Context, p *Patient) error {
	query := `
		INSERT INTO patients (
			id, name, room, age, admitted_at,
			risk_score, risk_tier, trend, last_assessed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Name, p.Room, p.Age, p.AdmittedAt,
		p.RiskScore, p.RiskTier, p.Trend, p.LastAssessedAt, p.CreatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("patient already exists")
		}
		return errors.Wrap(err, "failed to create patient")
	}

	return nil
}

func (r *PostgresRepository) GetPatient(ctx context.Context, id types.ID) (*Patient, error) {
	query := `
		SELECT id, name, room, age, admitted_at,
			risk_score, risk_tier, trend, last_assessed_at, created_at
		FROM patients
		WHERE id = $1`

	p := &Patient{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Room, &p.Age, &p.AdmittedAt,
		&p.RiskScore, &p.RiskTier, &p.Trend, &p.LastAssessedAt, &p.CreatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("patient", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get patient")
	}

	return p, nil
}

func (r *PostgresRepository) ListPatients(ctx context.Context) ([]*Patient, error) {
	query := `
		SELECT id, name, room, age, admitted_at,
			risk_score, risk_tier, trend, last_assessed_at, created_at
		FROM patients
		ORDER BY room, name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list patients")
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p := &Patient{}
		err := rows.Scan(
			&p.ID, &p.Name, &p.Room, &p.Age, &p.AdmittedAt,
			&p.RiskScore, &p.RiskTier, &p.Trend, &p.LastAssessedAt, &p.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan patient")
		}
		out = append(out, p)
	}

	return out, rows.Err()
}

func (r *PostgresRepository) UpdatePatient(ctx context.Context, p *Patient) error {
	query := `
		UPDATE patients SET
			name = $2, room = $3, age = $4, admitted_at = $5,
			risk_score = $6, risk_tier = $7, trend = $8, last_assessed_at = $9
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		p.ID, p.Name, p.Room, p.Age, p.AdmittedAt,
		p.RiskScore, p.RiskTier, p.Trend, p.LastAssessedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update patient")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("patient", p.ID.String())
	}

	return nil
}

func (r *PostgresRepository) DeletePatient(ctx context.Context, id types.ID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete patient")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("patient", id.String())
	}
	return nil
}

func (r *PostgresRepository) AppendVitals(ctx context.Context, s *VitalsSample) error {
	query := `
		INSERT INTO vitals_samples (
			id, patient_id, heart_rate, temperature_f, systolic_bp,
			diastolic_bp, respiratory_rate, oxygen_saturation, source, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.PatientID, s.HeartRate, s.TemperatureF, s.SystolicBP,
		s.DiastolicBP, s.RespiratoryRate, s.OxygenSaturation, s.Source, s.RecordedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return errors.NotFound("patient", s.PatientID.String())
		}
		return errors.Wrap(err, "failed to append vitals")
	}
	return nil
}

func (r *PostgresRepository) AppendLabs(ctx context.Context, s *LabSample) error {
	query := `
		INSERT INTO lab_samples (
			id, patient_id, lactate, white_cell_count,
			c_reactive_protein, blood_culture, source, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	culture := any(nil)
	if s.BloodCulture != "" {
		culture = string(s.BloodCulture)
	}

	_, err := r.pool.Exec(ctx, query,
		s.ID, s.PatientID, s.Lactate, s.WhiteCellCount,
		s.CReactiveProtein, culture, s.Source, s.RecordedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return errors.NotFound("patient", s.PatientID.String())
		}
		return errors.Wrap(err, "failed to append labs")
	}
	return nil
}

func (r *PostgresRepository) LatestVitals(ctx context.Context, patientID types.ID) (*VitalsSample, error) {
	query := `
		SELECT id, patient_id, heart_rate, temperature_f, systolic_bp,
			diastolic_bp, respiratory_rate, oxygen_saturation, source, recorded_at
		FROM vitals_samples
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1`

	s := &VitalsSample{}
	err := r.pool.QueryRow(ctx, query, patientID).Scan(
		&s.ID, &s.PatientID, &s.HeartRate, &s.TemperatureF, &s.SystolicBP,
		&s.DiastolicBP, &s.RespiratoryRate, &s.OxygenSaturation, &s.Source, &s.RecordedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest vitals")
	}

	return s, nil
}

func (r *PostgresRepository) LatestLabs(ctx context.Context, patientID types.ID) (*LabSample, error) {
	query := `
		SELECT id, patient_id, lactate, white_cell_count,
			c_reactive_protein, COALESCE(blood_culture, ''), source, recorded_at
		FROM lab_samples
		WHERE patient_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1`

	s := &LabSample{}
	err := r.pool.QueryRow(ctx, query, patientID).Scan(
		&s.ID, &s.PatientID, &s.Lactate, &s.WhiteCellCount,
		&s.CReactiveProtein, &s.BloodCulture, &s.Source, &s.RecordedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest labs")
	}

	return s, nil
}

func (r *PostgresRepository) ListVitals(ctx context.Context, patientID types.ID, limit int) ([]*VitalsSample, error) {
	query := `
		SELECT id, patient_id, heart_rate, temperature_f, systolic_bp,
			diastolic_bp, respiratory_rate, oxygen_saturation, source, recorded_at
		FROM vitals_samples
		WHERE patient_id = $1
		ORDER BY recorded_at DESC`
	args := []any{patientID}

	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list vitals")
	}
	defer rows.Close()

	var out []*VitalsSample
	for rows.Next() {
		s := &VitalsSample{}
		err := rows.Scan(
			&s.ID, &s.PatientID, &s.HeartRate, &s.TemperatureF, &s.SystolicBP,
			&s.DiastolicBP, &s.RespiratoryRate, &s.OxygenSaturation, &s.Source, &s.RecordedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan vitals sample")
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

func (r *PostgresRepository) ListLabs(ctx context.Context, patientID types.ID, limit int) ([]*LabSample, error) {
	query := `
		SELECT id, patient_id, lactate, white_cell_count,
			c_reactive_protein, COALESCE(blood_culture, ''), source, recorded_at
		FROM lab_samples
		WHERE patient_id = $1
		ORDER BY recorded_at DESC`
	args := []any{patientID}

	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list labs")
	}
	defer rows.Close()

	var out []*LabSample
	for rows.Next() {
		s := &LabSample{}
		err := rows.Scan(
			&s.ID, &s.PatientID, &s.Lactate, &s.WhiteCellCount,
			&s.CReactiveProtein, &s.BloodCulture, &s.Source, &s.RecordedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan lab sample")
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

func (r *PostgresRepository) UpsertSensor(ctx context.Context, s *SensorStatus) error {
	query := `
		INSERT INTO sensors (id, patient_id, kind, status, last_seen_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (patient_id, kind) DO UPDATE SET
			status = EXCLUDED.status,
			last_seen_at = EXCLUDED.last_seen_at`

	_, err := r.pool.Exec(ctx, query, s.ID, s.PatientID, s.Kind, s.Status, s.LastSeenAt)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return errors.NotFound("patient", s.PatientID.String())
		}
		return errors.Wrap(err, "failed to upsert sensor")
	}
	return nil
}

func (r *PostgresRepository) ListSensors(ctx context.Context) ([]*SensorStatus, error) {
	query := `
		SELECT id, patient_id, kind, status, last_seen_at
		FROM sensors
		ORDER BY patient_id, kind`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sensors")
	}
	defer rows.Close()

	var out []*SensorStatus
	for rows.Next() {
		s := &SensorStatus{}
		if err := rows.Scan(&s.ID, &s.PatientID, &s.Kind, &s.Status, &s.LastSeenAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan sensor")
		}
		out = append(out, s)
	}

	return out, rows.Err()
}

func (r *PostgresRepository) ListPatientSensors(ctx context.Context, patientID types.ID) ([]*SensorStatus, error) {
	query := `
		SELECT id, patient_id, kind, status, last_seen_at
		FROM sensors
		WHERE patient_id = $1
		ORDER BY kind`

	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list patient sensors")
	}
	defer rows.Close()

	var out []*SensorStatus
	for rows.Next() {
		s := &SensorStatus{}
		if err := rows.Scan(&s.ID, &s.PatientID, &s.Kind, &s.Status, &s.LastSeenAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan sensor")
		}
		out = append(out, s)
	}

	return out, rows.Err()
}
