package his

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/sepguard/platform/internal/patient"
	"github.com/sepguard/platform/internal/shared/config"
	"github.com/sepguard/platform/internal/shared/types"
)

// Discharger tears down a patient's monitoring state when the HIS
// reports them discharged
type Discharger interface {
	Discharge(ctx context.Context, id types.ID) error
}

// Adapter bridges the hospital information system's admission feed into
// the monitoring record store. It polls the HIS SQL Server for ward
// admissions and discharges and mirrors them as monitored patients, so
// bedside staff never have to register patients by hand.
type Adapter struct {
	cfg        config.HISConfig
	patients   patient.Repository
	discharger Discharger
	clock      types.Clock
	logger     *zap.Logger

	db *sql.DB

	// admitted maps the HIS admission ID to the local patient ID, so a
	// later discharge row can be matched back. Rebuilt empty on restart;
	// already-admitted rows are then skipped by the lastPoll watermark.
	admitted map[string]types.ID

	running  bool
	lastPoll time.Time
	cancel   context.CancelFunc
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

func New(cfg config.HISConfig, patients patient.Repository, discharger Discharger, clock types.Clock, logger *zap.Logger) *Adapter {
	return &Adapter{
		cfg:        cfg,
		patients:   patients,
		discharger: discharger,
		clock:      clock,
		logger:     logger,
		admitted:   make(map[string]types.ID),
	}
}

// Start opens the HIS connection and begins polling
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("adapter already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		a.cfg.Host, a.cfg.Port, a.cfg.Database, a.cfg.User, a.cfg.Password)
	if a.cfg.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open HIS database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping HIS database: %w", err)
	}

	a.db = db
	a.running = true
	a.lastPoll = a.clock.Now()

	pollCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(1)
	go a.pollLoop(pollCtx)

	a.logger.Info("HIS admission feed started",
		zap.String("host", a.cfg.Host),
		zap.Int("poll_interval_seconds", a.cfg.PollIntervalSeconds))

	return nil
}

// Stop stops polling and closes the connection
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	a.cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if a.db != nil {
		a.db.Close()
	}

	a.running = false
	return nil
}

// Health checks HIS connectivity
func (a *Adapter) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running {
		return fmt.Errorf("adapter not running")
	}
	return a.db.PingContext(ctx)
}

func (a *Adapter) pollLoop(ctx context.Context) {
	defer a.wg.Done()

	interval := time.Duration(a.cfg.PollIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			since := a.lastPoll
			a.lastPoll = a.clock.Now()
			a.mu.Unlock()

			if err := a.pollAdmissions(ctx, since); err != nil {
				a.logger.Error("failed to poll admissions", zap.Error(err))
			}
			if err := a.pollDischarges(ctx, since); err != nil {
				a.logger.Error("failed to poll discharges", zap.Error(err))
			}
		}
	}
}

// pollAdmissions registers newly admitted patients for monitoring
func (a *Adapter) pollAdmissions(ctx context.Context, since time.Time) error {
	query := `
		SELECT
			h.AdmissionID,
			p.FirstName + ' ' + p.LastName AS PatientName,
			DATEDIFF(year, p.DateOfBirth, GETDATE()) AS Age,
			h.Room,
			h.AdmissionDate
		FROM dbo.Admissions h
		INNER JOIN dbo.Patients p ON h.PatientID = p.PatientID
		WHERE h.AdmissionDate > @since
		  AND h.DischargeDate IS NULL
		ORDER BY h.AdmissionDate ASC
	`

	rows, err := a.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var admissionID, name string
		var age int
		var room sql.NullString
		var admittedAt time.Time

		if err := rows.Scan(&admissionID, &name, &age, &room, &admittedAt); err != nil {
			a.logger.Warn("failed to scan admission row", zap.Error(err))
			continue
		}

		a.mu.RLock()
		_, known := a.admitted[admissionID]
		a.mu.RUnlock()
		if known {
			continue
		}

		p := &patient.Patient{
			ID:         types.NewID(),
			Name:       name,
			Room:       room.String,
			Age:        age,
			AdmittedAt: admittedAt,
			RiskTier:   patient.TierNormal,
			Trend:      patient.TrendStable,
			CreatedAt:  a.clock.Now(),
		}

		if err := a.patients.CreatePatient(ctx, p); err != nil {
			a.logger.Error("failed to register admitted patient",
				zap.String("admission_id", admissionID), zap.Error(err))
			continue
		}

		a.mu.Lock()
		a.admitted[admissionID] = p.ID
		a.mu.Unlock()

		a.logger.Info("patient admitted from HIS feed",
			zap.String("admission_id", admissionID),
			zap.String("patient_id", string(p.ID)),
			zap.String("room", p.Room))
	}

	return rows.Err()
}

// pollDischarges tears down monitoring for discharged patients
func (a *Adapter) pollDischarges(ctx context.Context, since time.Time) error {
	query := `
		SELECT h.AdmissionID, h.DischargeDate
		FROM dbo.Admissions h
		WHERE h.DischargeDate > @since
		  AND h.DischargeDate IS NOT NULL
		ORDER BY h.DischargeDate ASC
	`

	rows, err := a.db.QueryContext(ctx, query, sql.Named("since", since))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var admissionID string
		var dischargedAt time.Time

		if err := rows.Scan(&admissionID, &dischargedAt); err != nil {
			a.logger.Warn("failed to scan discharge row", zap.Error(err))
			continue
		}

		a.mu.RLock()
		patientID, known := a.admitted[admissionID]
		a.mu.RUnlock()
		if !known {
			// Admitted before this process started, or registered by hand.
			continue
		}

		if err := a.discharger.Discharge(ctx, patientID); err != nil {
			a.logger.Error("failed to remove discharged patient",
				zap.String("patient_id", string(patientID)), zap.Error(err))
			continue
		}

		a.mu.Lock()
		delete(a.admitted, admissionID)
		a.mu.Unlock()

		a.logger.Info("patient discharged via HIS feed",
			zap.String("admission_id", admissionID),
			zap.String("patient_id", string(patientID)))
	}

	return rows.Err()
}
