package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sepguard/platform/internal/adapters/his"
	"github.com/sepguard/platform/internal/alert"
	"github.com/sepguard/platform/internal/live"
	"github.com/sepguard/platform/internal/monitor"
	"github.com/sepguard/platform/internal/notify"
	"github.com/sepguard/platform/internal/patient"
	"github.com/sepguard/platform/internal/risk"
	"github.com/sepguard/platform/internal/schedule"
	"github.com/sepguard/platform/internal/seed"
	"github.com/sepguard/platform/internal/shared/auth"
	"github.com/sepguard/platform/internal/shared/config"
	"github.com/sepguard/platform/internal/shared/database"
	"github.com/sepguard/platform/internal/shared/logging"
	"github.com/sepguard/platform/internal/shared/metrics"
	secmiddleware "github.com/sepguard/platform/internal/shared/middleware"
	"github.com/sepguard/platform/internal/shared/types"
	"github.com/sepguard/platform/internal/stats"
)

// App holds the application's long-lived dependencies
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *database.DB
	Redis  *redis.Client
	HIS    *his.Adapter
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Server.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	app := &App{Config: cfg, Logger: logger}
	clock := types.SystemClock{}

	// Database is optional: without it the service runs in limited mode
	// on in-memory stores, which is enough for demos and development.
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Warn("database not available, running in limited mode", zap.Error(err))
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			logger.Error("migration failed", zap.Error(err))
			os.Exit(1)
		}
	}

	// Record stores.
	var patientRepo patient.Repository
	var alertRepo alert.Repository
	var scheduleRepo schedule.Repository

	if app.DB != nil {
		patientRepo = patient.NewPostgresRepository(app.DB.Pool)

		pgAlerts := alert.NewPostgresRepository(app.DB.Pool)
		if err := pgAlerts.InitConfig(ctx); err != nil {
			logger.Error("failed to initialize alert settings", zap.Error(err))
			os.Exit(1)
		}
		alertRepo = pgAlerts

		pgSchedule := schedule.NewPostgresRepository(app.DB.Pool)
		if err := pgSchedule.Init(ctx, cfg.Assessment.DefaultIntervalHours); err != nil {
			logger.Error("failed to initialize assessment schedule", zap.Error(err))
			os.Exit(1)
		}
		scheduleRepo = pgSchedule
	} else {
		patientRepo = patient.NewMemoryRepository()

		memAlerts := alert.NewMemoryRepository()
		if !cfg.Assessment.SuppressDuplicateAlerts {
			c, _ := memAlerts.GetConfig(ctx)
			c.SuppressDuplicates = false
			memAlerts.SaveConfig(ctx, c)
		}
		alertRepo = memAlerts

		scheduleRepo = schedule.NewMemoryRepository(cfg.Assessment.DefaultIntervalHours)
	}

	// Optional latest-sample cache in front of the record store.
	if cfg.Redis.Addr != "" && app.DB != nil {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not available, caching disabled", zap.Error(err))
		} else {
			app.Redis = client
			defer client.Close()
			ttl := time.Duration(cfg.Redis.TTLSeconds) * time.Second
			patientRepo = patient.NewCachedRepository(patientRepo, client, ttl, logger)
			logger.Info("latest-sample cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// Live dashboard feed.
	hub := live.NewHub(logger)
	go hub.Run()

	// Notification dispatch. Real providers plug in here; the log
	// provider stands in until then.
	logProvider := &notify.LogProvider{Logger: logger}
	dispatcher := notify.NewDispatcher(logProvider, logProvider, logProvider, notify.Config{
		Workers:    cfg.Notify.Workers,
		BufferSize: cfg.Notify.BufferSize,
	}, logger, clock)
	if err := dispatcher.Start(ctx); err != nil {
		logger.Error("failed to start notification dispatcher", zap.Error(err))
		os.Exit(1)
	}
	defer dispatcher.Stop()

	// Core pipeline.
	engine := alert.NewEngine(alertRepo, dispatcher, hub, logger, clock)
	evaluator := risk.NewEvaluator(risk.NewSepsisScorer())
	monitorSvc := monitor.NewService(patientRepo, evaluator, engine, hub, logger, clock)

	scheduler := schedule.NewScheduler(scheduleRepo, patientRepo, monitorSvc, logger, clock)
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start assessment scheduler", zap.Error(err))
		os.Exit(1)
	}
	defer scheduler.Stop()

	aggregator := stats.NewAggregator(patientRepo, engine, cfg.Assessment.HighRiskThreshold)

	// HIS admission feed.
	if cfg.HIS.Enabled {
		adapter := his.New(cfg.HIS, patientRepo, monitorSvc, clock, logger)
		if err := adapter.Start(ctx); err != nil {
			logger.Warn("HIS admission feed not available", zap.Error(err))
		} else {
			app.HIS = adapter
			defer adapter.Stop(context.Background())
		}
	}

	// Seed a demo ward in limited mode so the dashboard has something
	// to show.
	if app.DB == nil {
		if err := seed.Demo(ctx, patientRepo, alertRepo, clock, logger); err != nil {
			logger.Warn("failed to seed demo data", zap.Error(err))
		}
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.RequestLogger(logger))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.CORS(secmiddleware.DefaultCORSConfig()))
	r.Use(secmiddleware.MaxBodySize(1 << 20))
	r.Use(metrics.Middleware)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())
	r.Get("/", infoHandler)
	r.Get("/ws", hub.HandleWebSocket)

	ingestLimiter := secmiddleware.NewIPRateLimiter(10, 20)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}

		patient.NewHandler(patientRepo, monitorSvc, clock).Register(r)
		monitor.NewHandler(monitorSvc, ingestLimiter).Register(r)
		alert.NewHandler(engine).Register(r)
		schedule.NewHandler(scheduler).Register(r)
		stats.NewHandler(aggregator).Register(r)

		r.Post("/seed-demo-data", func(w http.ResponseWriter, req *http.Request) {
			if err := seed.Demo(req.Context(), patientRepo, alertRepo, clock, logger); err != nil {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintln(w, `{"message":"demo ward seeded"}`)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		close(done)
	}()

	logger.Info("sepguard platform started",
		zap.String("env", cfg.Server.Env),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("database", app.DB != nil),
		zap.Bool("cache", app.Redis != nil),
		zap.Bool("his_feed", app.HIS != nil))

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	<-done
	logger.Info("server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "SepGuard Sepsis Monitoring Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		if app.Redis != nil {
			if err := app.Redis.Ping(r.Context()).Err(); err != nil {
				checks["redis"] = "not ready: " + err.Error()
			} else {
				checks["redis"] = "ready"
			}
		} else {
			checks["redis"] = "not configured"
		}

		if app.HIS != nil {
			if err := app.HIS.Health(r.Context()); err != nil {
				checks["his"] = "not ready: " + err.Error()
			} else {
				checks["his"] = "ready"
			}
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
