package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/biomarker-assessment-engine/internal/api"
	"github.com/biomarker-assessment-engine/internal/audit"
	"github.com/biomarker-assessment-engine/internal/config"
	"github.com/biomarker-assessment-engine/internal/database"
	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/internal/logging"
	"github.com/biomarker-assessment-engine/internal/metrics"
	"github.com/biomarker-assessment-engine/internal/reference"
	"github.com/biomarker-assessment-engine/internal/service"
	"github.com/biomarker-assessment-engine/internal/session"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func run(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) error {
	tables, err := reference.LoadFile(cfg.Reference.OverlayPath)
	if err != nil {
		return err
	}

	sessions, err := session.New(cfg.Session, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer sessions.Close()

	recorder := metrics.NewRecorder(metrics.Options{GoMetrics: true, ProcessMetrics: true})
	observers := []service.OutcomeObserver{recorder}

	var auditStore domain.AuditStore
	if cfg.Audit.Enabled {
		var pg *sql.DB
		if cfg.Audit.Backend == "postgres" {
			db, err := openPostgres(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()
			pg = db.SQLDB()
		}
		auditStore, err = audit.New(cfg.Audit, pg)
		if err != nil {
			return err
		}
		defer auditStore.Close()
		observer := audit.NewObserver(auditStore, tables.Version, logger)
		defer observer.Close()
		observers = append(observers, observer)
	}

	svc, err := service.NewAssessmentService(logger, tables, observers...)
	if err != nil {
		return err
	}

	server := api.NewServer(*cfg, api.Dependencies{
		Service:  svc,
		Sessions: sessions,
		Audit:    auditStore,
		Metrics:  recorder,
		Logger:   logger,
	})

	logger.WithFields(logrus.Fields{
		"host":              cfg.Server.Host,
		"port":              cfg.Server.Port,
		"reference_version": tables.Version,
		"session_backend":   cfg.Session.Backend,
		"audit_backend":     cfg.Audit.Backend,
	}).Info("Starting biomarker assessment engine")

	return server.Start(ctx)
}

// openPostgres connects the pool and applies pending migrations.
func openPostgres(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) (*database.DB, error) {
	dbCfg := database.ConfigFrom(cfg.Database)

	runner, err := database.NewMigrationRunner(dbCfg.URL(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		return nil, err
	}
	if err := runner.Up(ctx); err != nil {
		runner.Close()
		return nil, err
	}
	if err := runner.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close migration runner")
	}

	return database.NewConnection(ctx, dbCfg, logger)
}
