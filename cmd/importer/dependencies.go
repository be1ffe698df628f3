package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/transaction-importer/internal/domain/balance"
	"github.com/FACorreiaa/transaction-importer/internal/domain/categorization"
	"github.com/FACorreiaa/transaction-importer/internal/domain/import/inbox"
	"github.com/FACorreiaa/transaction-importer/internal/domain/import/parser"
	importrepo "github.com/FACorreiaa/transaction-importer/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/transaction-importer/internal/domain/import/service"
	"github.com/FACorreiaa/transaction-importer/pkg/config"
	"github.com/FACorreiaa/transaction-importer/pkg/cron"
	"github.com/FACorreiaa/transaction-importer/pkg/db"
	"github.com/FACorreiaa/transaction-importer/pkg/metrics"
	"github.com/FACorreiaa/transaction-importer/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	Registry *prometheus.Registry
	Metrics  *metrics.ImportMetrics

	// Repositories
	ImportRepo  importrepo.ImportRepository
	BalanceRepo *balance.Repository

	// Services
	ImportService  *importservice.ImportService
	BalanceService *balance.Service

	// Inbox, only set up by initInbox
	Inbox     storage.Storage
	Processor *inbox.Processor
	Scheduler *cron.Scheduler
}

// InitDependencies connects to the database, applies migrations and builds
// the services used by every command.
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	deps.initRepositories()

	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Debug("all dependencies initialized successfully")
	return deps, nil
}

// InitDryRunDependencies builds the import service on top of an in-memory
// repository. Nothing reaches the database and source files are kept.
func InitDryRunDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:     cfg,
		Logger:     logger,
		ImportRepo: importrepo.NewMemoryImportRepository(),
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        int32(d.Config.Database.MaxConns),
		MinConns:        int32(d.Config.Database.MinConns),
		MaxConnLifetime: d.Config.Database.MaxConnLifetime,
		MaxConnIdleTime: d.Config.Database.MaxConnIdleTime,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		d.DB.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Debug("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	d.ImportRepo = importrepo.NewPostgresImportRepository(d.DB.Pool)
	d.BalanceRepo = balance.NewRepository(d.DB.Pool)
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = metrics.NewImportMetrics(d.Registry)

	// Command line paths are used as given
	files, err := storage.NewLocalStorage("")
	if err != nil {
		return fmt.Errorf("failed to init file storage: %w", err)
	}

	d.ImportService = importservice.NewImportService(d.ImportRepo, files, d.Logger).
		WithMetrics(d.Metrics).
		WithParserOptions(parser.Options{
			Delimiter:   d.Config.Import.Delimiter,
			HeaderLines: d.Config.Import.HeaderLines,
		})
	if d.Config.Import.Hints {
		d.ImportService.WithSimilarityHinter(categorization.NewHinter())
	}

	if d.BalanceRepo != nil {
		d.BalanceService = balance.NewService(d.BalanceRepo)
	}
	return nil
}

// initInbox sets up the storage source, processor and scheduler used by watch
func (d *Dependencies) initInbox(ctx context.Context) error {
	files, err := storage.New(ctx, d.Config.Import.StorageConfig())
	if err != nil {
		return fmt.Errorf("failed to init inbox storage: %w", err)
	}
	d.Inbox = files

	d.Processor = inbox.NewProcessor(
		files,
		d.ImportService.ForStorage(files),
		d.Logger,
		d.Config.Import.Concurrency,
	)
	d.Scheduler = cron.NewScheduler(d.Processor, d.Config.Import.Schedule, d.Config.Import.Timeout, d.Logger)

	d.Logger.Info("inbox initialized",
		slog.String("storage", string(d.Config.Import.Storage)),
		slog.String("schedule", d.Config.Import.Schedule),
	)
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		// Running sweeps are bounded by IMPORT_TIMEOUT
		<-d.Scheduler.Stop().Done()
	}
	if closer, ok := d.Inbox.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			d.Logger.Warn("failed to close inbox storage", "error", err)
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Debug("cleanup completed")
}
