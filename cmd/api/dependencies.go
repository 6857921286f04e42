package api

import (
	"context"
	"fmt"
	"log/slog"

	importhandler "github.com/FACorreiaa/echo-reconcile/internal/domain/import/handler"
	importrepo "github.com/FACorreiaa/echo-reconcile/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/echo-reconcile/internal/domain/import/service"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/embedding"
	reconcilehandler "github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/handler"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/matcher"
	reconcilerepo "github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/repository"
	reconcileservice "github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/service"

	"github.com/FACorreiaa/echo-reconcile/pkg/config"
	"github.com/FACorreiaa/echo-reconcile/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB // nil when no database is configured
	Logger *slog.Logger

	// Repositories
	ImportRepo    importrepo.ImportRepository
	ReconcileRepo reconcilerepo.ReconcileRepository

	// Embeddings
	Embedder embedding.Embedder
	Provider embedding.Provider

	// Services
	ImportService    *importservice.ImportService
	ReconcileService *reconcileservice.ReconcileService

	// Handlers
	ImportHandler    *importhandler.ImportHandler
	ReconcileHandler *reconcilehandler.ReconcileHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initEmbedding(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init embedding provider: %w", err)
	}

	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase connects and migrates when a database URL is configured.
func (d *Dependencies) initDatabase() error {
	if !d.Config.Database.Enabled() {
		d.Logger.Warn("no database configured; imports and reconciliation runs will not be persisted")
		return nil
	}

	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        d.Config.Database.MaxConns,
		MinConns:        d.Config.Database.MinConns,
		MaxConnLifetime: d.Config.Database.MaxConnLifetime,
		MaxConnIdleTime: d.Config.Database.MaxConnIdleTime,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	if d.DB == nil {
		return nil
	}
	d.ImportRepo = importrepo.NewPostgresImportRepository(d.DB.Pool)
	d.ReconcileRepo = reconcilerepo.NewPostgresReconcileRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initEmbedding builds the Gemini-backed pipeline. A missing API key leaves
// the provider nil; reconciliation requests then fail with 503.
func (d *Dependencies) initEmbedding(ctx context.Context) error {
	cfg := d.Config.Embedding
	if cfg.APIKey == "" {
		d.Logger.Warn("GEMINI_API_KEY missing; reconciliation is disabled")
		return nil
	}

	embedder, err := embedding.NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		return err
	}
	pipeline, err := embedding.NewPipeline(embedder, cfg.Pipeline(), d.Logger)
	if err != nil {
		return err
	}

	d.Embedder = embedder
	d.Provider = pipeline
	d.Logger.Info("embedding provider ready", "model", embedder.Model(), "max_in_flight", cfg.MaxInFlight)
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	strategy, err := matcher.New(d.Config.Matching.Strategy, d.Config.Matching.Tolerances())
	if err != nil {
		return err
	}

	d.ImportService = importservice.NewImportService(d.ImportRepo, d.Logger)
	d.ReconcileService = reconcileservice.NewReconcileService(d.Provider, strategy, d.ReconcileRepo, d.Logger)

	d.Logger.Info("services initialized", "strategy", strategy.Name())
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger)
	d.ReconcileHandler = reconcilehandler.NewReconcileHandler(d.ReconcileService, d.ImportService, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
