package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmtrigo/riskmap/internal/adapters/importers"
	"github.com/jmtrigo/riskmap/internal/adapters/reporting"
	"github.com/jmtrigo/riskmap/internal/adapters/storage"
	webserver "github.com/jmtrigo/riskmap/internal/adapters/web/server"
	"github.com/jmtrigo/riskmap/internal/adapters/web/websocket"
	"github.com/jmtrigo/riskmap/internal/config"
	"github.com/jmtrigo/riskmap/internal/core/domain"
	"github.com/jmtrigo/riskmap/internal/core/services/aggregation"
	"github.com/jmtrigo/riskmap/internal/core/services/audit"
	"github.com/jmtrigo/riskmap/internal/core/services/auth"
	"github.com/jmtrigo/riskmap/internal/core/services/correlation"
	"github.com/jmtrigo/riskmap/internal/core/services/gaps"
	"github.com/jmtrigo/riskmap/internal/core/services/importing"
	"github.com/jmtrigo/riskmap/internal/core/services/normalization"
	"github.com/jmtrigo/riskmap/internal/core/services/synthesis"
	"github.com/jmtrigo/riskmap/internal/telemetry"
)

// Application wires storage, domain services and the web server together.
// It is the composition root: nothing below this package knows about the
// concrete adapter choices.
type Application struct {
	Config        *config.Config
	Storage       *storage.SQLiteAdapter
	AuthService   *auth.AuthService
	AuditService  *audit.AuditService
	Orchestrator  *synthesis.Orchestrator
	ImportService *importing.Service
	WebServer     *webserver.Server

	tracerShutdown func(context.Context) error
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{Config: cfg}

	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

func (app *Application) bootstrap() error {
	telemetry.InitMetrics()

	if app.Config.Tracing {
		shutdown, err := telemetry.InitTracer()
		if err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		app.tracerShutdown = shutdown
	}

	store, err := app.initStorage()
	if err != nil {
		return err
	}
	app.Storage = store

	app.AuditService = audit.NewAuditService(store)
	app.AuthService = auth.NewAuthService(store)

	if err := app.ensureAdmin(); err != nil {
		log.Printf("Warning: could not ensure admin user: %v", err)
	}

	normalizer, err := app.buildNormalizer()
	if err != nil {
		return err
	}

	wsManager := websocket.NewManager()

	app.Orchestrator = synthesis.NewOrchestrator(
		store,
		correlation.NewEngine(app.Config.CorrelationThreshold),
		normalizer,
		gaps.NewDetector(app.Config.MinCoverage),
		aggregation.NewAggregator(),
		synthesis.WithNotifier(wsManager),
	)

	app.ImportService = importing.NewService(store, app.Orchestrator, app.AuditService, slog.Default())
	app.ImportService.Register(importers.NewGenericJSONAdapter())
	app.ImportService.Register(importers.NewGenericCSVAdapter())
	app.ImportService.Register(importers.NewSTRIDEAdapter())

	app.WebServer = webserver.NewServer(
		app.Config.Addr,
		store,
		app.AuthService,
		app.AuditService,
		app.Orchestrator,
		app.ImportService,
		reporting.NewPDFExporter(),
		wsManager,
	)

	return nil
}

func (app *Application) initStorage() (*storage.SQLiteAdapter, error) {
	if app.Config.InMemory {
		// Same adapter, no file: schema and semantics stay identical.
		store, err := storage.NewSQLiteAdapter("file::memory:?cache=shared")
		if err != nil {
			return nil, fmt.Errorf("failed to init in-memory storage: %w", err)
		}
		return store, nil
	}

	if err := os.MkdirAll(filepath.Dir(app.Config.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	store, err := storage.NewSQLiteAdapter(app.Config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	return store, nil
}

func (app *Application) buildNormalizer() (*normalization.Normalizer, error) {
	normalizer := normalization.NewNormalizer()
	if app.Config.OrdinalAnchorsPath == "" {
		return normalizer, nil
	}

	overrides, err := normalization.LoadOrdinalOverrides(app.Config.OrdinalAnchorsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load ordinal anchors: %w", err)
	}
	return normalizer.WithOrdinalOverrides(overrides)
}

// ensureAdmin provisions the bootstrap admin account on first start.
func (app *Application) ensureAdmin() error {
	username := app.Config.AdminUser
	password := app.Config.AdminPassword
	if username == "" {
		username = "admin"
		password = "changeit"
	}

	if _, err := app.Storage.GetByUsername(context.Background(), username); err == nil {
		return nil
	}

	log.Printf("Provisioning admin user %q...", username)
	return app.AuthService.CreateUser(context.Background(), domain.User{
		Username: username,
		Role:     domain.RoleAdmin,
	}, password)
}

// Run starts the web server and blocks until the context is cancelled.
func (app *Application) Run(ctx context.Context) error {
	slog.Info("Starting riskmap", "addr", app.Config.Addr, "db", app.Config.DBPath)

	errChan := make(chan error, 1)
	go func() {
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Termination signal received")
	case err := <-errChan:
		app.cleanup()
		return err
	}

	return app.cleanup()
}

func (app *Application) cleanup() error {
	slog.Info("Cleaning up resources...")

	// Let in-flight synthesis runs finish writing their snapshots.
	app.Orchestrator.Wait()

	if app.tracerShutdown != nil {
		if err := app.tracerShutdown(context.Background()); err != nil {
			log.Printf("Tracer shutdown error: %v", err)
		}
	}

	return app.Storage.Close()
}
