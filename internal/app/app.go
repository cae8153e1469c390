// Package app wires the intake gateway's components together.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"duck-intake/internal/api"
	"duck-intake/internal/columnar"
	"duck-intake/internal/config"
	"duck-intake/internal/credential"
	"duck-intake/internal/db/repository"
	"duck-intake/internal/intake"
	"duck-intake/internal/middleware"
	"duck-intake/internal/writer"
)

// Deps holds the external dependencies that main() must provide: database
// handles, config and the logger.
type Deps struct {
	Cfg     *config.Config
	DuckDB  *sql.DB
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
	// OnResult, when set, observes every intake task result.
	OnResult func(intake.Result)
}

// App holds the fully wired gateway.
type App struct {
	Router      http.Handler
	Supervisor  *intake.Supervisor
	Credentials *credential.Service
	Registry    *credential.Registry
}

// New loads credentials and wires the intake pipeline and router. ctx bounds
// background work owned by the router.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// === Credentials ===
	registry := credential.NewRegistry()
	credRepo := repository.NewCredentialRepo(deps.WriteDB, deps.ReadDB)
	credSvc := credential.NewService(credRepo, registry, logger.With("component", "credentials"))
	if cfg.CredentialsFile != "" {
		n, err := credSvc.Seed(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("seed credentials: %w", err)
		}
		logger.Info("credentials seeded", "file", cfg.CredentialsFile, "grants", n)
	}
	if err := credSvc.Load(ctx); err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if registry.Len() == 0 {
		logger.Warn("no credentials provisioned, every intake request will be denied")
	}
	gate := credential.NewGate(registry, cfg.AuthScheme, logger.With("component", "auth"))

	// === Intake pipeline ===
	builder := columnar.New(columnar.Options{
		TimestampColumns: cfg.TimestampColumns,
		MismatchPolicy:   cfg.MismatchPolicy,
	})
	batchWriter := writer.New(writer.NewDuckDBPool(deps.DuckDB), logger.With("component", "writer"))
	supervisor := intake.NewSupervisor(builder, batchWriter, intake.Options{
		TaskTimeout: cfg.TaskTimeout,
		MaxInFlight: cfg.MaxInFlight,
		OnResult:    deps.OnResult,
	}, logger.With("component", "intake"))

	// === HTTP ===
	router := api.NewRouter(ctx, api.RouterConfig{
		Handler:            api.NewHandler(supervisor, cfg.MaxBodyBytes, logger.With("component", "api")),
		Gate:               gate,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit: &middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
	})

	return &App{
		Router:      router,
		Supervisor:  supervisor,
		Credentials: credSvc,
		Registry:    registry,
	}, nil
}

// Shutdown stops intake and waits for in-flight tasks until ctx ends.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Supervisor.Shutdown(ctx)
}
