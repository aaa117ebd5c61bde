package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/jonathan/bond-onboarding/internal/config"
	"github.com/jonathan/bond-onboarding/internal/db"
	"github.com/jonathan/bond-onboarding/internal/db/sqlite"
	"github.com/jonathan/bond-onboarding/internal/observability"
	"github.com/jonathan/bond-onboarding/internal/progress"
	"github.com/jonathan/bond-onboarding/internal/workflow"
	"github.com/jonathan/bond-onboarding/internal/workflow/steps"
)

// connectTimeout bounds the initial PostgreSQL connection.
const connectTimeout = 10 * time.Second

// loadSettings resolves configuration with precedence flags > config file >
// environment > defaults.
func loadSettings() (config.Config, error) {
	env, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}

	cfg := &config.Config{}
	if configPath != "" {
		if cfg, err = config.LoadConfig(configPath); err != nil {
			return config.Config{}, err
		}
	}

	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if sqlitePath != "" {
		cfg.SQLitePath = sqlitePath
	}
	if registryArg != "" {
		cfg.RegistryPath = registryArg
	}

	if verbose {
		cfg.Verbose = true
	}

	merged := cfg.MergeWithDefaults(env)
	if err := merged.Validate(); err != nil {
		return config.Config{}, err
	}
	return merged, nil
}

// loadRegistry returns the configured registry, or the embedded one.
func loadRegistry(cfg config.Config) (*steps.Registry, error) {
	if cfg.RegistryPath == "" {
		return steps.Default(), nil
	}
	return steps.Load(cfg.RegistryPath)
}

// migrator is implemented by both stores.
type migrator interface {
	Migrate(ctx context.Context) error
}

// openStore opens PostgreSQL when a database URL is configured and SQLite
// otherwise. The returned func releases the store.
func openStore(ctx context.Context, cfg config.Config) (workflow.Store, migrator, func(), error) {
	if cfg.UsePostgres() {
		ctx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.Verbose {
			log.Printf("[store] using PostgreSQL")
		}
		return database, database, database.Close, nil
	}

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Verbose {
		log.Printf("[store] using SQLite at %s", cfg.SQLitePath)
	}
	return store, store, func() { _ = store.Close() }, nil
}

// openService wires settings, store and registry into a workflow service.
func openService(ctx context.Context) (*workflow.Service, config.Config, func(), error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, cfg, nil, err
	}
	registry, err := loadRegistry(cfg)
	if err != nil {
		return nil, cfg, nil, err
	}
	store, _, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, cfg, nil, err
	}

	opts := []workflow.Option{
		workflow.WithTracker(progress.NewTracker(progress.WithClearCompletedAtOnRevert(cfg.ClearCompletedAtOnRevert))),
	}
	release := closeStore
	if cfg.Verbose {
		tp := observability.NewTracerProvider(os.Stderr)
		otel.SetTracerProvider(tp)
		opts = append(opts, workflow.WithTracer(tp.Tracer("bond_agent")))
		release = func() {
			_ = tp.Shutdown(context.Background())
			closeStore()
		}
	}

	return workflow.NewService(store, registry, opts...), cfg, release, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
