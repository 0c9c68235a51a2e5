// Command migrate is a minimal driver over the migration engine, wiring
// config, logging, and one of the dialect adapters together. It exists to
// exercise the engine end-to-end, not to be a polished CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dbschema/migrator/internal/config"
	"github.com/dbschema/migrator/internal/logging"
	"github.com/dbschema/migrator/internal/migrator"
)

// buildRegistry is where a real deployment would register its Migrations.
// This binary ships empty; callers import this package's types and build
// their own registry, typically from an init() alongside their migration
// definitions.
func buildRegistry() *migrator.Registry {
	return migrator.NewRegistry()
}

func main() {
	var (
		envFile = flag.String("env-file", "", "optional .env file to load")
		app     = flag.String("app", "", "target app for apply-to/revert-to")
		name    = flag.String("name", "", "target migration name (requires -app)")
		action  = flag.String("action", "list", "one of: list, apply, revert, apply-to, revert-to")
	)
	flag.Parse()

	if err := run(*envFile, *action, *app, *name); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(envFile, action, app, name string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	var adapter migrator.ConnAdapter
	if cfg.PostgresURL != "" {
		pgAdapter, pool, err := cfg.ConnectPostgres(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()
		adapter = pgAdapter
	} else {
		sqliteAdapter, err := cfg.ConnectSQLite()
		if err != nil {
			return err
		}
		defer sqliteAdapter.Close() //nolint:errcheck
		adapter = sqliteAdapter
	}

	engine := migrator.NewEngine(buildRegistry(), adapter, migrator.WithLogger(logger))

	switch action {
	case "list":
		plan, err := engine.Plan(ctx, migrator.PlanRequest{Mode: migrator.List})
		if err != nil {
			return err
		}
		for _, id := range plan {
			fmt.Println(id)
		}
		return nil
	case "apply":
		return engine.ApplyAll(ctx)
	case "revert":
		return engine.RevertAll(ctx)
	case "apply-to":
		return engine.ApplyTo(ctx, app, name)
	case "revert-to":
		return engine.RevertTo(ctx, app, name)
	default:
		logger.Error("unknown action", zap.String("action", action))
		return fmt.Errorf("unknown action %q", action)
	}
}
