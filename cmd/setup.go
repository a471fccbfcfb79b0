package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/mtx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the bundled configuration template to path, or to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	if path == "" {
		path = r.configPath
	}
	if path == "" {
		path = "config.toml"
	}

	if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
		return fmt.Errorf("%w: %s already exists (use --force to overwrite)", shared.ErrInvalidArgument, path)
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Configuration written to %s\n", path)
	r.writePlain("\nNext steps:\n")
	r.writePlain("1. Set api.access_token (or MTX_ACCESS_TOKEN) and storage.api_key (or MTX_STORAGE_KEY)\n")
	r.writePlain("2. Run 'mtx setup database' to create the upload history\n")
	return nil
}

// SetupDatabase initializes the history database and runs migrations.
//
// With --status it lists applied migrations; with --rollback it reverts the latest one.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	switch {
	case cmd.Bool("rollback"):
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		return r.writePlain("✓ Rolled back latest migration\n")

	case cmd.Bool("status"):
		applied, err := shared.AppliedMigrations(db)
		if err != nil {
			return fmt.Errorf("failed to read migrations: %w", err)
		}
		if len(applied) == 0 {
			return r.writePlain("No migrations applied\n")
		}
		for _, m := range applied {
			r.writePlain("%04d  applied %s\n", m.Version, m.AppliedAt.Local().Format(time.DateTime))
		}
		return nil
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
}
