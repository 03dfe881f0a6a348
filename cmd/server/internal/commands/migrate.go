package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/payledger/internal/logger"
	postgresstore "github.com/wolfeidau/payledger/internal/store/postgres"
)

// MigrateCmd applies the embedded schema migrations to PostgreSQL.
type MigrateCmd struct {
	DryRun bool `help:"list pending migrations without applying them"`

	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (c *MigrateCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	if err := c.PostgresStore.Validate(); err != nil {
		return err
	}

	pool, err := postgresstore.NewPool(ctx, c.PostgresStore.poolConfig())
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	pending, err := postgresstore.PendingMigrations(ctx, pool)
	if err != nil {
		return err
	}

	for _, name := range pending {
		log.Info().Str("migration", name).Bool("dry_run", c.DryRun).Msg("Pending migration")
	}

	if c.DryRun || len(pending) == 0 {
		log.Info().Int("pending", len(pending)).Msg("Nothing applied")
		return nil
	}

	if err := postgresstore.RunMigrations(ctx, pool); err != nil {
		return err
	}

	log.Info().Int("applied", len(pending)).Msg("Database migrations completed")
	return nil
}
