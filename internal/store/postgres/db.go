package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payledger/internal/store"
)

var (
	_ store.Transactor = (*DB)(nil)
	_ store.Resetter   = (*DB)(nil)
)

type txKey struct{}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps the shared connection pool and hands each store either the pool or
// the transaction carried by the context.
type DB struct {
	pool *pgxpool.Pool
	cfg  StoreConfig
}

// NewDB wraps a connection pool. A nil cfg uses the defaults.
func NewDB(pool *pgxpool.Pool, cfg *StoreConfig) (*DB, error) {
	var c StoreConfig
	if cfg != nil {
		c = *cfg
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	return &DB{pool: pool, cfg: c}, nil
}

// NewStores builds the full store set sharing one connection pool.
func NewStores(pool *pgxpool.Pool, cfg *StoreConfig) (*store.Stores, error) {
	db, err := NewDB(pool, cfg)
	if err != nil {
		return nil, err
	}
	return &store.Stores{
		Organizations:  NewOrganizationStore(db),
		Entries:        NewEntryStore(db),
		Ledger:         NewLedgerStore(db),
		ImportSessions: NewImportSessionStore(db),
		Tx:             db,
		Resetter:       db,
	}, nil
}

// conn returns the transaction in ctx, or the pool when there is none.
func (db *DB) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok && tx != nil {
		return tx
	}
	return db.pool
}

// InTx runs fn in a READ COMMITTED transaction with the configured statement
// timeout. A nested call joins the outer transaction.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok && tx != nil {
		return fn(ctx)
	}

	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	if db.cfg.QueryTimeoutSeconds > 0 {
		timeout := fmt.Sprintf("SET LOCAL statement_timeout = %d", db.cfg.QueryTimeoutSeconds*1000)
		if _, err := tx.Exec(ctx, timeout); err != nil {
			return fmt.Errorf("failed to set statement timeout: %w", mapPostgresError(err))
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapPostgresError(err))
	}

	return nil
}

// Reset truncates every table. TRUNCATE skips the append-only trigger on
// salary_history, which only guards row level UPDATE and DELETE.
func (db *DB) Reset(ctx context.Context) error {
	_, err := db.conn(ctx).Exec(ctx, `
		TRUNCATE salary_history, entries, import_sessions, organizations RESTART IDENTITY
	`)
	if err != nil {
		return fmt.Errorf("failed to reset database: %w", mapPostgresError(err))
	}

	log.Warn().Msg("Database reset: all organizations, entries, ledger records and import sessions removed")

	return nil
}
