package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payledger/internal/auth"
	"github.com/wolfeidau/payledger/internal/importer"
	"github.com/wolfeidau/payledger/internal/spreadsheet"
	"github.com/wolfeidau/payledger/internal/store"
	memorystore "github.com/wolfeidau/payledger/internal/store/memory"
	postgresstore "github.com/wolfeidau/payledger/internal/store/postgres"
	"github.com/wolfeidau/payledger/internal/uploads"
)

type Globals struct {
	Debug   bool
	Version string
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Store Configuration
	QueryTimeout int32 `help:"statement timeout in seconds for each transaction" default:"10" env:"PAYLEDGER_POSTGRES_QUERY_TIMEOUT"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"PAYLEDGER_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (s *PostgresStoreFlags) poolConfig() *postgresstore.PoolConfig {
	return &postgresstore.PoolConfig{
		ConnString:      s.ConnString,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: s.MaxConnLifetime,
		MaxConnIdleTime: s.MaxConnIdleTime,
	}
}

// StoreFlags selects and configures the storage backend.
type StoreFlags struct {
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"PAYLEDGER_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

// open builds the store set. The returned close func releases the backend.
func (f *StoreFlags) open(ctx context.Context) (*store.Stores, func(), error) {
	if f.StoreType != "postgres" {
		stores, _ := memorystore.NewStores()
		log.Info().Msg("Using in-memory stores")
		return stores, func() {}, nil
	}

	if err := f.PostgresStore.Validate(); err != nil {
		return nil, nil, err
	}

	pool, err := postgresstore.NewPool(ctx, f.PostgresStore.poolConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if f.PostgresStore.AutoMigrate {
		if err := postgresstore.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("Database migrations completed")
	}

	stores, err := postgresstore.NewStores(pool, &postgresstore.StoreConfig{QueryTimeoutSeconds: f.PostgresStore.QueryTimeout})
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to create stores: %w", err)
	}

	log.Info().Msg("Using PostgreSQL stores with shared connection pool")

	return stores, pool.Close, nil
}

// ImportFlags configures the import pipeline.
type ImportFlags struct {
	UploadsDir     string        `help:"directory uploaded workbooks are kept in" default:"./uploads" env:"PAYLEDGER_UPLOADS_DIR" type:"path"`
	MaxUploadBytes int64         `help:"largest accepted upload in bytes" default:"20971520" env:"PAYLEDGER_MAX_UPLOAD_BYTES"`
	Profiles       string        `help:"YAML file with per-platform column profiles" env:"PAYLEDGER_COLUMN_PROFILES" type:"existingfile"`
	RowAttempts    uint          `help:"attempts per row before a conflict or storage error rejects it" default:"2" env:"PAYLEDGER_IMPORT_ROW_ATTEMPTS"`
	RetryDelay     time.Duration `help:"pause before a row is retried" default:"25ms" env:"PAYLEDGER_IMPORT_RETRY_DELAY"`
}

func (f *ImportFlags) workbookImporter(stores *store.Stores) (*importer.WorkbookImporter, error) {
	coordinator, err := importer.NewCoordinator(stores, importer.Config{
		MaxRowAttempts: f.RowAttempts,
		RetryDelay:     f.RetryDelay,
	})
	if err != nil {
		return nil, err
	}

	uploadStore, err := uploads.NewStore(f.UploadsDir, f.MaxUploadBytes)
	if err != nil {
		return nil, err
	}

	profiles := spreadsheet.DefaultProfiles()
	if f.Profiles != "" {
		if profiles, err = spreadsheet.LoadProfiles(f.Profiles); err != nil {
			return nil, err
		}
		log.Info().Str("path", f.Profiles).Msg("Loaded column profiles")
	}

	return importer.NewWorkbookImporter(uploadStore, profiles, coordinator), nil
}

// TenantFlags names the tenant a command acts for.
type TenantFlags struct {
	Org  string `help:"organization id" required:"" env:"PAYLEDGER_ORG_ID"`
	User string `help:"user id acting for the organization" required:"" env:"PAYLEDGER_USER_ID"`
}

func (f *TenantFlags) tenant() (auth.Tenant, error) {
	orgID, err := uuid.Parse(f.Org)
	if err != nil {
		return auth.Tenant{}, fmt.Errorf("invalid organization id: %w", err)
	}
	userID, err := uuid.Parse(f.User)
	if err != nil {
		return auth.Tenant{}, fmt.Errorf("invalid user id: %w", err)
	}
	return auth.Tenant{OrgID: orgID, UserID: userID}, nil
}
