package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/payledger/internal/auth"
	"github.com/wolfeidau/payledger/internal/logger"
	"github.com/wolfeidau/payledger/internal/roster"
	"github.com/wolfeidau/payledger/internal/server"
	"github.com/wolfeidau/payledger/internal/telemetry"
)

type ServerCmd struct {
	// Server configuration
	Listen          string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"PAYLEDGER_LISTEN"`
	Cert            string `help:"path to TLS cert file, serves plain HTTP when empty" default:"" env:"PAYLEDGER_TLS_CERT"`
	Key             string `help:"path to TLS key file" default:"" env:"PAYLEDGER_TLS_KEY"`
	MaxRequestBytes int64  `help:"largest accepted API request body in bytes" default:"26214400" env:"PAYLEDGER_MAX_REQUEST_BYTES"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:3000" env:"PAYLEDGER_CORS_ORIGINS"`

	Auth AuthFlags `embed:"" prefix:"auth-"`

	// Development and operational modes
	AllowReset       bool    `help:"expose DELETE /api/dev/reset (development only)" default:"false" env:"PAYLEDGER_ALLOW_RESET"`
	Tracing          bool    `help:"enable tracing" default:"false" env:"PAYLEDGER_TRACING"`
	TraceSampleRatio float64 `help:"fraction of requests traced" default:"1" env:"PAYLEDGER_TRACE_SAMPLE_RATIO"`

	Store  StoreFlags  `embed:""`
	Import ImportFlags `embed:"" prefix:"import-"`
}

// AuthFlags configures bearer token verification.
type AuthFlags struct {
	PublicKeyFile string `help:"PEM file with the ECDSA P-256 key that verifies bearer tokens" env:"PAYLEDGER_AUTH_PUBLIC_KEY_FILE" type:"existingfile"`

	// No auth mode serves every request as a fixed development tenant
	NoAuth     bool   `help:"disable authentication for API endpoints (development only)" default:"false" env:"PAYLEDGER_NO_AUTH"`
	DevOrg     string `help:"organization id used with --auth-no-auth" default:"01890000-0000-7000-8000-000000000001" env:"PAYLEDGER_DEV_ORG_ID"`
	DevUser    string `help:"user id used with --auth-no-auth" default:"01890000-0000-7000-8000-000000000002" env:"PAYLEDGER_DEV_USER_ID"`
	DevOrgName string `help:"organization name created for the development tenant" default:"Development" env:"PAYLEDGER_DEV_ORG_NAME"`
}

func (f *AuthFlags) Validate() error {
	if !f.NoAuth && f.PublicKeyFile == "" {
		return errors.New("a token public key is required (--auth-public-key-file) unless --auth-no-auth is set")
	}
	return nil
}

func (f *AuthFlags) devTenant() (auth.Tenant, error) {
	tenant := TenantFlags{Org: f.DevOrg, User: f.DevUser}
	return tenant.tenant()
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
			ServiceName: "payledger-server",
			Version:     globals.Version,
			SampleRatio: c.TraceSampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	stores, closeStores, err := c.Store.open(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	workbooks, err := c.Import.workbookImporter(stores)
	if err != nil {
		return fmt.Errorf("failed to configure imports: %w", err)
	}

	rosterService := roster.NewService(stores)

	authn, err := c.authMiddleware(ctx, log, rosterService)
	if err != nil {
		return err
	}

	srv := server.NewServer(rosterService, workbooks).WithMaxRequestBytes(c.MaxRequestBytes)
	if c.AllowReset {
		log.Warn().Msg("Administrative reset endpoint is enabled (--allow-reset). This should only be used in development!")
		srv = srv.WithReset(stores.Resetter)
	}

	handler := srv.Handler(log, authn, c.CORSOrigins)
	if c.Tracing {
		handler = telemetry.InstrumentHandler(handler, "payledger")
	}

	httpServer := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", c.Listen).Bool("auth", !c.Auth.NoAuth).Bool("tls", c.Cert != "").Msg("Starting HTTP server")
		if c.Cert != "" || c.Key != "" {
			errCh <- httpServer.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

func (c *ServerCmd) authMiddleware(ctx context.Context, log zerolog.Logger, rosterService *roster.Service) (func(http.Handler) http.Handler, error) {
	if err := c.Auth.Validate(); err != nil {
		return nil, err
	}

	if c.Auth.NoAuth {
		tenant, err := c.Auth.devTenant()
		if err != nil {
			return nil, err
		}

		if _, created, err := rosterService.EnsureOrganization(ctx, tenant, c.Auth.DevOrgName); err != nil {
			return nil, fmt.Errorf("failed to provision development organization: %w", err)
		} else if created {
			log.Info().Str("org_id", tenant.OrgID.String()).Msg("Provisioned development organization")
		}

		log.Warn().
			Str("org_id", tenant.OrgID.String()).
			Str("user_id", tenant.UserID.String()).
			Msg("Authentication is disabled (--auth-no-auth). This should only be used in development!")

		return auth.StaticMiddleware(tenant), nil
	}

	publicKey, err := os.ReadFile(c.Auth.PublicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read token public key: %w", err)
	}

	verifier, err := auth.NewVerifier(string(publicKey))
	if err != nil {
		return nil, fmt.Errorf("failed to load token public key: %w", err)
	}

	return verifier.Middleware(), nil
}
