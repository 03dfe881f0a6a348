package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/payledger/internal/auth"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/reconcile"
	"github.com/wolfeidau/payledger/internal/store"
	"github.com/wolfeidau/payledger/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const tracerName = "github.com/wolfeidau/payledger/internal/importer"

var ErrInvalidPlatform = errors.New("import platform is required")

// Summary is the result of one import batch.
type Summary struct {
	SessionID uuid.UUID           `json:"session_id"`
	Added     int                 `json:"added"`
	Updated   int                 `json:"updated"`
	Rejected  int                 `json:"rejected"`
	Appended  int                 `json:"appended"`
	Failures  []models.RowFailure `json:"failures"`
	Cancelled bool                `json:"cancelled"`
}

// Coordinator runs import batches: one session per batch, rows processed in
// input order, each row in its own transaction.
type Coordinator struct {
	tx         store.Transactor
	resolver   *reconcile.Resolver
	reconciler *reconcile.Reconciler
	ledger     *reconcile.Ledger
	tracker    *SessionTracker
	cfg        Config
	now        func() time.Time
}

// NewCoordinator wires a coordinator over one store set.
func NewCoordinator(stores *store.Stores, cfg Config) (*Coordinator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid importer config: %w", err)
	}

	return &Coordinator{
		tx:         stores.Tx,
		resolver:   reconcile.NewResolver(stores.Entries),
		reconciler: reconcile.NewReconciler(stores.Entries),
		ledger:     reconcile.NewLedger(stores.Ledger),
		tracker:    NewSessionTracker(stores.ImportSessions),
		cfg:        cfg,
		now:        time.Now,
	}, nil
}

// RunImport imports rows for the tenant. A session is created before any row
// runs; if that fails the error wraps ErrSessionCreation and no summary is
// returned. Otherwise a summary is always returned, row failures are reported
// in it and never abort the batch.
//
// Cancelling ctx stops the batch before the next row. Rows already processed
// stay committed and the summary is marked Cancelled.
func (c *Coordinator) RunImport(ctx context.Context, tenant auth.Tenant, platform string, source models.SourceFile, rows []reconcile.Row) (*Summary, error) {
	metrics := telemetry.GetMetrics()

	platform = models.NormalizePlatform(platform)
	if platform == "" {
		return nil, ErrInvalidPlatform
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "importer.RunImport")
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("platform", platform))

	session, err := c.tracker.Begin(ctx, tenant, platform, source)
	if err != nil {
		metrics.ImportBatchErrorsTotal.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, "session creation failed")
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().
		Str("session_id", session.SessionID.String()).
		Str("org_id", tenant.OrgID.String()).
		Str("platform", platform).
		Logger()
	ctx = logger.WithContext(ctx)

	span.SetAttributes(
		attribute.String("session_id", session.SessionID.String()),
		attribute.String("platform", platform),
		attribute.Int("rows", len(rows)),
	)

	metrics.ImportBatchesTotal.Add(ctx, 1, attrs)
	metrics.ActiveImports.Add(ctx, 1, attrs)
	defer metrics.ActiveImports.Add(context.WithoutCancel(ctx), -1, attrs)

	start := c.now()
	today := models.DateOnly(start)

	logger.Info().Int("rows", len(rows)).Str("source", source.OriginalName).Msg("Import started")

	cancelled := false
	for i, row := range rows {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		line := row.Line
		if line == 0 {
			line = i + 1
		}

		result := c.processRow(ctx, tenant, session.SessionID, platform, today, row)
		if result.Err != nil && ctx.Err() != nil && isContextError(result.Err) {
			// the row's transaction rolled back, it was never processed
			cancelled = true
			break
		}

		c.tracker.Record(session, line, result)
		c.recordRowMetrics(ctx, platform, result)

		if result.Err != nil {
			evt := logger.Warn()
			if reconcile.KindOf(result.Err) == reconcile.KindTenantMismatch {
				evt = logger.Error()
			}
			evt.Err(result.Err).Int("row", line).Msg("Import row rejected")
		}
	}

	if cancelled {
		metrics.ImportBatchesCancelled.Add(context.WithoutCancel(ctx), 1, attrs)
		logger.Warn().Msg("Import cancelled, remaining rows skipped")
	}

	if err := c.tracker.Finalize(ctx, session, cancelled); err != nil {
		// the rows are committed, report them even though the counters were not saved
		metrics.ImportFinalizeErrors.Add(context.WithoutCancel(ctx), 1, attrs)
		logger.Error().Err(err).Msg("Failed to finalize import session")
	}

	metrics.ImportDuration.Record(context.WithoutCancel(ctx), float64(c.now().Sub(start).Milliseconds()), attrs)

	summary := &Summary{
		SessionID: session.SessionID,
		Added:     session.Added,
		Updated:   session.Updated,
		Rejected:  session.Rejected,
		Appended:  session.Appended,
		Failures:  session.Failures,
		Cancelled: cancelled,
	}

	logger.Info().
		Int("added", summary.Added).
		Int("updated", summary.Updated).
		Int("rejected", summary.Rejected).
		Int("appended", summary.Appended).
		Bool("cancelled", summary.Cancelled).
		Dur("duration", c.now().Sub(start)).
		Msg("Import finished")

	return summary, nil
}

// processRow validates a row then resolves, reconciles and appends inside one
// transaction. Identity conflicts and storage errors re-run the whole
// transaction, so a lost create race re-resolves to the winning entry.
func (c *Coordinator) processRow(ctx context.Context, tenant auth.Tenant, sessionID uuid.UUID, platform string, today time.Time, row reconcile.Row) RowResult {
	rec, err := row.Parse(platform, today)
	if err != nil {
		return RowResult{Err: err}
	}
	rec.Change.ImportSessionID = &sessionID

	attempt := 0
	result, err := backoff.Retry(ctx, func() (RowResult, error) {
		attempt++
		if attempt > 1 {
			telemetry.GetMetrics().ImportRowRetries.Add(ctx, 1, metric.WithAttributes(attribute.String("platform", platform)))
		}

		result, err := c.applyRow(ctx, tenant, sessionID, rec)
		if err == nil {
			return result, nil
		}

		if isContextError(err) {
			return RowResult{}, backoff.Permanent(err)
		}

		var rowErr *reconcile.RowError
		if !errors.As(err, &rowErr) {
			// begin or commit failures surface unwrapped from the transactor
			rowErr = &reconcile.RowError{Kind: reconcile.KindStorage, Err: err}
			err = rowErr
		}

		if rowErr.Kind == reconcile.KindIdentityConflict {
			telemetry.GetMetrics().IdentityConflictsTotal.Add(ctx, 1)
		}

		if !rowErr.Retryable() {
			return RowResult{}, backoff.Permanent(err)
		}

		zerolog.Ctx(ctx).Debug().Err(err).Int("attempt", attempt).Msg("Import row failed, retrying")

		return RowResult{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.RetryDelay)),
		backoff.WithMaxTries(c.cfg.MaxRowAttempts),
	)
	if err != nil {
		return RowResult{Err: err}
	}

	return result
}

func (c *Coordinator) applyRow(ctx context.Context, tenant auth.Tenant, sessionID uuid.UUID, rec *reconcile.Record) (RowResult, error) {
	var result RowResult

	err := c.tx.InTx(ctx, func(ctx context.Context) error {
		matched, _, err := c.resolver.Resolve(ctx, tenant, rec)
		if err != nil {
			return err
		}

		entry, created, err := c.reconciler.Reconcile(ctx, tenant, sessionID, rec, matched)
		if err != nil {
			return err
		}

		record, err := c.ledger.AppendIfChanged(ctx, tenant, entry.EntryID, rec.Change)
		if err != nil {
			return err
		}

		result = RowResult{
			EntryID:  entry.EntryID,
			Created:  created,
			Appended: record != nil,
		}
		return nil
	})

	return result, err
}

func (c *Coordinator) recordRowMetrics(ctx context.Context, platform string, result RowResult) {
	metrics := telemetry.GetMetrics()

	outcome := "updated"
	switch {
	case result.Err != nil:
		outcome = "rejected"
	case result.Created:
		outcome = "added"
	}

	metrics.ImportRowsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("platform", platform),
		attribute.String("outcome", outcome),
	))

	if result.Appended {
		metrics.LedgerAppendsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provenance", string(models.ProvenanceImport)),
		))
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
