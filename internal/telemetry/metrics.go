package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/payledger"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Import batch metrics
	ImportBatchesTotal     metric.Int64Counter
	ImportBatchErrorsTotal metric.Int64Counter
	ImportBatchesCancelled metric.Int64Counter
	ImportDuration         metric.Float64Histogram
	ActiveImports          metric.Int64UpDownCounter
	ImportFinalizeErrors   metric.Int64Counter

	// Row metrics
	ImportRowsTotal        metric.Int64Counter
	ImportRowRetries       metric.Int64Counter
	LedgerAppendsTotal     metric.Int64Counter
	IdentityConflictsTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Import batch metrics
	m.ImportBatchesTotal, _ = meter.Int64Counter(
		"payledger.imports.total",
		metric.WithDescription("Total number of import batches started"),
		metric.WithUnit("{batch}"),
	)

	m.ImportBatchErrorsTotal, _ = meter.Int64Counter(
		"payledger.imports.errors.total",
		metric.WithDescription("Total number of import batches that could not start"),
		metric.WithUnit("{error}"),
	)

	m.ImportBatchesCancelled, _ = meter.Int64Counter(
		"payledger.imports.cancelled.total",
		metric.WithDescription("Total number of import batches stopped early by cancellation"),
		metric.WithUnit("{batch}"),
	)

	m.ImportDuration, _ = meter.Float64Histogram(
		"payledger.imports.duration",
		metric.WithDescription("Duration of import batches"),
		metric.WithUnit("ms"),
	)

	m.ActiveImports, _ = meter.Int64UpDownCounter(
		"payledger.imports.active",
		metric.WithDescription("Number of import batches in progress"),
		metric.WithUnit("{batch}"),
	)

	m.ImportFinalizeErrors, _ = meter.Int64Counter(
		"payledger.imports.finalize_errors.total",
		metric.WithDescription("Total number of import sessions whose counters could not be saved"),
		metric.WithUnit("{error}"),
	)

	// Row metrics
	m.ImportRowsTotal, _ = meter.Int64Counter(
		"payledger.imports.rows.total",
		metric.WithDescription("Total number of import rows processed, by outcome"),
		metric.WithUnit("{row}"),
	)

	m.ImportRowRetries, _ = meter.Int64Counter(
		"payledger.imports.rows.retries.total",
		metric.WithDescription("Total number of import rows retried after a conflict or storage error"),
		metric.WithUnit("{retry}"),
	)

	m.LedgerAppendsTotal, _ = meter.Int64Counter(
		"payledger.ledger.appends.total",
		metric.WithDescription("Total number of salary history records appended"),
		metric.WithUnit("{record}"),
	)

	m.IdentityConflictsTotal, _ = meter.Int64Counter(
		"payledger.entries.identity_conflicts.total",
		metric.WithDescription("Total number of identity races lost to a concurrent import"),
		metric.WithUnit("{conflict}"),
	)

	return m
}
