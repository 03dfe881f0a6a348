package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
)

var _ store.LedgerStore = (*LedgerStore)(nil)

// Money columns are read back as text so NUMERIC values round-trip exactly
// through decimal.Decimal.
const ledgerColumns = `
	record_id, sequence, entry_id, org_id,
	amount::text, net::text, tips::text, fee::text, adjustments::text, hours::text,
	as_of_date, provenance, import_session_id, created_at`

// LedgerStore implements store.LedgerStore using PostgreSQL.
// UPDATE and DELETE on salary_history are rejected by a trigger.
type LedgerStore struct {
	db *DB
}

// NewLedgerStore creates a new PostgreSQL-backed salary history ledger.
func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Latest returns the newest record for an entry.
func (s *LedgerStore) Latest(ctx context.Context, orgID, entryID uuid.UUID) (*models.SalaryHistory, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM salary_history
		WHERE org_id = $1 AND entry_id = $2
		ORDER BY as_of_date DESC, sequence DESC
		LIMIT 1
	`

	return s.getOne(ctx, query, orgID, entryID)
}

// AsOf returns the latest record dated on or before date.
func (s *LedgerStore) AsOf(ctx context.Context, orgID, entryID uuid.UUID, date time.Time) (*models.SalaryHistory, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM salary_history
		WHERE org_id = $1 AND entry_id = $2 AND as_of_date <= $3
		ORDER BY as_of_date DESC, sequence DESC
		LIMIT 1
	`

	return s.getOne(ctx, query, orgID, entryID, models.DateOnly(date))
}

// Append inserts a record and fills in its Sequence and CreatedAt.
func (s *LedgerStore) Append(ctx context.Context, record *models.SalaryHistory) error {
	query := `
		INSERT INTO salary_history (
			record_id, entry_id, org_id,
			amount, net, tips, fee, adjustments, hours,
			as_of_date, provenance, import_session_id
		)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10, $11, $12)
		RETURNING sequence, created_at
	`

	var hours *string
	if record.Hours != nil {
		h := record.Hours.String()
		hours = &h
	}

	err := s.db.conn(ctx).QueryRow(ctx, query,
		record.RecordID,
		record.EntryID,
		record.OrgID,
		record.Amount.String(),
		record.Net.String(),
		record.Tips.String(),
		record.Fee.String(),
		record.Adjustments.String(),
		hours,
		models.DateOnly(record.AsOfDate),
		string(record.Provenance),
		record.ImportSessionID,
	).Scan(&record.Sequence, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append salary history: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("record_id", record.RecordID.String()).
		Str("entry_id", record.EntryID.String()).
		Str("amount", record.Amount.String()).
		Int64("sequence", record.Sequence).
		Msg("Appended salary history")

	return nil
}

// ListByEntry returns an entry's records newest first.
func (s *LedgerStore) ListByEntry(ctx context.Context, orgID, entryID uuid.UUID) ([]*models.SalaryHistory, error) {
	query := `
		SELECT ` + ledgerColumns + `
		FROM salary_history
		WHERE org_id = $1 AND entry_id = $2
		ORDER BY as_of_date DESC, sequence DESC
	`

	rows, err := s.db.conn(ctx).Query(ctx, query, orgID, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list salary history: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var records []*models.SalaryHistory
	for rows.Next() {
		record, err := scanSalaryHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan salary history: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating salary history: %w", err)
	}

	return records, nil
}

func (s *LedgerStore) getOne(ctx context.Context, query string, args ...any) (*models.SalaryHistory, error) {
	record, err := scanSalaryHistory(s.db.conn(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSalaryHistoryNotFound
		}
		return nil, fmt.Errorf("failed to get salary history: %w", mapPostgresError(err))
	}

	return record, nil
}

func scanSalaryHistory(row pgx.Row) (*models.SalaryHistory, error) {
	var (
		r                                   models.SalaryHistory
		amount, net, tips, fee, adjustments string
		hours                               *string
		provenance                          string
	)

	err := row.Scan(
		&r.RecordID,
		&r.Sequence,
		&r.EntryID,
		&r.OrgID,
		&amount,
		&net,
		&tips,
		&fee,
		&adjustments,
		&hours,
		&r.AsOfDate,
		&provenance,
		&r.ImportSessionID,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&r.Amount, amount},
		{&r.Net, net},
		{&r.Tips, tips},
		{&r.Fee, fee},
		{&r.Adjustments, adjustments},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return nil, fmt.Errorf("invalid numeric %q: %w", f.src, err)
		}
	}

	if hours != nil {
		h, err := decimal.NewFromString(*hours)
		if err != nil {
			return nil, fmt.Errorf("invalid hours %q: %w", *hours, err)
		}
		r.Hours = &h
	}

	r.AsOfDate = models.DateOnly(r.AsOfDate)
	r.Provenance = models.Provenance(provenance)

	return &r, nil
}
