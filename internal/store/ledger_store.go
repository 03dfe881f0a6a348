package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/payledger/internal/models"
)

// LedgerStore persists salary history records. It is append-only and exposes
// no update or delete.
type LedgerStore interface {
	// Latest returns the newest record for an entry, ordered by AsOfDate then
	// creation sequence. Returns ErrSalaryHistoryNotFound for an empty ledger.
	Latest(ctx context.Context, orgID, entryID uuid.UUID) (*models.SalaryHistory, error)

	// Append stores a new record and fills in its Sequence and CreatedAt.
	Append(ctx context.Context, record *models.SalaryHistory) error

	// ListByEntry returns an entry's records newest first.
	ListByEntry(ctx context.Context, orgID, entryID uuid.UUID) ([]*models.SalaryHistory, error)

	// AsOf returns the record in effect on the given date, i.e. the latest record
	// with AsOfDate on or before it. Returns ErrSalaryHistoryNotFound if none.
	AsOf(ctx context.Context, orgID, entryID uuid.UUID, date time.Time) (*models.SalaryHistory, error)
}
