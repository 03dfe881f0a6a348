package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wolfeidau/payledger/internal/auth"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
)

// Change is a proposed ledger record for one entry.
type Change struct {
	Amount      decimal.Decimal
	Net         decimal.Decimal
	Tips        decimal.Decimal
	Fee         decimal.Decimal
	Adjustments decimal.Decimal
	Hours       *decimal.Decimal
	AsOfDate    time.Time

	Provenance      models.Provenance
	ImportSessionID *uuid.UUID
}

// Ledger appends salary history records when an entry's pay changes.
type Ledger struct {
	history store.LedgerStore
}

func NewLedger(history store.LedgerStore) *Ledger {
	return &Ledger{history: history}
}

// AppendIfChanged compares change.Amount with the entry's latest record, by
// AsOfDate then creation order, and appends a record only when there is no
// prior record or the amounts differ exactly. It returns nil when nothing was
// appended. A change dated before the latest record is still appended.
func (l *Ledger) AppendIfChanged(ctx context.Context, tenant auth.Tenant, entryID uuid.UUID, change Change) (*models.SalaryHistory, error) {
	amount := change.Amount.Round(MoneyPlaces)

	latest, err := l.history.Latest(ctx, tenant.OrgID, entryID)
	switch {
	case err == nil:
		if latest.Amount.Equal(amount) {
			return nil, nil
		}
	case errors.Is(err, store.ErrSalaryHistoryNotFound):
	default:
		return nil, storageError("load latest salary", err)
	}

	record := &models.SalaryHistory{
		RecordID:        uuid.Must(uuid.NewV7()),
		EntryID:         entryID,
		OrgID:           tenant.OrgID,
		Amount:          amount,
		Net:             change.Net.Round(MoneyPlaces),
		Tips:            change.Tips.Round(MoneyPlaces),
		Fee:             change.Fee.Round(MoneyPlaces),
		Adjustments:     change.Adjustments.Round(MoneyPlaces),
		AsOfDate:        models.DateOnly(change.AsOfDate),
		Provenance:      change.Provenance,
		ImportSessionID: change.ImportSessionID,
	}
	if change.Hours != nil {
		hours := change.Hours.Round(MoneyPlaces)
		record.Hours = &hours
	}
	if record.Provenance == "" {
		record.Provenance = models.ProvenanceImport
	}

	if err := l.history.Append(ctx, record); err != nil {
		return nil, storageError("append salary history", err)
	}

	evt := zerolog.Ctx(ctx).Debug().
		Str("entry_id", entryID.String()).
		Str("amount", amount.String()).
		Str("as_of_date", record.AsOfDate.Format(time.DateOnly))
	if latest != nil {
		evt = evt.Str("previous_amount", latest.Amount.String())
	}
	evt.Msg("Appended salary history")

	return record, nil
}
