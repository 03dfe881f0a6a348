package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Provenance records where a ledger record came from.
type Provenance string

const (
	ProvenanceManual Provenance = "manual"
	ProvenanceImport Provenance = "import"
)

// SalaryHistory is an append-only ledger record of an entry's pay as of a date.
// Records are never updated or deleted outside of an administrative reset.
type SalaryHistory struct {
	RecordID uuid.UUID // UUIDv7
	EntryID  uuid.UUID
	OrgID    uuid.UUID

	Amount      decimal.Decimal
	Net         decimal.Decimal
	Tips        decimal.Decimal
	Fee         decimal.Decimal
	Adjustments decimal.Decimal
	Hours       *decimal.Decimal

	AsOfDate        time.Time // date only, UTC midnight
	Provenance      Provenance
	ImportSessionID *uuid.UUID

	// Sequence is a monotonically increasing creation counter used to break
	// ties between records sharing the same AsOfDate.
	Sequence  int64
	CreatedAt time.Time
}

// Newer reports whether r sorts after other in "latest wins" order:
// later AsOfDate first, then later creation.
func (r *SalaryHistory) Newer(other *SalaryHistory) bool {
	if !r.AsOfDate.Equal(other.AsOfDate) {
		return r.AsOfDate.After(other.AsOfDate)
	}
	return r.Sequence > other.Sequence
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
