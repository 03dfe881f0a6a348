package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
)

var _ store.LedgerStore = (*LedgerStore)(nil)

// LedgerStore implements store.LedgerStore using in-memory storage.
type LedgerStore struct {
	db *DB
}

// NewLedgerStore creates a new in-memory ledger store.
func NewLedgerStore(db *DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Latest returns the newest record of an entry.
func (s *LedgerStore) Latest(ctx context.Context, orgID, entryID uuid.UUID) (*models.SalaryHistory, error) {
	unlock := s.db.lock(ctx)
	defer unlock()

	var latest *models.SalaryHistory
	for _, r := range s.db.ledger {
		if r.OrgID != orgID || r.EntryID != entryID {
			continue
		}
		if latest == nil || r.Newer(latest) {
			latest = r
		}
	}

	if latest == nil {
		return nil, store.ErrSalaryHistoryNotFound
	}

	clone := *latest
	return &clone, nil
}

// Append stores a new record, assigning its creation sequence.
func (s *LedgerStore) Append(ctx context.Context, record *models.SalaryHistory) error {
	unlock := s.db.lock(ctx)
	defer unlock()

	s.db.sequence++
	record.Sequence = s.db.sequence
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	clone := *record
	s.db.ledger = append(s.db.ledger, &clone)

	return nil
}

// ListByEntry returns an entry's records newest first.
func (s *LedgerStore) ListByEntry(ctx context.Context, orgID, entryID uuid.UUID) ([]*models.SalaryHistory, error) {
	unlock := s.db.lock(ctx)
	defer unlock()

	var result []*models.SalaryHistory
	for _, r := range s.db.ledger {
		if r.OrgID == orgID && r.EntryID == entryID {
			clone := *r
			result = append(result, &clone)
		}
	}

	slices.SortFunc(result, func(a, b *models.SalaryHistory) int {
		if a.Newer(b) {
			return -1
		}
		return 1
	})

	return result, nil
}

// AsOf returns the record in effect on date.
func (s *LedgerStore) AsOf(ctx context.Context, orgID, entryID uuid.UUID, date time.Time) (*models.SalaryHistory, error) {
	unlock := s.db.lock(ctx)
	defer unlock()

	day := models.DateOnly(date)

	var found *models.SalaryHistory
	for _, r := range s.db.ledger {
		if r.OrgID != orgID || r.EntryID != entryID || r.AsOfDate.After(day) {
			continue
		}
		if found == nil || r.Newer(found) {
			found = r
		}
	}

	if found == nil {
		return nil, store.ErrSalaryHistoryNotFound
	}

	clone := *found
	return &clone, nil
}
