package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
)

var (
	_ store.Transactor = (*DB)(nil)
	_ store.Resetter   = (*DB)(nil)
)

type txKey struct{}

// DB is the shared in-memory state behind all memory stores.
// This implementation is for testing and local development only - data is lost on restart.
//
// A single mutex serialises every operation. InTx holds it for the whole
// callback and restores a snapshot if the callback fails.
type DB struct {
	mu sync.Mutex

	organizations map[uuid.UUID]*models.Organization  // org_id -> Organization
	entries       map[uuid.UUID]*models.Entry         // entry_id -> Entry
	ledger        []*models.SalaryHistory             // insertion order
	sessions      map[uuid.UUID]*models.ImportSession // session_id -> ImportSession
	sequence      int64
}

// NewDB creates an empty in-memory database.
func NewDB() *DB {
	return &DB{
		organizations: make(map[uuid.UUID]*models.Organization),
		entries:       make(map[uuid.UUID]*models.Entry),
		sessions:      make(map[uuid.UUID]*models.ImportSession),
	}
}

// NewStores builds the full store set on top of one in-memory database.
func NewStores() (*store.Stores, *DB) {
	db := NewDB()
	return &store.Stores{
		Organizations:  NewOrganizationStore(db),
		Entries:        NewEntryStore(db),
		Ledger:         NewLedgerStore(db),
		ImportSessions: NewImportSessionStore(db),
		Tx:             db,
		Resetter:       db,
	}, db
}

// lock acquires the database mutex unless ctx already belongs to a running
// transaction on this database, which holds it.
func (db *DB) lock(ctx context.Context) func() {
	if owner, ok := ctx.Value(txKey{}).(*DB); ok && owner == db {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

type snapshot struct {
	organizations map[uuid.UUID]*models.Organization
	entries       map[uuid.UUID]*models.Entry
	ledgerLen     int
	sessions      map[uuid.UUID]*models.ImportSession
	sequence      int64
}

// Stored values are replaced, never mutated in place, so shallow map copies
// are enough to roll back.
func (db *DB) snapshot() snapshot {
	return snapshot{
		organizations: maps.Clone(db.organizations),
		entries:       maps.Clone(db.entries),
		ledgerLen:     len(db.ledger),
		sessions:      maps.Clone(db.sessions),
		sequence:      db.sequence,
	}
}

func (db *DB) restore(s snapshot) {
	db.organizations = s.organizations
	db.entries = s.entries
	db.ledger = db.ledger[:s.ledgerLen]
	db.sessions = s.sessions
	db.sequence = s.sequence
}

// InTx runs fn while holding the database lock. Writes made through the
// context passed to fn are discarded if fn returns an error. A nested call
// joins the outer transaction.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, ok := ctx.Value(txKey{}).(*DB); ok && owner == db {
		return fn(ctx)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	snap := db.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		db.restore(snap)
		return err
	}

	return nil
}

// Reset wipes every table.
func (db *DB) Reset(ctx context.Context) error {
	unlock := db.lock(ctx)
	defer unlock()

	db.organizations = make(map[uuid.UUID]*models.Organization)
	db.entries = make(map[uuid.UUID]*models.Entry)
	db.ledger = nil
	db.sessions = make(map[uuid.UUID]*models.ImportSession)
	db.sequence = 0

	return nil
}
