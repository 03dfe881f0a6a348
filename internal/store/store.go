package store

import (
	"context"
	"errors"
)

// Sentinel errors shared by all store implementations.
var (
	ErrEntryNotFound           = errors.New("entry not found")
	ErrEntryIdentityConflict   = errors.New("entry identity already exists")
	ErrSalaryHistoryNotFound   = errors.New("salary history not found")
	ErrImportSessionNotFound   = errors.New("import session not found")
	ErrImportSessionFinalized  = errors.New("import session already finalized")
)

// Transactor runs fn inside a single storage transaction. Store calls made
// with the context handed to fn join that transaction; if fn returns an error
// every write made through that context is rolled back.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Resetter wipes all persisted state. It backs the administrative reset and is
// never called by the import path.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Stores groups the stores the application needs so they can be built
// together from one backend.
type Stores struct {
	Organizations  OrganizationStore
	Entries        EntryStore
	Ledger         LedgerStore
	ImportSessions ImportSessionStore
	Tx             Transactor
	Resetter       Resetter
}
