package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/wolfeidau/payledger/internal/models"
)

// EntryFilter narrows an entry listing.
type EntryFilter struct {
	Platform string
	Search   string // case-insensitive match on name or email
	Limit    int
	Offset   int
}

// EntryStore persists worker entries. Every method is scoped to one
// organization and soft-deleted entries are invisible to all of them.
type EntryStore interface {
	// FindByExternalID returns the live entry with the given platform issued id.
	// Returns ErrEntryNotFound if there is none.
	FindByExternalID(ctx context.Context, orgID uuid.UUID, platform, externalID string) (*models.Entry, error)

	// FindByNameEmail returns the live entry with the given name and email. With
	// unkeyedOnly set, entries carrying an external id are skipped. Otherwise an
	// entry without an external id is preferred, then the oldest one.
	// Returns ErrEntryNotFound if there is none.
	FindByNameEmail(ctx context.Context, orgID uuid.UUID, platform, fullName, email string, unkeyedOnly bool) (*models.Entry, error)

	// Get retrieves an entry by ID.
	// Returns ErrEntryNotFound if it doesn't exist in the organization.
	Get(ctx context.Context, orgID, entryID uuid.UUID) (*models.Entry, error)

	// GetForUpdate is Get that also locks the entry until the surrounding
	// transaction ends, so concurrent batches touching the same worker serialise.
	GetForUpdate(ctx context.Context, orgID, entryID uuid.UUID) (*models.Entry, error)

	// Create inserts a new entry.
	// Returns ErrEntryIdentityConflict if a live entry already owns the identity key.
	Create(ctx context.Context, entry *models.Entry) error

	// Update overwrites the mutable fields of an entry.
	// Returns ErrEntryNotFound or ErrEntryIdentityConflict.
	Update(ctx context.Context, entry *models.Entry) error

	// SoftDelete hides an entry while keeping its ledger intact.
	// Returns ErrEntryNotFound if the entry doesn't exist or is already deleted.
	SoftDelete(ctx context.Context, orgID, entryID, deletedBy uuid.UUID) error

	// List returns entries ordered by creation time, newest first.
	List(ctx context.Context, orgID uuid.UUID, filter EntryFilter) ([]*models.Entry, error)

	// Count returns the number of entries matching the filter, ignoring Limit and Offset.
	Count(ctx context.Context, orgID uuid.UUID, filter EntryFilter) (int, error)
}
