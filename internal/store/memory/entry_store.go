package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
)

var _ store.EntryStore = (*EntryStore)(nil)

// EntryStore implements store.EntryStore using in-memory storage.
type EntryStore struct {
	db *DB
}

// NewEntryStore creates a new in-memory entry store.
func NewEntryStore(db *DB) *EntryStore {
	return &EntryStore{db: db}
}

// FindByExternalID returns the live entry with the given platform issued id.
func (s *EntryStore) FindByExternalID(ctx context.Context, orgID uuid.UUID, platform, externalID string) (*models.Entry, error) {
	unlock := s.db.lock(ctx)
	defer unlock()

	for _, e := range s.db.entries {
		if e.OrgID == orgID && !e.IsDeleted() && e.Platform == platform && e.ExternalID == externalID {
			clone := *e
			return &clone, nil
		}
	}

	return nil, store.ErrEntryNotFound
}

// FindByNameEmail returns the live entry matching name and email.
func (s *EntryStore) FindByNameEmail(ctx context.Context, orgID uuid.UUID, platform, fullName, email string, unkeyedOnly bool) (*models.Entry, error) {
	unlock := s.db.lock(ctx)
	defer unlock()

	var candidates []*models.Entry
	for _, e := range s.db.entries {
		if e.OrgID != orgID || e.IsDeleted() || e.Platform != platform || e.FullName != fullName || e.Email != email {
			continue
		}
		if unkeyedOnly && e.ExternalID != "" {
			continue
		}
		candidates = append(candidates, e)
	}

	if len(candidates) == 0 {
		return nil, store.ErrEntryNotFound
	}

	// same order as the postgres query: unkeyed first, then oldest
	best := slices.MinFunc(candidates, func(a, b *models.Entry) int {
		if ak, bk := a.ExternalID != "", b.ExternalID != ""; ak != bk {
			if ak {
				return 1
			}
			return -1
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.EntryID.String(), b.EntryID.String())
	})

	clone := *best
	return &clone, nil
}

// Get retrieves an entry by ID.
func (s *EntryStore) Get(ctx context.Context, orgID, entryID uuid.UUID) (*models.Entry, error) {
	unlock := s.db.lock(ctx)
	defer unlock()

	e, exists := s.db.entries[entryID]
	if !exists || e.OrgID != orgID || e.IsDeleted() {
		return nil, store.ErrEntryNotFound
	}

	clone := *e
	return &clone, nil
}

// GetForUpdate is Get; the database lock held by InTx already serialises writers.
func (s *EntryStore) GetForUpdate(ctx context.Context, orgID, entryID uuid.UUID) (*models.Entry, error) {
	return s.Get(ctx, orgID, entryID)
}

// Create inserts a new entry, enforcing identity uniqueness among live entries.
func (s *EntryStore) Create(ctx context.Context, entry *models.Entry) error {
	unlock := s.db.lock(ctx)
	defer unlock()

	if _, exists := s.db.organizations[entry.OrgID]; !exists {
		return fmt.Errorf("entry organization %s: %w", entry.OrgID, store.ErrOrganizationNotFound)
	}

	if s.conflicts(entry) {
		return store.ErrEntryIdentityConflict
	}

	clone := *entry
	s.db.entries[entry.EntryID] = &clone

	return nil
}

// Update overwrites the mutable fields of an existing entry.
func (s *EntryStore) Update(ctx context.Context, entry *models.Entry) error {
	unlock := s.db.lock(ctx)
	defer unlock()

	existing, exists := s.db.entries[entry.EntryID]
	if !exists || existing.OrgID != entry.OrgID || existing.IsDeleted() {
		return store.ErrEntryNotFound
	}

	if s.conflicts(entry) {
		return store.ErrEntryIdentityConflict
	}

	clone := *entry
	clone.CreatedAt = existing.CreatedAt
	clone.CreatedBy = existing.CreatedBy
	clone.ImportSessionID = existing.ImportSessionID
	s.db.entries[entry.EntryID] = &clone

	return nil
}

// SoftDelete marks an entry deleted.
func (s *EntryStore) SoftDelete(ctx context.Context, orgID, entryID, deletedBy uuid.UUID) error {
	unlock := s.db.lock(ctx)
	defer unlock()

	existing, exists := s.db.entries[entryID]
	if !exists || existing.OrgID != orgID || existing.IsDeleted() {
		return store.ErrEntryNotFound
	}

	now := time.Now()
	clone := *existing
	clone.DeletedAt = &now
	clone.UpdatedAt = now
	clone.UpdatedBy = deletedBy
	s.db.entries[entryID] = &clone

	return nil
}

// List returns matching entries newest first.
func (s *EntryStore) List(ctx context.Context, orgID uuid.UUID, filter store.EntryFilter) ([]*models.Entry, error) {
	unlock := s.db.lock(ctx)
	defer unlock()

	matched := s.filter(orgID, filter)
	slices.SortFunc(matched, func(a, b *models.Entry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.EntryID.String(), a.EntryID.String())
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	result := make([]*models.Entry, 0, len(matched))
	for _, e := range matched {
		clone := *e
		result = append(result, &clone)
	}

	return result, nil
}

// Count returns the number of entries matching the filter.
func (s *EntryStore) Count(ctx context.Context, orgID uuid.UUID, filter store.EntryFilter) (int, error) {
	unlock := s.db.lock(ctx)
	defer unlock()

	return len(s.filter(orgID, filter)), nil
}

func (s *EntryStore) filter(orgID uuid.UUID, filter store.EntryFilter) []*models.Entry {
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	var matched []*models.Entry
	for _, e := range s.db.entries {
		if e.OrgID != orgID || e.IsDeleted() {
			continue
		}
		if filter.Platform != "" && e.Platform != filter.Platform {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.FullName), search) &&
			!strings.Contains(e.Email, search) {
			continue
		}
		matched = append(matched, e)
	}

	return matched
}

// conflicts mirrors the partial unique indexes of the PostgreSQL schema.
func (s *EntryStore) conflicts(entry *models.Entry) bool {
	key := entry.Identity()
	for _, e := range s.db.entries {
		if e.EntryID == entry.EntryID || e.IsDeleted() || e.OrgID != key.OrgID || e.Platform != key.Platform {
			continue
		}
		if key.HasExternalID() {
			if e.ExternalID == key.ExternalID {
				return true
			}
			continue
		}
		if e.ExternalID == "" && e.FullName == key.FullName && e.Email == key.Email {
			return true
		}
	}

	return false
}
