package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
)

var _ store.OrganizationStore = (*OrganizationStore)(nil)

// OrganizationStore implements store.OrganizationStore using in-memory storage.
type OrganizationStore struct {
	db *DB
}

// NewOrganizationStore creates a new in-memory organization store.
func NewOrganizationStore(db *DB) *OrganizationStore {
	return &OrganizationStore{db: db}
}

// Create creates a new organization in memory.
func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	unlock := s.db.lock(ctx)
	defer unlock()

	// Check if organization already exists
	if _, exists := s.db.organizations[org.OrgID]; exists {
		return store.ErrOrganizationAlreadyExists
	}

	// Clone to avoid external modifications
	clone := *org
	s.db.organizations[org.OrgID] = &clone

	return nil
}

// Get retrieves an organization by ID.
func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	unlock := s.db.lock(ctx)
	defer unlock()

	org, exists := s.db.organizations[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	clone := *org
	return &clone, nil
}

// Update updates an existing organization.
func (s *OrganizationStore) Update(ctx context.Context, org *models.Organization) error {
	unlock := s.db.lock(ctx)
	defer unlock()

	if _, exists := s.db.organizations[org.OrgID]; !exists {
		return store.ErrOrganizationNotFound
	}

	org.UpdatedAt = time.Now()

	clone := *org
	s.db.organizations[org.OrgID] = &clone

	return nil
}

// Delete deletes an organization by ID.
// Note: entries and sessions of the organization are left in place, matching
// the PostgreSQL store where removal of tenant data is an administrative reset.
func (s *OrganizationStore) Delete(ctx context.Context, orgID uuid.UUID) error {
	unlock := s.db.lock(ctx)
	defer unlock()

	if _, exists := s.db.organizations[orgID]; !exists {
		return store.ErrOrganizationNotFound
	}

	delete(s.db.organizations, orgID)

	return nil
}

// ListByOwner returns all organizations owned by a specific user.
func (s *OrganizationStore) ListByOwner(ctx context.Context, ownerPrincipalID uuid.UUID) ([]*models.Organization, error) {
	unlock := s.db.lock(ctx)
	defer unlock()

	var result []*models.Organization
	for _, org := range s.db.organizations {
		if org.OwnerPrincipalID == ownerPrincipalID {
			clone := *org
			result = append(result, &clone)
		}
	}

	return result, nil
}
