package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/payledger/internal/models"
)

// Sentinel errors for organization store operations
var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
)

// OrganizationStore defines the interface for organization storage operations.
// Organizations are the tenant boundary: entries, ledger records and import
// sessions all hang off one organization.
type OrganizationStore interface {
	// Create creates a new organization in the store.
	// Returns ErrOrganizationAlreadyExists if an organization with the same ID already exists.
	Create(ctx context.Context, org *models.Organization) error

	// Get retrieves an organization by ID.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)

	// Update updates an existing organization's settings.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Update(ctx context.Context, org *models.Organization) error

	// Delete deletes an organization by ID.
	// Entries and sessions are not cascaded; removing tenant data is an administrative reset.
	// Returns ErrOrganizationNotFound if the organization doesn't exist.
	Delete(ctx context.Context, orgID uuid.UUID) error

	// ListByOwner returns all organizations owned by a specific user.
	ListByOwner(ctx context.Context, ownerPrincipalID uuid.UUID) ([]*models.Organization, error)
}
