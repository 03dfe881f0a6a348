package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/wolfeidau/payledger/internal/models"
)

// ImportSessionStore persists the provenance records of import batches.
type ImportSessionStore interface {
	// Create stores a new running session.
	Create(ctx context.Context, session *models.ImportSession) error

	// Finalize writes the aggregate counters, failures, status and finish time.
	// Returns ErrImportSessionNotFound, or ErrImportSessionFinalized if the session
	// was already finalized.
	Finalize(ctx context.Context, session *models.ImportSession) error

	// Get retrieves a session by ID within an organization.
	Get(ctx context.Context, orgID, sessionID uuid.UUID) (*models.ImportSession, error)

	// List returns an organization's sessions newest first.
	List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.ImportSession, error)
}
