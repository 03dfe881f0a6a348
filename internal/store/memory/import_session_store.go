package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
)

var _ store.ImportSessionStore = (*ImportSessionStore)(nil)

// ImportSessionStore implements store.ImportSessionStore using in-memory storage.
type ImportSessionStore struct {
	db *DB
}

// NewImportSessionStore creates a new in-memory import session store.
func NewImportSessionStore(db *DB) *ImportSessionStore {
	return &ImportSessionStore{db: db}
}

// Create stores a new session.
func (s *ImportSessionStore) Create(ctx context.Context, session *models.ImportSession) error {
	unlock := s.db.lock(ctx)
	defer unlock()

	if _, exists := s.db.sessions[session.SessionID]; exists {
		return fmt.Errorf("import session %s already exists", session.SessionID)
	}
	if _, exists := s.db.organizations[session.OrgID]; !exists {
		return fmt.Errorf("import session organization %s: %w", session.OrgID, store.ErrOrganizationNotFound)
	}

	s.db.sessions[session.SessionID] = cloneSession(session)

	return nil
}

// Finalize records the outcome of a running session.
func (s *ImportSessionStore) Finalize(ctx context.Context, session *models.ImportSession) error {
	unlock := s.db.lock(ctx)
	defer unlock()

	existing, exists := s.db.sessions[session.SessionID]
	if !exists || existing.OrgID != session.OrgID {
		return store.ErrImportSessionNotFound
	}
	if existing.Status != models.ImportStatusRunning {
		return store.ErrImportSessionFinalized
	}

	updated := cloneSession(existing)
	updated.Status = session.Status
	updated.Added = session.Added
	updated.Updated = session.Updated
	updated.Rejected = session.Rejected
	updated.Appended = session.Appended
	updated.Failures = slices.Clone(session.Failures)
	updated.FinishedAt = session.FinishedAt
	s.db.sessions[session.SessionID] = updated

	return nil
}

// Get retrieves a session by ID.
func (s *ImportSessionStore) Get(ctx context.Context, orgID, sessionID uuid.UUID) (*models.ImportSession, error) {
	unlock := s.db.lock(ctx)
	defer unlock()

	session, exists := s.db.sessions[sessionID]
	if !exists || session.OrgID != orgID {
		return nil, store.ErrImportSessionNotFound
	}

	return cloneSession(session), nil
}

// List returns an organization's sessions newest first.
func (s *ImportSessionStore) List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.ImportSession, error) {
	unlock := s.db.lock(ctx)
	defer unlock()

	var result []*models.ImportSession
	for _, session := range s.db.sessions {
		if session.OrgID == orgID {
			result = append(result, cloneSession(session))
		}
	}

	slices.SortFunc(result, func(a, b *models.ImportSession) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if offset > 0 {
		if offset >= len(result) {
			return nil, nil
		}
		result = result[offset:]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func cloneSession(session *models.ImportSession) *models.ImportSession {
	clone := *session
	clone.Failures = slices.Clone(session.Failures)
	return &clone
}
