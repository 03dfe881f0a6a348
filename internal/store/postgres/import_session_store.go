package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
)

var _ store.ImportSessionStore = (*ImportSessionStore)(nil)

const importSessionColumns = `
	session_id, org_id, platform,
	original_name, stored_location, checksum, content_type, size_bytes,
	initiated_by, status, added, updated, rejected, appended, failures,
	created_at, finished_at`

// ImportSessionStore implements store.ImportSessionStore using PostgreSQL.
type ImportSessionStore struct {
	db *DB
}

// NewImportSessionStore creates a new PostgreSQL-backed import session store.
func NewImportSessionStore(db *DB) *ImportSessionStore {
	return &ImportSessionStore{db: db}
}

// Create stores a new running session.
func (s *ImportSessionStore) Create(ctx context.Context, session *models.ImportSession) error {
	query := `
		INSERT INTO import_sessions (
			session_id, org_id, platform,
			original_name, stored_location, checksum, content_type, size_bytes,
			initiated_by, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.conn(ctx).Exec(ctx, query,
		session.SessionID,
		session.OrgID,
		session.Platform,
		session.Source.OriginalName,
		session.Source.StoredLocation,
		session.Source.Checksum,
		session.Source.ContentType,
		session.Source.Size,
		session.InitiatedBy,
		string(session.Status),
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create import session: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("session_id", session.SessionID.String()).
		Str("org_id", session.OrgID.String()).
		Str("platform", session.Platform).
		Msg("Created import session")

	return nil
}

// Finalize records the outcome of a running session. Only a running session
// can be finalized.
func (s *ImportSessionStore) Finalize(ctx context.Context, session *models.ImportSession) error {
	failures, err := json.Marshal(nonNilFailures(session.Failures))
	if err != nil {
		return fmt.Errorf("failed to marshal row failures: %w", err)
	}

	query := `
		UPDATE import_sessions SET
			status = $3,
			added = $4,
			updated = $5,
			rejected = $6,
			appended = $7,
			failures = $8,
			finished_at = $9
		WHERE org_id = $1 AND session_id = $2 AND status = 'running'
	`

	result, err := s.db.conn(ctx).Exec(ctx, query,
		session.OrgID,
		session.SessionID,
		string(session.Status),
		session.Added,
		session.Updated,
		session.Rejected,
		session.Appended,
		failures,
		session.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize import session: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		// distinguish a missing session from one that already finished
		if _, err := s.Get(ctx, session.OrgID, session.SessionID); err != nil {
			return err
		}
		return store.ErrImportSessionFinalized
	}

	return nil
}

// Get retrieves a session by ID.
func (s *ImportSessionStore) Get(ctx context.Context, orgID, sessionID uuid.UUID) (*models.ImportSession, error) {
	query := `
		SELECT ` + importSessionColumns + `
		FROM import_sessions
		WHERE org_id = $1 AND session_id = $2
	`

	session, err := scanImportSession(s.db.conn(ctx).QueryRow(ctx, query, orgID, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrImportSessionNotFound
		}
		return nil, fmt.Errorf("failed to get import session: %w", mapPostgresError(err))
	}

	return session, nil
}

// List returns an organization's sessions newest first.
func (s *ImportSessionStore) List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]*models.ImportSession, error) {
	query := `
		SELECT ` + importSessionColumns + `
		FROM import_sessions
		WHERE org_id = $1
		ORDER BY created_at DESC, session_id DESC
		LIMIT $2 OFFSET $3
	`

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.conn(ctx).Query(ctx, query, orgID, limit, max(offset, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to list import sessions: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var sessions []*models.ImportSession
	for rows.Next() {
		session, err := scanImportSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating import sessions: %w", err)
	}

	return sessions, nil
}

func scanImportSession(row pgx.Row) (*models.ImportSession, error) {
	var (
		s        models.ImportSession
		status   string
		failures []byte
	)

	err := row.Scan(
		&s.SessionID,
		&s.OrgID,
		&s.Platform,
		&s.Source.OriginalName,
		&s.Source.StoredLocation,
		&s.Source.Checksum,
		&s.Source.ContentType,
		&s.Source.Size,
		&s.InitiatedBy,
		&status,
		&s.Added,
		&s.Updated,
		&s.Rejected,
		&s.Appended,
		&failures,
		&s.CreatedAt,
		&s.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = models.ImportStatus(status)

	if len(failures) > 0 {
		if err := json.Unmarshal(failures, &s.Failures); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row failures: %w", err)
		}
	}

	return &s, nil
}

func nonNilFailures(failures []models.RowFailure) []models.RowFailure {
	if failures == nil {
		return []models.RowFailure{}
	}
	return failures
}
