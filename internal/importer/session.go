package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/payledger/internal/auth"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/reconcile"
	"github.com/wolfeidau/payledger/internal/store"
)

// ErrSessionCreation is returned when a batch cannot record its provenance.
// No row is processed in that case.
var ErrSessionCreation = errors.New("failed to create import session")

// RowResult is the outcome of one processed row.
type RowResult struct {
	EntryID  uuid.UUID
	Created  bool
	Appended bool
	Err      error
}

// SessionTracker owns the provenance record of a batch. Counters accumulate in
// memory while rows run and are written once by Finalize.
type SessionTracker struct {
	sessions store.ImportSessionStore
	now      func() time.Time
}

func NewSessionTracker(sessions store.ImportSessionStore) *SessionTracker {
	return &SessionTracker{sessions: sessions, now: time.Now}
}

// Begin stores a running session for the batch. Any failure wraps
// ErrSessionCreation.
func (t *SessionTracker) Begin(ctx context.Context, tenant auth.Tenant, platform string, source models.SourceFile) (*models.ImportSession, error) {
	session := &models.ImportSession{
		SessionID:   uuid.Must(uuid.NewV7()),
		OrgID:       tenant.OrgID,
		Platform:    platform,
		Source:      source,
		InitiatedBy: tenant.UserID,
		Status:      models.ImportStatusRunning,
		CreatedAt:   t.now(),
	}

	if err := t.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCreation, err)
	}

	return session, nil
}

// Record folds one row result into the session counters.
func (t *SessionTracker) Record(session *models.ImportSession, row int, result RowResult) {
	if result.Err != nil {
		session.Rejected++
		session.Failures = append(session.Failures, models.RowFailure{
			Row:    row,
			Kind:   string(reconcile.KindOf(result.Err)),
			Reason: failureReason(result.Err),
		})
		return
	}

	if result.Created {
		session.Added++
	} else {
		session.Updated++
	}

	if result.Appended {
		session.Appended++
	}
}

// Finalize writes the counters and closes the session. It runs even when ctx
// has been cancelled so a stopped batch still leaves an accurate record.
func (t *SessionTracker) Finalize(ctx context.Context, session *models.ImportSession, cancelled bool) error {
	finishedAt := t.now()

	session.Status = models.ImportStatusCompleted
	if cancelled {
		session.Status = models.ImportStatusCancelled
	}
	session.FinishedAt = &finishedAt

	if err := t.sessions.Finalize(context.WithoutCancel(ctx), session); err != nil {
		return fmt.Errorf("failed to finalize import session %s: %w", session.SessionID, err)
	}

	return nil
}

// failureReason strips the kind prefix a *RowError adds, the kind is stored
// separately.
func failureReason(err error) string {
	var rowErr *reconcile.RowError
	if errors.As(err, &rowErr) {
		return rowErr.Err.Error()
	}
	return err.Error()
}
