package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payledger/internal/auth"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/reconcile"
	"github.com/wolfeidau/payledger/internal/store"
	"github.com/wolfeidau/payledger/internal/store/memory"
)

func TestSessionTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("record folds results into counters", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)
		tracker := NewSessionTracker(stores.ImportSessions)

		session, err := tracker.Begin(ctx, tenant, "glovo", source)
		require.NoError(t, err)
		require.Equal(t, models.ImportStatusRunning, session.Status)

		tracker.Record(session, 1, RowResult{Created: true, Appended: true})
		tracker.Record(session, 2, RowResult{Appended: true})
		tracker.Record(session, 3, RowResult{})
		tracker.Record(session, 4, RowResult{Err: &reconcile.RowError{Kind: reconcile.KindTenantMismatch, Err: reconcile.ErrTenantMismatch}})

		require.Equal(t, 1, session.Added)
		require.Equal(t, 2, session.Updated)
		require.Equal(t, 2, session.Appended)
		require.Equal(t, 1, session.Rejected)
		require.Equal(t, []models.RowFailure{{
			Row:    4,
			Kind:   string(reconcile.KindTenantMismatch),
			Reason: reconcile.ErrTenantMismatch.Error(),
		}}, session.Failures)
	})

	t.Run("finalize persists once", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)
		tracker := NewSessionTracker(stores.ImportSessions)

		session, err := tracker.Begin(ctx, tenant, "glovo", source)
		require.NoError(t, err)
		tracker.Record(session, 1, RowResult{Created: true})

		require.NoError(t, tracker.Finalize(ctx, session, false))

		stored, err := stores.ImportSessions.Get(ctx, tenant.OrgID, session.SessionID)
		require.NoError(t, err)
		require.Equal(t, models.ImportStatusCompleted, stored.Status)
		require.Equal(t, 1, stored.Added)

		err = tracker.Finalize(ctx, session, false)
		require.ErrorIs(t, err, store.ErrImportSessionFinalized)
	})

	t.Run("begin fails without an organization", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tracker := NewSessionTracker(stores.ImportSessions)

		_, err := tracker.Begin(ctx, auth.Tenant{OrgID: uuid.Must(uuid.NewV7())}, "glovo", source)
		require.ErrorIs(t, err, ErrSessionCreation)
		require.True(t, errors.Is(err, store.ErrOrganizationNotFound))
	})
}
