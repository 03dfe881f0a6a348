package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
)

func TestImportSessionStore(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	st := NewImportSessionStore(db)

	org := newOrganization(uuid.Must(uuid.NewV7()))
	require.NoError(t, NewOrganizationStore(db).Create(ctx, org))

	newSession := func(createdAt time.Time) *models.ImportSession {
		return &models.ImportSession{
			SessionID: uuid.Must(uuid.NewV7()),
			OrgID:     org.OrgID,
			Platform:  "glovo",
			Status:    models.ImportStatusRunning,
			CreatedAt: createdAt,
		}
	}

	t.Run("unknown organization", func(t *testing.T) {
		session := newSession(time.Now())
		session.OrgID = uuid.Must(uuid.NewV7())
		require.ErrorIs(t, st.Create(ctx, session), store.ErrOrganizationNotFound)
	})

	t.Run("finalize once", func(t *testing.T) {
		session := newSession(time.Now())
		require.NoError(t, st.Create(ctx, session))
		require.Error(t, st.Create(ctx, session))

		session.Status = models.ImportStatusCompleted
		session.Added = 3
		session.Failures = []models.RowFailure{{Row: 2, Kind: "ValidationError", Reason: "bad amount"}}
		require.NoError(t, st.Finalize(ctx, session))
		require.Equal(t, store.ErrImportSessionFinalized, st.Finalize(ctx, session))

		session.Failures[0].Reason = "mutated"
		got, err := st.Get(ctx, org.OrgID, session.SessionID)
		require.NoError(t, err)
		require.Equal(t, 3, got.Added)
		require.Equal(t, "bad amount", got.Failures[0].Reason)
	})

	t.Run("finalize unknown", func(t *testing.T) {
		require.Equal(t, store.ErrImportSessionNotFound, st.Finalize(ctx, newSession(time.Now())))
	})

	t.Run("list newest first", func(t *testing.T) {
		db := NewDB()
		st := NewImportSessionStore(db)
		require.NoError(t, NewOrganizationStore(db).Create(ctx, org))

		base := time.Now()
		var ids []uuid.UUID
		for i := range 3 {
			session := newSession(base.Add(time.Duration(i) * time.Second))
			require.NoError(t, st.Create(ctx, session))
			ids = append(ids, session.SessionID)
		}

		sessions, err := st.List(ctx, org.OrgID, 2, 0)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		require.Equal(t, ids[2], sessions[0].SessionID)

		sessions, err = st.List(ctx, org.OrgID, 2, 2)
		require.NoError(t, err)
		require.Equal(t, ids[0], sessions[0].SessionID)

		_, err = st.Get(ctx, uuid.Must(uuid.NewV7()), ids[0])
		require.ErrorIs(t, err, store.ErrImportSessionNotFound)
	})
}
