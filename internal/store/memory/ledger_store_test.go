package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
)

func TestLedgerStore(t *testing.T) {
	ctx := context.Background()
	st := NewLedgerStore(NewDB())
	orgID, entryID := uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())

	jan := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)

	appendRecord := func(amount int64, asOf time.Time) *models.SalaryHistory {
		r := &models.SalaryHistory{
			RecordID:   uuid.Must(uuid.NewV7()),
			EntryID:    entryID,
			OrgID:      orgID,
			Amount:     decimal.NewFromInt(amount),
			AsOfDate:   asOf,
			Provenance: models.ProvenanceImport,
		}
		require.NoError(t, st.Append(ctx, r))
		return r
	}

	_, err := st.Latest(ctx, orgID, entryID)
	require.ErrorIs(t, err, store.ErrSalaryHistoryNotFound)

	first := appendRecord(500, feb)
	second := appendRecord(450, jan)
	third := appendRecord(550, feb)
	require.Equal(t, int64(1), first.Sequence)
	require.False(t, third.CreatedAt.IsZero())

	t.Run("latest prefers date then sequence", func(t *testing.T) {
		latest, err := st.Latest(ctx, orgID, entryID)
		require.NoError(t, err)
		require.Equal(t, third.RecordID, latest.RecordID)
	})

	t.Run("list newest first", func(t *testing.T) {
		records, err := st.ListByEntry(ctx, orgID, entryID)
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{third.RecordID, first.RecordID, second.RecordID},
			[]uuid.UUID{records[0].RecordID, records[1].RecordID, records[2].RecordID})
	})

	t.Run("as of", func(t *testing.T) {
		r, err := st.AsOf(ctx, orgID, entryID, jan.Add(36*time.Hour))
		require.NoError(t, err)
		require.Equal(t, second.RecordID, r.RecordID)

		r, err = st.AsOf(ctx, orgID, entryID, feb.Add(23*time.Hour))
		require.NoError(t, err)
		require.Equal(t, third.RecordID, r.RecordID)

		_, err = st.AsOf(ctx, orgID, entryID, jan.AddDate(0, 0, -1))
		require.ErrorIs(t, err, store.ErrSalaryHistoryNotFound)
	})

	t.Run("scoped to organization", func(t *testing.T) {
		records, err := st.ListByEntry(ctx, uuid.Must(uuid.NewV7()), entryID)
		require.NoError(t, err)
		require.Empty(t, records)
	})
}
