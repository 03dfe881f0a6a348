package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
)

func TestDB_InTx(t *testing.T) {
	ctx := context.Background()
	stores, _ := NewStores()

	org := newOrganization(uuid.Must(uuid.NewV7()))
	require.NoError(t, stores.Organizations.Create(ctx, org))

	entry := newEntry(org.OrgID, "Ana Pop", "ana@x.com", "")

	t.Run("rollback on error", func(t *testing.T) {
		errAbort := errors.New("abort")
		err := stores.Tx.InTx(ctx, func(ctx context.Context) error {
			require.NoError(t, stores.Entries.Create(ctx, entry))
			require.NoError(t, stores.Ledger.Append(ctx, &models.SalaryHistory{
				RecordID: uuid.Must(uuid.NewV7()), EntryID: entry.EntryID, OrgID: org.OrgID,
				Amount: decimal.NewFromInt(1), AsOfDate: time.Now(),
			}))
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)

		_, err = stores.Entries.Get(ctx, org.OrgID, entry.EntryID)
		require.ErrorIs(t, err, store.ErrEntryNotFound)
		_, err = stores.Ledger.Latest(ctx, org.OrgID, entry.EntryID)
		require.ErrorIs(t, err, store.ErrSalaryHistoryNotFound)
	})

	t.Run("commit and nested join", func(t *testing.T) {
		err := stores.Tx.InTx(ctx, func(ctx context.Context) error {
			return stores.Tx.InTx(ctx, func(ctx context.Context) error {
				return stores.Entries.Create(ctx, entry)
			})
		})
		require.NoError(t, err)

		_, err = stores.Entries.Get(ctx, org.OrgID, entry.EntryID)
		require.NoError(t, err)
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, stores.Resetter.Reset(ctx))

		_, err := stores.Organizations.Get(ctx, org.OrgID)
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
		_, err = stores.Entries.Get(ctx, org.OrgID, entry.EntryID)
		require.ErrorIs(t, err, store.ErrEntryNotFound)
	})
}
