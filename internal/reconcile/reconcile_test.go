package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payledger/internal/auth"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
	"github.com/wolfeidau/payledger/internal/store/memory"
)

func newTenant(t *testing.T, stores *store.Stores) auth.Tenant {
	t.Helper()

	tenant := auth.Tenant{OrgID: uuid.Must(uuid.NewV7()), UserID: uuid.Must(uuid.NewV7())}
	now := time.Now()
	err := stores.Organizations.Create(context.Background(), &models.Organization{
		OrgID:            tenant.OrgID,
		Name:             "Fleet " + tenant.OrgID.String()[:8],
		OwnerPrincipalID: tenant.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	require.NoError(t, err)

	return tenant
}

func createEntry(t *testing.T, stores *store.Stores, tenant auth.Tenant, fullName, email, externalID string) *models.Entry {
	t.Helper()

	now := time.Now()
	entry := &models.Entry{
		EntryID:    uuid.Must(uuid.NewV7()),
		OrgID:      tenant.OrgID,
		FullName:   fullName,
		Email:      email,
		Platform:   "x",
		ExternalID: externalID,
		CreatedBy:  tenant.UserID,
		UpdatedBy:  tenant.UserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, stores.Entries.Create(context.Background(), entry))

	return entry
}

func record(fullName, email, externalID string) *Record {
	return &Record{
		FullName:   fullName,
		Email:      email,
		Platform:   "x",
		ExternalID: externalID,
	}
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("no entries", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		id, found, err := NewResolver(stores.Entries).Resolve(ctx, tenant, record("Ana Pop", "ana@x.com", "C100"))
		require.NoError(t, err)
		require.False(t, found)
		require.Equal(t, uuid.Nil, id)
	})

	t.Run("external id wins over name and email", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		byName := createEntry(t, stores, tenant, "Ana Pop", "ana@x.com", "")
		byExternal := createEntry(t, stores, tenant, "Ana Popescu", "ana.popescu@x.com", "C100")

		id, found, err := NewResolver(stores.Entries).Resolve(ctx, tenant, record("Ana Pop", "ana@x.com", "C100"))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, byExternal.EntryID, id)
		require.NotEqual(t, byName.EntryID, id)
	})

	t.Run("falls back to name and email", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		existing := createEntry(t, stores, tenant, "Ana Pop", "ana@x.com", "")

		id, found, err := NewResolver(stores.Entries).Resolve(ctx, tenant, record("Ana Pop", "ana@x.com", "C100"))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, existing.EntryID, id)
	})

	t.Run("name and email never match an entry with another external id", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		createEntry(t, stores, tenant, "Ana Pop", "ana@x.com", "C200")

		_, found, err := NewResolver(stores.Entries).Resolve(ctx, tenant, record("Ana Pop", "ana@x.com", "C100"))
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("row without external id matches a keyed entry", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		keyed := createEntry(t, stores, tenant, "Ana Pop", "ana@x.com", "C100")

		id, found, err := NewResolver(stores.Entries).Resolve(ctx, tenant, record("Ana Pop", "ana@x.com", ""))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, keyed.EntryID, id)
	})

	t.Run("row without external id prefers the unkeyed entry", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		createEntry(t, stores, tenant, "Ana Pop", "ana@x.com", "C100")
		unkeyed := createEntry(t, stores, tenant, "Ana Pop", "ana@x.com", "")

		id, found, err := NewResolver(stores.Entries).Resolve(ctx, tenant, record("Ana Pop", "ana@x.com", ""))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, unkeyed.EntryID, id)
	})

	t.Run("never matches across tenants", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenantA := newTenant(t, stores)
		tenantB := newTenant(t, stores)

		createEntry(t, stores, tenantA, "Ana Pop", "ana@x.com", "")
		createEntry(t, stores, tenantA, "Ion Ionescu", "ion@x.com", "C100")

		resolver := NewResolver(stores.Entries)

		_, found, err := resolver.Resolve(ctx, tenantB, record("Ana Pop", "ana@x.com", ""))
		require.NoError(t, err)
		require.False(t, found)

		_, found, err = resolver.Resolve(ctx, tenantB, record("Ion Ionescu", "ion@x.com", "C100"))
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("deleted entries are not matched", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		existing := createEntry(t, stores, tenant, "Ana Pop", "ana@x.com", "C100")
		require.NoError(t, stores.Entries.SoftDelete(ctx, tenant.OrgID, existing.EntryID, tenant.UserID))

		_, found, err := NewResolver(stores.Entries).Resolve(ctx, tenant, record("Ana Pop", "ana@x.com", "C100"))
		require.NoError(t, err)
		require.False(t, found)
	})
}

// foreignEntryStore returns entries owned by another organization from
// GetForUpdate.
type foreignEntryStore struct {
	store.EntryStore
	orgID uuid.UUID
}

func (s *foreignEntryStore) GetForUpdate(ctx context.Context, _, entryID uuid.UUID) (*models.Entry, error) {
	return &models.Entry{EntryID: entryID, OrgID: s.orgID, FullName: "Ana Pop", Email: "ana@x.com", Platform: "x"}, nil
}

func TestReconciler(t *testing.T) {
	ctx := context.Background()
	sessionID := uuid.Must(uuid.NewV7())

	t.Run("creates a new entry", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		rec := record("Ana Pop", "ana@x.com", "C100")
		rec.CompanyName = "Pop Logistics SRL"
		rec.IBAN = "RO49AAAA1B31007593840000"

		entry, created, err := NewReconciler(stores.Entries).Reconcile(ctx, tenant, sessionID, rec, uuid.Nil)
		require.NoError(t, err)
		require.True(t, created)
		require.Equal(t, tenant.OrgID, entry.OrgID)
		require.Equal(t, tenant.UserID, entry.CreatedBy)
		require.NotNil(t, entry.ImportSessionID)
		require.Equal(t, sessionID, *entry.ImportSessionID)

		stored, err := stores.Entries.Get(ctx, tenant.OrgID, entry.EntryID)
		require.NoError(t, err)
		require.Equal(t, "C100", stored.ExternalID)
		require.Equal(t, "Pop Logistics SRL", stored.CompanyName)
		require.Equal(t, "RO49AAAA1B31007593840000", stored.IBAN)
	})

	t.Run("updates present fields and keeps absent ones", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		existing := createEntry(t, stores, tenant, "Ana Pop", "ana@x.com", "C100")
		existing.BankName = "BT"
		existing.Phone = "0700000000"
		require.NoError(t, stores.Entries.Update(ctx, existing))

		rec := record("Ana Maria Pop", "ana@x.com", "C100")
		rec.BankName = "ING"

		actor := auth.Tenant{OrgID: tenant.OrgID, UserID: uuid.Must(uuid.NewV7())}
		entry, created, err := NewReconciler(stores.Entries).Reconcile(ctx, actor, sessionID, rec, existing.EntryID)
		require.NoError(t, err)
		require.False(t, created)

		stored, err := stores.Entries.Get(ctx, tenant.OrgID, entry.EntryID)
		require.NoError(t, err)
		require.Equal(t, "Ana Maria Pop", stored.FullName)
		require.Equal(t, "ING", stored.BankName)
		require.Equal(t, "0700000000", stored.Phone)
		require.Equal(t, actor.UserID, stored.UpdatedBy)
		require.Equal(t, tenant.UserID, stored.CreatedBy)
		require.Nil(t, stored.ImportSessionID)
	})

	t.Run("identical row writes nothing", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		existing := createEntry(t, stores, tenant, "Ana Pop", "ana@x.com", "C100")

		_, created, err := NewReconciler(stores.Entries).Reconcile(ctx, tenant, sessionID, record("Ana Pop", "ana@x.com", "C100"), existing.EntryID)
		require.NoError(t, err)
		require.False(t, created)

		stored, err := stores.Entries.Get(ctx, tenant.OrgID, existing.EntryID)
		require.NoError(t, err)
		require.True(t, existing.UpdatedAt.Equal(stored.UpdatedAt))
	})

	t.Run("entry without external id adopts the row's", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		existing := createEntry(t, stores, tenant, "Ana Pop", "ana@x.com", "")

		entry, _, err := NewReconciler(stores.Entries).Reconcile(ctx, tenant, sessionID, record("Ana Pop", "ana@x.com", "C100"), existing.EntryID)
		require.NoError(t, err)
		require.Equal(t, "C100", entry.ExternalID)
	})

	t.Run("matched entry outside tenant", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		entries := &foreignEntryStore{EntryStore: stores.Entries, orgID: uuid.Must(uuid.NewV7())}

		_, _, err := NewReconciler(entries).Reconcile(ctx, tenant, sessionID, record("Ana Pop", "ana@x.com", ""), uuid.Must(uuid.NewV7()))
		require.ErrorIs(t, err, ErrTenantMismatch)
		require.Equal(t, KindTenantMismatch, KindOf(err))
	})

	t.Run("matched entry vanished", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		_, _, err := NewReconciler(stores.Entries).Reconcile(ctx, tenant, sessionID, record("Ana Pop", "ana@x.com", ""), uuid.Must(uuid.NewV7()))
		require.Equal(t, KindIdentityConflict, KindOf(err))
	})

	t.Run("losing a create race is an identity conflict", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		createEntry(t, stores, tenant, "Ana Pop", "ana@x.com", "C100")

		_, _, err := NewReconciler(stores.Entries).Reconcile(ctx, tenant, sessionID, record("Ana Pop", "ana@x.com", "C100"), uuid.Nil)
		require.ErrorIs(t, err, store.ErrEntryIdentityConflict)
		require.Equal(t, KindIdentityConflict, KindOf(err))
	})

	t.Run("missing required fields", func(t *testing.T) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)

		_, _, err := NewReconciler(stores.Entries).Reconcile(ctx, tenant, sessionID, record("Ana Pop", "", ""), uuid.Nil)
		require.ErrorIs(t, err, ErrInvalidRow)
		require.Equal(t, KindValidation, KindOf(err))
	})
}

func change(amount string, asOf string) Change {
	date, err := ParseDate(asOf)
	if err != nil {
		panic(err)
	}
	return Change{
		Amount:     decimal.RequireFromString(amount),
		AsOfDate:   date,
		Provenance: models.ProvenanceImport,
	}
}

func TestLedger(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*store.Stores, auth.Tenant, *models.Entry) {
		stores, _ := memory.NewStores()
		tenant := newTenant(t, stores)
		return stores, tenant, createEntry(t, stores, tenant, "Ana Pop", "ana@x.com", "C100")
	}

	t.Run("first record is always appended", func(t *testing.T) {
		stores, tenant, entry := setup(t)

		appended, err := NewLedger(stores.Ledger).AppendIfChanged(ctx, tenant, entry.EntryID, change("500", "2024-01-01"))
		require.NoError(t, err)
		require.NotNil(t, appended)
		require.True(t, decimal.NewFromInt(500).Equal(appended.Amount))
		require.Equal(t, tenant.OrgID, appended.OrgID)
		require.Positive(t, appended.Sequence)
	})

	t.Run("unchanged amount is not appended", func(t *testing.T) {
		stores, tenant, entry := setup(t)
		ledger := NewLedger(stores.Ledger)

		_, err := ledger.AppendIfChanged(ctx, tenant, entry.EntryID, change("500", "2024-01-01"))
		require.NoError(t, err)

		appended, err := ledger.AppendIfChanged(ctx, tenant, entry.EntryID, change("500.00", "2024-02-01"))
		require.NoError(t, err)
		require.Nil(t, appended)

		history, err := stores.Ledger.ListByEntry(ctx, tenant.OrgID, entry.EntryID)
		require.NoError(t, err)
		require.Len(t, history, 1)
	})

	t.Run("changed amount appends exactly one record", func(t *testing.T) {
		stores, tenant, entry := setup(t)
		ledger := NewLedger(stores.Ledger)

		_, err := ledger.AppendIfChanged(ctx, tenant, entry.EntryID, change("500", "2024-01-01"))
		require.NoError(t, err)

		appended, err := ledger.AppendIfChanged(ctx, tenant, entry.EntryID, change("500.01", "2024-02-01"))
		require.NoError(t, err)
		require.NotNil(t, appended)

		history, err := stores.Ledger.ListByEntry(ctx, tenant.OrgID, entry.EntryID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		require.True(t, decimal.RequireFromString("500.01").Equal(history[0].Amount))
		require.True(t, decimal.NewFromInt(500).Equal(history[1].Amount))
	})

	t.Run("backdated change is appended but does not become latest", func(t *testing.T) {
		stores, tenant, entry := setup(t)
		ledger := NewLedger(stores.Ledger)

		_, err := ledger.AppendIfChanged(ctx, tenant, entry.EntryID, change("550", "2024-02-01"))
		require.NoError(t, err)

		appended, err := ledger.AppendIfChanged(ctx, tenant, entry.EntryID, change("500", "2024-01-01"))
		require.NoError(t, err)
		require.NotNil(t, appended)

		latest, err := stores.Ledger.Latest(ctx, tenant.OrgID, entry.EntryID)
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(550).Equal(latest.Amount))

		asOf, err := stores.Ledger.AsOf(ctx, tenant.OrgID, entry.EntryID, time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		require.True(t, decimal.NewFromInt(500).Equal(asOf.Amount))
	})

	t.Run("same day ties go to the newest record", func(t *testing.T) {
		stores, tenant, entry := setup(t)
		ledger := NewLedger(stores.Ledger)

		_, err := ledger.AppendIfChanged(ctx, tenant, entry.EntryID, change("500", "2024-01-01"))
		require.NoError(t, err)
		_, err = ledger.AppendIfChanged(ctx, tenant, entry.EntryID, change("520", "2024-01-01"))
		require.NoError(t, err)

		appended, err := ledger.AppendIfChanged(ctx, tenant, entry.EntryID, change("520", "2024-01-01"))
		require.NoError(t, err)
		require.Nil(t, appended)
	})
}
