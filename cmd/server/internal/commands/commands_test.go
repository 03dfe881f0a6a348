package commands

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestTenantFlags(t *testing.T) {
	orgID, userID := uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())

	tenant, err := (&TenantFlags{Org: orgID.String(), User: userID.String()}).tenant()
	require.NoError(t, err)
	require.Equal(t, orgID, tenant.OrgID)
	require.Equal(t, userID, tenant.UserID)

	_, err = (&TenantFlags{Org: "nope", User: userID.String()}).tenant()
	require.ErrorContains(t, err, "invalid organization id")

	_, err = (&TenantFlags{Org: orgID.String(), User: "nope"}).tenant()
	require.ErrorContains(t, err, "invalid user id")
}

func TestAuthFlags(t *testing.T) {
	require.Error(t, (&AuthFlags{}).Validate())
	require.NoError(t, (&AuthFlags{NoAuth: true}).Validate())
	require.NoError(t, (&AuthFlags{PublicKeyFile: "key.pem"}).Validate())

	tenant, err := (&AuthFlags{
		DevOrg:  "01890000-0000-7000-8000-000000000001",
		DevUser: "01890000-0000-7000-8000-000000000002",
	}).devTenant()
	require.NoError(t, err)
	require.Equal(t, "01890000-0000-7000-8000-000000000001", tenant.OrgID.String())
}

func TestStoreFlags(t *testing.T) {
	ctx := context.Background()

	stores, closeStores, err := (&StoreFlags{StoreType: "memory"}).open(ctx)
	require.NoError(t, err)
	defer closeStores()
	require.NotNil(t, stores.Entries)

	_, _, err = (&StoreFlags{StoreType: "postgres"}).open(ctx)
	require.ErrorContains(t, err, "connection string is required")
}

func TestImportFlags(t *testing.T) {
	stores, closeStores, err := (&StoreFlags{StoreType: "memory"}).open(context.Background())
	require.NoError(t, err)
	defer closeStores()

	flags := &ImportFlags{UploadsDir: t.TempDir(), MaxUploadBytes: 1 << 20}
	workbooks, err := flags.workbookImporter(stores)
	require.NoError(t, err)
	require.NotNil(t, workbooks)

	flags.Profiles = "missing.yaml"
	_, err = flags.workbookImporter(stores)
	require.Error(t, err)
}

func TestOrgCmd(t *testing.T) {
	tenant, err := (&OrgCmd{}).tenant()
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), tenant.OrgID.Version())

	orgID := uuid.Must(uuid.NewV7())
	tenant, err = (&OrgCmd{Org: orgID.String()}).tenant()
	require.NoError(t, err)
	require.Equal(t, orgID, tenant.OrgID)

	_, err = (&OrgCmd{Owner: "x"}).tenant()
	require.Error(t, err)

	require.NoError(t, (&OrgCmd{Name: "Fleet", Store: StoreFlags{StoreType: "memory"}}).Run(&Globals{}))
	require.Error(t, (&ResetCmd{Store: StoreFlags{StoreType: "memory"}}).Run(&Globals{}))
	require.NoError(t, (&ResetCmd{Yes: true, Store: StoreFlags{StoreType: "memory"}}).Run(&Globals{}))
}

func TestImportCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glovo.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Nume", "Email", "Venituri"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Ana Pop", "ana@x.com", 500}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	cmd := &ImportCmd{
		File:     path,
		Platform: "glovo",
		Tenant: TenantFlags{
			Org:  uuid.Must(uuid.NewV7()).String(),
			User: uuid.Must(uuid.NewV7()).String(),
		},
		Store:  StoreFlags{StoreType: "memory"},
		Import: ImportFlags{UploadsDir: t.TempDir()},
	}

	// the memory store starts empty, so the organization must be registered
	require.Error(t, cmd.Run(&Globals{}))

	cmd.CreateOrg = "Fleet"
	require.NoError(t, cmd.Run(&Globals{}))
}
