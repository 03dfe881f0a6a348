package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wolfeidau/payledger/internal/logger"
	"github.com/wolfeidau/payledger/internal/roster"
)

// ImportCmd runs one import batch from a workbook on local disk.
type ImportCmd struct {
	File      string `arg:"" help:"xlsx workbook to import" type:"existingfile"`
	Platform  string `help:"platform the workbook was exported from" required:""`
	CreateOrg string `help:"register the organization under this name if it does not exist yet"`

	Tenant TenantFlags `embed:""`
	Store  StoreFlags  `embed:""`
	Import ImportFlags `embed:"" prefix:"import-"`
}

func (c *ImportCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := log.WithContext(context.Background())

	tenant, err := c.Tenant.tenant()
	if err != nil {
		return err
	}

	stores, closeStores, err := c.Store.open(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	if c.CreateOrg != "" {
		if _, _, err := roster.NewService(stores).EnsureOrganization(ctx, tenant, c.CreateOrg); err != nil {
			return err
		}
	}

	workbooks, err := c.Import.workbookImporter(stores)
	if err != nil {
		return fmt.Errorf("failed to configure imports: %w", err)
	}

	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	summary, err := workbooks.Import(ctx, tenant, c.Platform, filepath.Base(c.File), f)
	if err != nil {
		return err
	}

	log.Info().
		Str("session_id", summary.SessionID.String()).
		Int("added", summary.Added).
		Int("updated", summary.Updated).
		Int("rejected", summary.Rejected).
		Msg("Import finished")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
