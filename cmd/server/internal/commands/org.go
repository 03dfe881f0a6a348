package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/payledger/internal/auth"
	"github.com/wolfeidau/payledger/internal/logger"
	"github.com/wolfeidau/payledger/internal/roster"
)

// OrgCmd registers an organization so tokens can be issued for it.
type OrgCmd struct {
	Name  string `help:"organization name" required:""`
	Org   string `help:"organization id, generated when empty" env:"PAYLEDGER_ORG_ID"`
	Owner string `help:"owning user id, generated when empty" env:"PAYLEDGER_USER_ID"`

	Store StoreFlags `embed:""`
}

func (c *OrgCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := log.WithContext(context.Background())

	tenant, err := c.tenant()
	if err != nil {
		return err
	}

	stores, closeStores, err := c.Store.open(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	org, created, err := roster.NewService(stores).EnsureOrganization(ctx, tenant, c.Name)
	if err != nil {
		return err
	}
	if !created {
		log.Warn().Str("org_id", org.OrgID.String()).Msg("Organization already exists")
	}

	fmt.Printf("org_id=%s\nuser_id=%s\n", org.OrgID, org.OwnerPrincipalID)
	return nil
}

func (c *OrgCmd) tenant() (auth.Tenant, error) {
	var (
		tenant = auth.Tenant{OrgID: uuid.Must(uuid.NewV7()), UserID: uuid.Must(uuid.NewV7())}
		err    error
	)
	if c.Org != "" {
		if tenant.OrgID, err = uuid.Parse(c.Org); err != nil {
			return auth.Tenant{}, fmt.Errorf("invalid organization id: %w", err)
		}
	}
	if c.Owner != "" {
		if tenant.UserID, err = uuid.Parse(c.Owner); err != nil {
			return auth.Tenant{}, fmt.Errorf("invalid user id: %w", err)
		}
	}
	return tenant, nil
}
