package commands

import (
	"context"
	"errors"

	"github.com/wolfeidau/payledger/internal/logger"
)

// ResetCmd wipes every organization, entry, ledger record and import session.
type ResetCmd struct {
	Yes bool `help:"confirm the wipe"`

	Store StoreFlags `embed:""`
}

func (c *ResetCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	if !c.Yes {
		return errors.New("reset deletes all data, pass --yes to confirm")
	}

	stores, closeStores, err := c.Store.open(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	if err := stores.Resetter.Reset(ctx); err != nil {
		return err
	}

	log.Warn().Str("store", c.Store.StoreType).Msg("All data deleted")
	return nil
}
