package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/wolfeidau/payledger/internal/auth"
)

// TokenCmd mints a bearer token for a tenant.
type TokenCmd struct {
	TTL            time.Duration `help:"Token lifetime" default:"1h"`
	SigningKeyFile string        `help:"PEM file with the ECDSA P-256 signing key" required:"" env:"PAYLEDGER_SIGNING_KEY_FILE" type:"existingfile"`

	Tenant TenantFlags `embed:""`
}

func (t *TokenCmd) Run(ctx context.Context) error {
	tenant, err := t.Tenant.tenant()
	if err != nil {
		return err
	}

	signingKey, err := os.ReadFile(t.SigningKeyFile)
	if err != nil {
		return fmt.Errorf("failed to read signing key: %w", err)
	}

	token, err := auth.IssueToken(string(signingKey), tenant, t.TTL)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
