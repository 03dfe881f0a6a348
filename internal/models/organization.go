package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents an organization (tenant) in the system.
// Every entry, ledger record and import session belongs to exactly one organization.
type Organization struct {
	OrgID            uuid.UUID // UUIDv7
	Name             string
	Bio              string
	OwnerPrincipalID uuid.UUID // UUIDv7, the user who registered the organization
	SetupCompleted   bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
