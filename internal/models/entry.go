package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is a worker tracked by an organization, usually first seen on a payroll import.
type Entry struct {
	EntryID uuid.UUID // UUIDv7
	OrgID   uuid.UUID // UUIDv7, FK to organizations

	FullName   string
	Email      string // stored lower-case
	Platform   string // source gig platform, e.g. "glovo"
	ExternalID string // worker id assigned by the platform, empty when the platform has none

	// Optional descriptive and banking metadata
	CompanyName string
	Phone       string
	IBAN        string
	BankName    string

	CreatedBy       uuid.UUID  // user that created the entry
	UpdatedBy       uuid.UUID  // user that last changed the entry
	ImportSessionID *uuid.UUID // session that first created the entry, nil for manual entries

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IdentityKey is the tuple used to match an import row to an existing entry
// within one organization.
type IdentityKey struct {
	OrgID      uuid.UUID
	Platform   string
	ExternalID string
	FullName   string
	Email      string
}

// Identity returns the identity key of the entry.
func (e *Entry) Identity() IdentityKey {
	return IdentityKey{
		OrgID:      e.OrgID,
		Platform:   e.Platform,
		ExternalID: e.ExternalID,
		FullName:   e.FullName,
		Email:      e.Email,
	}
}

// HasExternalID reports whether the key is keyed by a platform issued identifier.
func (k IdentityKey) HasExternalID() bool {
	return k.ExternalID != ""
}

// IsDeleted returns true if the entry was removed by a user.
func (e *Entry) IsDeleted() bool {
	return e.DeletedAt != nil
}

// NormalizeName trims and collapses internal whitespace so names typed with
// stray spaces still resolve to the same entry.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePlatform trims and lower-cases a platform identifier.
func NormalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}
