package reconcile

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/payledger/internal/auth"
	"github.com/wolfeidau/payledger/internal/store"
)

// Resolver finds the existing entry an import row refers to.
//
// Matching runs only inside the tenant's organization, first match wins:
//  1. a non-empty external id matches the entry with the same (platform, external id)
//  2. otherwise (platform, full name, email) matches any live entry
//
// When the row's external id matched nothing, the name and email fallback only
// considers entries without an external id. An entry carrying a different
// external id is a different worker.
type Resolver struct {
	entries store.EntryStore
}

func NewResolver(entries store.EntryStore) *Resolver {
	return &Resolver{entries: entries}
}

// Resolve returns the matched entry id. Not finding a match is not an error.
func (r *Resolver) Resolve(ctx context.Context, tenant auth.Tenant, rec *Record) (uuid.UUID, bool, error) {
	logger := zerolog.Ctx(ctx)

	if rec.ExternalID != "" {
		entry, err := r.entries.FindByExternalID(ctx, tenant.OrgID, rec.Platform, rec.ExternalID)
		switch {
		case err == nil:
			logger.Debug().Str("entry_id", entry.EntryID.String()).Str("match", "external_id").Msg("Resolved entry")
			return entry.EntryID, true, nil
		case !errors.Is(err, store.ErrEntryNotFound):
			return uuid.Nil, false, storageError("resolve by external id", err)
		}
	}

	unkeyedOnly := rec.ExternalID != ""
	entry, err := r.entries.FindByNameEmail(ctx, tenant.OrgID, rec.Platform, rec.FullName, rec.Email, unkeyedOnly)
	switch {
	case err == nil:
		logger.Debug().Str("entry_id", entry.EntryID.String()).Str("match", "name_email").Msg("Resolved entry")
		return entry.EntryID, true, nil
	case errors.Is(err, store.ErrEntryNotFound):
		return uuid.Nil, false, nil
	default:
		return uuid.Nil, false, storageError("resolve by name and email", err)
	}
}
