package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/payledger/internal/auth"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/store"
)

// Reconciler creates or updates the entry an import row refers to.
type Reconciler struct {
	entries store.EntryStore
	now     func() time.Time
}

func NewReconciler(entries store.EntryStore) *Reconciler {
	return &Reconciler{entries: entries, now: time.Now}
}

// Reconcile creates a new entry when matched is uuid.Nil, otherwise it updates
// the matched entry with the descriptive fields present in rec. Fields absent
// from rec are kept and an entry whose fields already match is not written, so
// re-importing the same row twice changes nothing.
//
// The matched entry is locked for the rest of the surrounding transaction.
// created is true only when a new entry was inserted.
func (r *Reconciler) Reconcile(ctx context.Context, tenant auth.Tenant, sessionID uuid.UUID, rec *Record, matched uuid.UUID) (entry *models.Entry, created bool, err error) {
	if rec.FullName == "" || rec.Email == "" || rec.Platform == "" {
		return nil, false, &RowError{Kind: KindValidation, Err: fmt.Errorf("%w: full name, email and platform are required", ErrInvalidRow)}
	}

	if matched == uuid.Nil {
		entry, err = r.create(ctx, tenant, sessionID, rec)
		if err != nil {
			return nil, false, err
		}
		return entry, true, nil
	}

	entry, err = r.entries.GetForUpdate(ctx, tenant.OrgID, matched)
	if err != nil {
		if errors.Is(err, store.ErrEntryNotFound) {
			// deleted or re-keyed between resolve and lock; resolve again
			return nil, false, &RowError{Kind: KindIdentityConflict, Err: fmt.Errorf("matched entry %s disappeared: %w", matched, err)}
		}
		return nil, false, storageError("load matched entry", err)
	}

	if entry.OrgID != tenant.OrgID {
		zerolog.Ctx(ctx).Error().
			Str("entry_id", entry.EntryID.String()).
			Str("entry_org_id", entry.OrgID.String()).
			Str("tenant_org_id", tenant.OrgID.String()).
			Msg("Matched entry outside tenant")
		return nil, false, &RowError{Kind: KindTenantMismatch, Err: fmt.Errorf("%w: entry %s", ErrTenantMismatch, entry.EntryID)}
	}

	if !applyRecord(entry, rec) {
		return entry, false, nil
	}

	entry.UpdatedBy = tenant.UserID
	entry.UpdatedAt = r.now()

	if err := r.entries.Update(ctx, entry); err != nil {
		if errors.Is(err, store.ErrEntryNotFound) {
			return nil, false, &RowError{Kind: KindIdentityConflict, Err: fmt.Errorf("matched entry %s disappeared: %w", matched, err)}
		}
		return nil, false, storageError("update entry", err)
	}

	return entry, false, nil
}

func (r *Reconciler) create(ctx context.Context, tenant auth.Tenant, sessionID uuid.UUID, rec *Record) (*models.Entry, error) {
	now := r.now()

	entry := &models.Entry{
		EntryID:     uuid.Must(uuid.NewV7()),
		OrgID:       tenant.OrgID,
		FullName:    rec.FullName,
		Email:       rec.Email,
		Platform:    rec.Platform,
		ExternalID:  rec.ExternalID,
		CompanyName: rec.CompanyName,
		Phone:       rec.Phone,
		IBAN:        rec.IBAN,
		BankName:    rec.BankName,
		CreatedBy:   tenant.UserID,
		UpdatedBy:   tenant.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if sessionID != uuid.Nil {
		entry.ImportSessionID = &sessionID
	}

	if err := r.entries.Create(ctx, entry); err != nil {
		return nil, storageError("create entry", err)
	}

	return entry, nil
}

// applyRecord copies the non-empty descriptive fields of rec onto entry and
// reports whether anything changed. An entry without an external id adopts
// the row's. An existing external id is never replaced.
func applyRecord(entry *models.Entry, rec *Record) bool {
	changed := false

	set := func(dst *string, src string) {
		if src != "" && *dst != src {
			*dst = src
			changed = true
		}
	}

	set(&entry.FullName, rec.FullName)
	set(&entry.Email, rec.Email)
	set(&entry.CompanyName, rec.CompanyName)
	set(&entry.Phone, rec.Phone)
	set(&entry.IBAN, rec.IBAN)
	set(&entry.BankName, rec.BankName)

	if entry.ExternalID == "" {
		set(&entry.ExternalID, rec.ExternalID)
	}

	return changed
}
