// Package roster manages entries outside of imports: manual edits, reads,
// exports and organization settings.
package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wolfeidau/payledger/internal/auth"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/reconcile"
	"github.com/wolfeidau/payledger/internal/spreadsheet"
	"github.com/wolfeidau/payledger/internal/store"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

var ErrInvalidInput = errors.New("invalid input")

var validate = validator.New(validator.WithRequiredStructEnabled())

// SalaryInput is a manually entered pay figure.
type SalaryInput struct {
	Amount      decimal.Decimal  `json:"amount"`
	Net         decimal.Decimal  `json:"net"`
	Tips        decimal.Decimal  `json:"tips"`
	Fee         decimal.Decimal  `json:"fee"`
	Adjustments decimal.Decimal  `json:"adjustments"`
	Hours       *decimal.Decimal `json:"hours,omitempty"`
	AsOfDate    string           `json:"as_of_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// EntryInput creates an entry by hand.
type EntryInput struct {
	FullName    string       `json:"full_name" validate:"required,max=200"`
	Email       string       `json:"email" validate:"required,email,max=320"`
	Platform    string       `json:"platform" validate:"required,max=100"`
	ExternalID  string       `json:"external_id,omitempty" validate:"max=200"`
	CompanyName string       `json:"company_name,omitempty" validate:"max=200"`
	Phone       string       `json:"phone,omitempty" validate:"max=50"`
	IBAN        string       `json:"iban,omitempty" validate:"max=50"`
	BankName    string       `json:"bank_name,omitempty" validate:"max=200"`
	Salary      *SalaryInput `json:"salary,omitempty"`
}

// EntryPatch edits an entry. Nil fields are left alone.
type EntryPatch struct {
	FullName    *string      `json:"full_name,omitempty" validate:"omitempty,min=1,max=200"`
	Email       *string      `json:"email,omitempty" validate:"omitempty,email,max=320"`
	ExternalID  *string      `json:"external_id,omitempty" validate:"omitempty,max=200"`
	CompanyName *string      `json:"company_name,omitempty" validate:"omitempty,max=200"`
	Phone       *string      `json:"phone,omitempty" validate:"omitempty,max=50"`
	IBAN        *string      `json:"iban,omitempty" validate:"omitempty,max=50"`
	BankName    *string      `json:"bank_name,omitempty" validate:"omitempty,max=200"`
	Salary      *SalaryInput `json:"salary,omitempty"`
}

// OrganizationUpdate edits organization settings. Nil fields are left alone.
type OrganizationUpdate struct {
	Name           *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Bio            *string `json:"bio,omitempty" validate:"omitempty,max=2000"`
	SetupCompleted *bool   `json:"setup_completed,omitempty"`
}

// EntryView is an entry with its newest ledger record, nil for an empty ledger.
type EntryView struct {
	Entry  *models.Entry
	Latest *models.SalaryHistory
}

// EntryPage is one page of an entry listing.
type EntryPage struct {
	Entries []EntryView
	Total   int
}

// EntryDetail is an entry with its full ledger, newest first.
type EntryDetail struct {
	EntryView
	History []*models.SalaryHistory
}

// Service implements the roster operations for one store backend.
type Service struct {
	stores *store.Stores
	ledger *reconcile.Ledger
	now    func() time.Time
}

func NewService(stores *store.Stores) *Service {
	return &Service{
		stores: stores,
		ledger: reconcile.NewLedger(stores.Ledger),
		now:    time.Now,
	}
}

// CreateEntry adds an entry by hand. An initial salary, if given, is recorded
// with manual provenance in the same transaction.
func (s *Service) CreateEntry(ctx context.Context, tenant auth.Tenant, in EntryInput) (*EntryDetail, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := in.Salary.checkPrecision(); err != nil {
		return nil, err
	}

	now := s.now()
	entry := &models.Entry{
		EntryID:     uuid.Must(uuid.NewV7()),
		OrgID:       tenant.OrgID,
		FullName:    models.NormalizeName(in.FullName),
		Email:       models.NormalizeEmail(in.Email),
		Platform:    models.NormalizePlatform(in.Platform),
		ExternalID:  strings.TrimSpace(in.ExternalID),
		CompanyName: strings.TrimSpace(in.CompanyName),
		Phone:       strings.TrimSpace(in.Phone),
		IBAN:        normalizeIBAN(in.IBAN),
		BankName:    strings.TrimSpace(in.BankName),
		CreatedBy:   tenant.UserID,
		UpdatedBy:   tenant.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.stores.Tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Entries.Create(ctx, entry); err != nil {
			return fmt.Errorf("failed to create entry: %w", err)
		}
		if in.Salary == nil {
			return nil
		}
		_, err := s.ledger.AppendIfChanged(ctx, tenant, entry.EntryID, s.manualChange(in.Salary))
		return err
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("entry_id", entry.EntryID.String()).Msg("Created entry")

	return s.GetEntry(ctx, tenant, entry.EntryID)
}

// UpdateEntry edits an entry. A salary whose amount differs from the latest
// record appends a manual ledger record, an equal amount appends nothing.
func (s *Service) UpdateEntry(ctx context.Context, tenant auth.Tenant, entryID uuid.UUID, patch EntryPatch) (*EntryDetail, error) {
	if err := validateInput(patch); err != nil {
		return nil, err
	}
	if err := patch.Salary.checkPrecision(); err != nil {
		return nil, err
	}

	err := s.stores.Tx.InTx(ctx, func(ctx context.Context) error {
		entry, err := s.stores.Entries.GetForUpdate(ctx, tenant.OrgID, entryID)
		if err != nil {
			return err
		}

		if applyPatch(entry, patch) {
			entry.UpdatedBy = tenant.UserID
			entry.UpdatedAt = s.now()
			if err := s.stores.Entries.Update(ctx, entry); err != nil {
				return fmt.Errorf("failed to update entry: %w", err)
			}
		}

		if patch.Salary == nil {
			return nil
		}
		_, err = s.ledger.AppendIfChanged(ctx, tenant, entryID, s.manualChange(patch.Salary))
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.GetEntry(ctx, tenant, entryID)
}

// DeleteEntry soft deletes an entry. Its ledger is kept.
func (s *Service) DeleteEntry(ctx context.Context, tenant auth.Tenant, entryID uuid.UUID) error {
	if err := s.stores.Entries.SoftDelete(ctx, tenant.OrgID, entryID, tenant.UserID); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Str("entry_id", entryID.String()).Msg("Deleted entry")
	return nil
}

// GetEntry returns an entry with its ledger.
func (s *Service) GetEntry(ctx context.Context, tenant auth.Tenant, entryID uuid.UUID) (*EntryDetail, error) {
	entry, err := s.stores.Entries.Get(ctx, tenant.OrgID, entryID)
	if err != nil {
		return nil, err
	}

	history, err := s.stores.Ledger.ListByEntry(ctx, tenant.OrgID, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list salary history: %w", err)
	}

	detail := &EntryDetail{EntryView: EntryView{Entry: entry}, History: history}
	if len(history) > 0 {
		detail.Latest = history[0]
	}

	return detail, nil
}

// ListEntries returns one page of entries with their latest pay.
func (s *Service) ListEntries(ctx context.Context, tenant auth.Tenant, filter store.EntryFilter) (*EntryPage, error) {
	filter.Platform = models.NormalizePlatform(filter.Platform)
	filter.Limit = pageSize(filter.Limit)
	filter.Offset = max(filter.Offset, 0)

	entries, err := s.stores.Entries.List(ctx, tenant.OrgID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	total, err := s.stores.Entries.Count(ctx, tenant.OrgID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	views, err := s.withLatest(ctx, tenant, entries)
	if err != nil {
		return nil, err
	}

	return &EntryPage{Entries: views, Total: total}, nil
}

// History returns an entry's ledger, newest first.
func (s *Service) History(ctx context.Context, tenant auth.Tenant, entryID uuid.UUID) ([]*models.SalaryHistory, error) {
	if _, err := s.stores.Entries.Get(ctx, tenant.OrgID, entryID); err != nil {
		return nil, err
	}
	return s.stores.Ledger.ListByEntry(ctx, tenant.OrgID, entryID)
}

// AsOf returns the ledger record in effect on date.
func (s *Service) AsOf(ctx context.Context, tenant auth.Tenant, entryID uuid.UUID, date time.Time) (*models.SalaryHistory, error) {
	if _, err := s.stores.Entries.Get(ctx, tenant.OrgID, entryID); err != nil {
		return nil, err
	}
	return s.stores.Ledger.AsOf(ctx, tenant.OrgID, entryID, models.DateOnly(date))
}

// ExportEntries writes every entry matching filter, ignoring its paging, as
// an xlsx workbook with the selected columns.
func (s *Service) ExportEntries(ctx context.Context, tenant auth.Tenant, w io.Writer, filter store.EntryFilter, columns []string) error {
	selected, err := spreadsheet.SelectColumns(columns)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	filter.Platform = models.NormalizePlatform(filter.Platform)
	filter.Limit = MaxPageSize
	filter.Offset = 0

	var entries []*models.Entry
	for {
		page, err := s.stores.Entries.List(ctx, tenant.OrgID, filter)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}
		entries = append(entries, page...)
		if len(page) < filter.Limit {
			break
		}
		filter.Offset += len(page)
	}

	latest := make(map[uuid.UUID]*models.SalaryHistory, len(entries))
	views, err := s.withLatest(ctx, tenant, entries)
	if err != nil {
		return err
	}
	for _, v := range views {
		if v.Latest != nil {
			latest[v.Entry.EntryID] = v.Latest
		}
	}

	return spreadsheet.WriteEntries(w, entries, latest, selected)
}

// ExportHistory writes an entry's ledger as an xlsx workbook.
func (s *Service) ExportHistory(ctx context.Context, tenant auth.Tenant, w io.Writer, entryID uuid.UUID) error {
	detail, err := s.GetEntry(ctx, tenant, entryID)
	if err != nil {
		return err
	}
	return spreadsheet.WriteHistory(w, detail.Entry, detail.History)
}

// Organization returns the tenant's organization.
func (s *Service) Organization(ctx context.Context, tenant auth.Tenant) (*models.Organization, error) {
	return s.stores.Organizations.Get(ctx, tenant.OrgID)
}

// EnsureOrganization returns the tenant's organization, creating it with
// name and the tenant's user as owner when it does not exist yet.
func (s *Service) EnsureOrganization(ctx context.Context, tenant auth.Tenant, name string) (*models.Organization, bool, error) {
	org, err := s.stores.Organizations.Get(ctx, tenant.OrgID)
	if err == nil {
		return org, false, nil
	}
	if !errors.Is(err, store.ErrOrganizationNotFound) {
		return nil, false, err
	}

	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return nil, false, fmt.Errorf("%w: organization name must be 1 to 200 characters", ErrInvalidInput)
	}

	now := s.now()
	org = &models.Organization{
		OrgID:            tenant.OrgID,
		Name:             name,
		OwnerPrincipalID: tenant.UserID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.stores.Organizations.Create(ctx, org); err != nil {
		if errors.Is(err, store.ErrOrganizationAlreadyExists) {
			org, err = s.stores.Organizations.Get(ctx, tenant.OrgID)
			return org, false, err
		}
		return nil, false, fmt.Errorf("failed to create organization: %w", err)
	}

	zerolog.Ctx(ctx).Info().Str("org_id", org.OrgID.String()).Str("name", org.Name).Msg("organization created")

	return org, true, nil
}

// UpdateOrganization edits the tenant's organization settings.
func (s *Service) UpdateOrganization(ctx context.Context, tenant auth.Tenant, update OrganizationUpdate) (*models.Organization, error) {
	if err := validateInput(update); err != nil {
		return nil, err
	}

	org, err := s.stores.Organizations.Get(ctx, tenant.OrgID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		org.Name = strings.TrimSpace(*update.Name)
	}
	if update.Bio != nil {
		org.Bio = strings.TrimSpace(*update.Bio)
	}
	if update.SetupCompleted != nil {
		org.SetupCompleted = *update.SetupCompleted
	}
	org.UpdatedAt = s.now()

	if err := s.stores.Organizations.Update(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	return org, nil
}

// ImportSessions lists the tenant's import sessions, newest first.
func (s *Service) ImportSessions(ctx context.Context, tenant auth.Tenant, limit, offset int) ([]*models.ImportSession, error) {
	return s.stores.ImportSessions.List(ctx, tenant.OrgID, pageSize(limit), max(offset, 0))
}

// ImportSession returns one import session.
func (s *Service) ImportSession(ctx context.Context, tenant auth.Tenant, sessionID uuid.UUID) (*models.ImportSession, error) {
	return s.stores.ImportSessions.Get(ctx, tenant.OrgID, sessionID)
}

func (s *Service) withLatest(ctx context.Context, tenant auth.Tenant, entries []*models.Entry) ([]EntryView, error) {
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		latest, err := s.stores.Ledger.Latest(ctx, tenant.OrgID, e.EntryID)
		if err != nil && !errors.Is(err, store.ErrSalaryHistoryNotFound) {
			return nil, fmt.Errorf("failed to load latest salary: %w", err)
		}
		views = append(views, EntryView{Entry: e, Latest: latest})
	}
	return views, nil
}

// checkPrecision rejects figures with more than reconcile.MoneyPlaces
// fractional digits. A nil salary passes.
func (in *SalaryInput) checkPrecision() error {
	if in == nil {
		return nil
	}

	hours := decimal.Zero
	if in.Hours != nil {
		hours = *in.Hours
	}

	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"amount", in.Amount},
		{"net", in.Net},
		{"tips", in.Tips},
		{"fee", in.Fee},
		{"adjustments", in.Adjustments},
		{"hours", hours},
	} {
		if !f.value.Equal(f.value.Round(reconcile.MoneyPlaces)) {
			return fmt.Errorf("%w: %s %s has more than %d fractional digits", ErrInvalidInput, f.name, f.value, reconcile.MoneyPlaces)
		}
	}
	return nil
}

func (s *Service) manualChange(in *SalaryInput) reconcile.Change {
	asOf := models.DateOnly(s.now())
	if in.AsOfDate != "" {
		// validated as YYYY-MM-DD
		asOf, _ = time.Parse(time.DateOnly, in.AsOfDate)
	}

	return reconcile.Change{
		Amount:      in.Amount,
		Net:         in.Net,
		Tips:        in.Tips,
		Fee:         in.Fee,
		Adjustments: in.Adjustments,
		Hours:       in.Hours,
		AsOfDate:    asOf,
		Provenance:  models.ProvenanceManual,
	}
}

func applyPatch(entry *models.Entry, patch EntryPatch) bool {
	changed := false

	set := func(dst *string, src *string, norm func(string) string) {
		if src == nil {
			return
		}
		if v := norm(*src); *dst != v {
			*dst = v
			changed = true
		}
	}

	set(&entry.FullName, patch.FullName, models.NormalizeName)
	set(&entry.Email, patch.Email, models.NormalizeEmail)
	set(&entry.ExternalID, patch.ExternalID, strings.TrimSpace)
	set(&entry.CompanyName, patch.CompanyName, strings.TrimSpace)
	set(&entry.Phone, patch.Phone, strings.TrimSpace)
	set(&entry.IBAN, patch.IBAN, normalizeIBAN)
	set(&entry.BankName, patch.BankName, strings.TrimSpace)

	return changed
}

func validateInput(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}

		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
	}
	return nil
}

func normalizeIBAN(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	}
	return limit
}
