package server

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/wolfeidau/payledger/internal/roster"
)

type salaryView struct {
	ID              uuid.UUID        `json:"id"`
	Amount          decimal.Decimal  `json:"amount"`
	Net             decimal.Decimal  `json:"net"`
	Tips            decimal.Decimal  `json:"tips"`
	Fee             decimal.Decimal  `json:"fee"`
	Adjustments     decimal.Decimal  `json:"adjustments"`
	Hours           *decimal.Decimal `json:"hours,omitempty"`
	AsOfDate        string           `json:"as_of_date"`
	Provenance      string           `json:"provenance"`
	ImportSessionID *uuid.UUID       `json:"import_session_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

type entryView struct {
	ID              uuid.UUID    `json:"id"`
	FullName        string       `json:"full_name"`
	Email           string       `json:"email"`
	Platform        string       `json:"platform"`
	ExternalID      string       `json:"external_id,omitempty"`
	CompanyName     string       `json:"company_name,omitempty"`
	Phone           string       `json:"phone,omitempty"`
	IBAN            string       `json:"iban,omitempty"`
	BankName        string       `json:"bank_name,omitempty"`
	ImportSessionID *uuid.UUID   `json:"import_session_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	Latest          *salaryView  `json:"latest,omitempty"`
	History         []salaryView `json:"history,omitempty"`
}

type entryPageView struct {
	Entries []entryView `json:"entries"`
	Total   int         `json:"total"`
}

type sessionView struct {
	ID          uuid.UUID           `json:"id"`
	Platform    string              `json:"platform"`
	Source      models.SourceFile   `json:"source"`
	InitiatedBy uuid.UUID           `json:"initiated_by"`
	Status      string              `json:"status"`
	Added       int                 `json:"added"`
	Updated     int                 `json:"updated"`
	Rejected    int                 `json:"rejected"`
	Appended    int                 `json:"appended"`
	Failures    []models.RowFailure `json:"failures"`
	CreatedAt   time.Time           `json:"created_at"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
}

type organizationView struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Bio            string    `json:"bio"`
	SetupCompleted bool      `json:"setup_completed"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toSalaryView(r *models.SalaryHistory) *salaryView {
	if r == nil {
		return nil
	}
	return &salaryView{
		ID:              r.RecordID,
		Amount:          r.Amount,
		Net:             r.Net,
		Tips:            r.Tips,
		Fee:             r.Fee,
		Adjustments:     r.Adjustments,
		Hours:           r.Hours,
		AsOfDate:        r.AsOfDate.Format(time.DateOnly),
		Provenance:      string(r.Provenance),
		ImportSessionID: r.ImportSessionID,
		CreatedAt:       r.CreatedAt,
	}
}

func toSalaryViews(records []*models.SalaryHistory) []salaryView {
	views := make([]salaryView, 0, len(records))
	for _, r := range records {
		views = append(views, *toSalaryView(r))
	}
	return views
}

func toEntryView(e *models.Entry, latest *models.SalaryHistory) entryView {
	return entryView{
		ID:              e.EntryID,
		FullName:        e.FullName,
		Email:           e.Email,
		Platform:        e.Platform,
		ExternalID:      e.ExternalID,
		CompanyName:     e.CompanyName,
		Phone:           e.Phone,
		IBAN:            e.IBAN,
		BankName:        e.BankName,
		ImportSessionID: e.ImportSessionID,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
		Latest:          toSalaryView(latest),
	}
}

func toEntryDetailView(d *roster.EntryDetail) entryView {
	v := toEntryView(d.Entry, d.Latest)
	v.History = toSalaryViews(d.History)
	return v
}

func toSessionView(s *models.ImportSession) sessionView {
	failures := s.Failures
	if failures == nil {
		failures = []models.RowFailure{}
	}
	return sessionView{
		ID:          s.SessionID,
		Platform:    s.Platform,
		Source:      s.Source,
		InitiatedBy: s.InitiatedBy,
		Status:      string(s.Status),
		Added:       s.Added,
		Updated:     s.Updated,
		Rejected:    s.Rejected,
		Appended:    s.Appended,
		Failures:    failures,
		CreatedAt:   s.CreatedAt,
		FinishedAt:  s.FinishedAt,
	}
}

func toOrganizationView(o *models.Organization) organizationView {
	return organizationView{
		ID:             o.OrgID,
		Name:           o.Name,
		Bio:            o.Bio,
		SetupCompleted: o.SetupCompleted,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}
