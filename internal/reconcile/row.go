package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/wolfeidau/payledger/internal/models"
)

// MoneyPlaces is the number of fractional digits amounts are rounded to.
const MoneyPlaces = 2

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := ParseAmount(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("asofdate", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// Row is one normalized import row as produced by the spreadsheet reader.
// Every field is kept as text until Parse validates it.
type Row struct {
	// Line is the 1-based position of the row in the source file, zero if unknown.
	Line int `json:"line,omitempty"`

	FullName    string `json:"full_name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,max=320"`
	Platform    string `json:"platform,omitempty" validate:"max=100"`
	ExternalID  string `json:"external_id,omitempty" validate:"max=200"`
	CompanyName string `json:"company_name,omitempty" validate:"max=200"`
	Phone       string `json:"phone,omitempty" validate:"max=50"`
	IBAN        string `json:"iban,omitempty" validate:"max=50"`
	BankName    string `json:"bank_name,omitempty" validate:"max=200"`

	Amount      string `json:"amount" validate:"required,amount"`
	Net         string `json:"net,omitempty" validate:"omitempty,amount"`
	Tips        string `json:"tips,omitempty" validate:"omitempty,amount"`
	Fee         string `json:"fee,omitempty" validate:"omitempty,amount"`
	Adjustments string `json:"adjustments,omitempty" validate:"omitempty,amount"`
	Hours       string `json:"hours,omitempty" validate:"omitempty,amount"`
	AsOfDate    string `json:"as_of_date,omitempty" validate:"omitempty,asofdate"`
}

// Normalize trims every field and canonicalises the identity fields.
func (r *Row) Normalize() {
	r.FullName = models.NormalizeName(r.FullName)
	r.Email = models.NormalizeEmail(r.Email)
	r.Platform = models.NormalizePlatform(r.Platform)
	r.ExternalID = strings.TrimSpace(r.ExternalID)
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.IBAN = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(r.IBAN), " ", ""))
	r.BankName = strings.TrimSpace(r.BankName)
	r.Amount = strings.TrimSpace(r.Amount)
	r.Net = strings.TrimSpace(r.Net)
	r.Tips = strings.TrimSpace(r.Tips)
	r.Fee = strings.TrimSpace(r.Fee)
	r.Adjustments = strings.TrimSpace(r.Adjustments)
	r.Hours = strings.TrimSpace(r.Hours)
	r.AsOfDate = strings.TrimSpace(r.AsOfDate)
}

// Record is a validated row: identity and descriptive fields plus the proposed
// ledger change.
type Record struct {
	Line        int
	FullName    string
	Email       string
	Platform    string
	ExternalID  string
	CompanyName string
	Phone       string
	IBAN        string
	BankName    string
	Change      Change
}

// Parse normalizes and validates the row for an import into platform. Rows
// without a date are dated today. A row naming a different platform than the
// batch is rejected. Failures are *RowError with KindValidation.
func (r Row) Parse(platform string, today time.Time) (*Record, error) {
	r.Normalize()
	platform = models.NormalizePlatform(platform)

	if err := validate.Struct(r); err != nil {
		return nil, validationError(err)
	}

	if r.Platform != "" && r.Platform != platform {
		return nil, &RowError{
			Kind: KindValidation,
			Err:  fmt.Errorf("%w: row platform %q does not match import platform %q", ErrInvalidRow, r.Platform, platform),
		}
	}

	rec := &Record{
		Line:        r.Line,
		FullName:    r.FullName,
		Email:       r.Email,
		Platform:    platform,
		ExternalID:  r.ExternalID,
		CompanyName: r.CompanyName,
		Phone:       r.Phone,
		IBAN:        r.IBAN,
		BankName:    r.BankName,
		Change: Change{
			AsOfDate:   models.DateOnly(today),
			Provenance: models.ProvenanceImport,
		},
	}

	// validated above, the parse errors cannot fire
	rec.Change.Amount, _ = ParseAmount(r.Amount)
	rec.Change.Net, _ = parseOptionalAmount(r.Net)
	rec.Change.Tips, _ = parseOptionalAmount(r.Tips)
	rec.Change.Fee, _ = parseOptionalAmount(r.Fee)
	rec.Change.Adjustments, _ = parseOptionalAmount(r.Adjustments)

	if r.Hours != "" {
		hours, _ := ParseAmount(r.Hours)
		rec.Change.Hours = &hours
	}

	if r.AsOfDate != "" {
		rec.Change.AsOfDate, _ = ParseDate(r.AsOfDate)
	}

	return rec, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RowError{Kind: KindValidation, Err: fmt.Errorf("%w: %w", ErrInvalidRow, err)}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "amount":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a valid amount", fe.Field(), fe.Value()))
		case "asofdate":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a valid date", fe.Field(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}

	return &RowError{Kind: KindValidation, Err: fmt.Errorf("%w: %s", ErrInvalidRow, strings.Join(msgs, "; "))}
}

// currencySuffixes are stripped from amounts, compared case-insensitively.
var currencySuffixes = []string{"ron", "lei", "eur"}

// cellNoise bounds the binary float error carried by numeric spreadsheet cells.
var cellNoise = decimal.New(1, -9)

// ParseAmount parses a currency amount with at most MoneyPlaces fractional
// digits. It accepts "1234.5", "1,234.50", "1.234,50", "1234,5", "12,345" and
// a trailing currency code. A lone separator followed by exactly three digits
// groups thousands. Amounts with more fractional digits are rejected rather
// than rounded.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = trimCurrency(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "", "\u00a0", "", "'", "").Replace(s)

	if s == "" {
		return decimal.Zero, errors.New("empty amount")
	}

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")

	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		// 1.234,50
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		// 1,234.50
		s = strings.ReplaceAll(s, ",", "")
	case comma >= 0:
		s = singleSeparator(s, ",")
	case dot >= 0:
		s = singleSeparator(s, ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	rounded := d.Round(MoneyPlaces)
	if d.Sub(rounded).Abs().GreaterThan(cellNoise) {
		return decimal.Zero, fmt.Errorf("invalid amount %q: more than %d fractional digits", s, MoneyPlaces)
	}

	return rounded, nil
}

func trimCurrency(s string) string {
	lower := strings.ToLower(s)
	for _, suffix := range currencySuffixes {
		if strings.HasSuffix(lower, suffix) {
			return strings.TrimSpace(s[:len(s)-len(suffix)])
		}
	}
	return s
}

// singleSeparator normalizes an amount using only sep. Repeated separators
// group thousands ("1.234.567"). A single one is a thousands separator when a
// 1-3 digit non-zero lead is followed by exactly three digits ("12,345"),
// otherwise the decimal point ("1234,5"). Malformed groupings are returned
// unchanged for the decimal parser to reject.
func singleSeparator(s, sep string) string {
	groups := strings.Split(s, sep)

	if len(groups) > 2 {
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return s
			}
		}
		return strings.Join(groups, "")
	}

	lead := strings.TrimPrefix(groups[0], "-")
	if len(groups[1]) == 3 && len(lead) >= 1 && len(lead) <= 3 && strings.TrimLeft(lead, "0") != "" {
		return groups[0] + groups[1]
	}

	return groups[0] + "." + groups[1]
}

func parseOptionalAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return ParseAmount(s)
}

var dateLayouts = []string{
	time.DateOnly,
	"02.01.2006",
	"02/01/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// ParseDate parses an as-of date and truncates it to the calendar day.
// Slash dates are read day first.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.DateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
