package spreadsheet

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Row fields a header can map to.
const (
	FieldFullName    = "full_name"
	FieldEmail       = "email"
	FieldPlatform    = "platform"
	FieldExternalID  = "external_id"
	FieldCompanyName = "company_name"
	FieldPhone       = "phone"
	FieldIBAN        = "iban"
	FieldBankName    = "bank_name"
	FieldAmount      = "amount"
	FieldNet         = "net"
	FieldTips        = "tips"
	FieldFee         = "fee"
	FieldAdjustments = "adjustments"
	FieldHours       = "hours"
	FieldAsOfDate    = "as_of_date"
)

var requiredFields = []string{FieldFullName, FieldEmail, FieldAmount}

// defaultColumns understands the Romanian payroll exports the couriers send as
// well as plain English headers.
var defaultColumns = map[string][]string{
	FieldFullName:    {"Nume", "Name", "Full Name", "FullName", "Nume Complet", "Courier Name"},
	FieldEmail:       {"Email", "E-mail", "Mail"},
	FieldPlatform:    {"Platforma", "Platform"},
	FieldExternalID:  {"ID", "ID Curier", "Courier ID", "Driver ID", "External ID", "ExternalID"},
	FieldCompanyName: {"Firma", "Companie", "Company", "Company Name"},
	FieldPhone:       {"Telefon", "Phone"},
	FieldIBAN:        {"IBAN", "Cont"},
	FieldBankName:    {"Banca", "Bank", "Bank Name"},
	FieldAmount:      {"Venituri", "Amount", "Gross", "Salary", "Suma"},
	FieldNet:         {"Total Venituri de transferat", "Net", "Net Amount"},
	FieldTips:        {"Tips", "Bacsis"},
	FieldFee:         {"Taxa aplicatie", "Fee", "App Fee"},
	FieldAdjustments: {"Ajustari Totale", "Adjustments"},
	FieldHours:       {"Ore", "Hours"},
	FieldAsOfDate:    {"Data", "Date", "As Of Date", "AsOfDate", "Period End"},
}

// Profile maps the headers of one platform's payroll export to row fields.
type Profile struct {
	// Sheet is the worksheet to read, the first sheet when empty.
	Sheet string `yaml:"sheet"`

	// HeaderRow is the 1-based row holding the headers, the first non-empty
	// row when zero.
	HeaderRow int `yaml:"header_row"`

	// Columns lists the accepted header names per field.
	Columns map[string][]string `yaml:"columns"`
}

// DefaultProfile returns a profile with the built-in header aliases.
func DefaultProfile() Profile {
	columns := make(map[string][]string, len(defaultColumns))
	for field, aliases := range defaultColumns {
		columns[field] = slices.Clone(aliases)
	}
	return Profile{Columns: columns}
}

// lookup returns a normalized header to field index. When two fields share an
// alias the field sorting first keeps it.
func (p Profile) lookup() map[string]string {
	index := make(map[string]string)
	for _, field := range slices.Sorted(maps.Keys(p.Columns)) {
		for _, alias := range p.Columns[field] {
			key := normalizeHeader(alias)
			if _, taken := index[key]; !taken {
				index[key] = field
			}
		}
	}
	return index
}

// Profiles holds the column profile of each platform.
type Profiles struct {
	Default   Profile            `yaml:"default"`
	Platforms map[string]Profile `yaml:"platforms"`
}

// DefaultProfiles returns profiles with only the built-in default.
func DefaultProfiles() *Profiles {
	return &Profiles{Default: DefaultProfile(), Platforms: map[string]Profile{}}
}

// LoadProfiles reads platform profiles from a YAML file. Columns named in the
// file are added to the built-in aliases, they never remove them.
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read column profiles: %w", err)
	}

	var raw Profiles
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse column profiles %s: %w", path, err)
	}

	for field := range raw.Default.Columns {
		if _, ok := defaultColumns[field]; !ok {
			return nil, fmt.Errorf("column profiles %s: unknown field %q", path, field)
		}
	}

	profiles := DefaultProfiles()
	profiles.Default = merge(profiles.Default, raw.Default)

	for platform, p := range raw.Platforms {
		for field := range p.Columns {
			if _, ok := defaultColumns[field]; !ok {
				return nil, fmt.Errorf("column profiles %s: platform %s: unknown field %q", path, platform, field)
			}
		}
		profiles.Platforms[strings.ToLower(strings.TrimSpace(platform))] = merge(profiles.Default, p)
	}

	return profiles, nil
}

// For returns the profile of platform, falling back to the default.
func (p *Profiles) For(platform string) Profile {
	if profile, ok := p.Platforms[strings.ToLower(strings.TrimSpace(platform))]; ok {
		return profile
	}
	return p.Default
}

func merge(base, override Profile) Profile {
	out := Profile{
		Sheet:     base.Sheet,
		HeaderRow: base.HeaderRow,
		Columns:   make(map[string][]string, len(base.Columns)),
	}
	for field, aliases := range base.Columns {
		out.Columns[field] = slices.Clone(aliases)
	}

	if override.Sheet != "" {
		out.Sheet = override.Sheet
	}
	if override.HeaderRow > 0 {
		out.HeaderRow = override.HeaderRow
	}
	for field, aliases := range override.Columns {
		// an alias claimed by the override is released by every other field
		for _, alias := range aliases {
			key := normalizeHeader(alias)
			for other, existing := range out.Columns {
				out.Columns[other] = slices.DeleteFunc(existing, func(a string) bool {
					return normalizeHeader(a) == key
				})
			}
		}
		out.Columns[field] = append(slices.Clone(aliases), out.Columns[field]...)
	}

	return out
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeHeader lower-cases, strips diacritics and collapses whitespace so
// "Ajustări  Totale" matches "ajustari totale".
func normalizeHeader(s string) string {
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}
