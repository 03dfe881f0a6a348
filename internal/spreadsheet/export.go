package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/xuri/excelize/v2"
)

var ErrUnknownColumn = errors.New("unknown export column")

// ExportColumn is one selectable column of the entries export.
type ExportColumn struct {
	Key    string
	Header string
	value  func(e *models.Entry, latest *models.SalaryHistory) any
}

// ExportColumns lists the entries export columns in their default order.
var ExportColumns = []ExportColumn{
	{Key: FieldFullName, Header: "Full Name", value: func(e *models.Entry, _ *models.SalaryHistory) any { return e.FullName }},
	{Key: FieldEmail, Header: "Email", value: func(e *models.Entry, _ *models.SalaryHistory) any { return e.Email }},
	{Key: FieldPlatform, Header: "Platform", value: func(e *models.Entry, _ *models.SalaryHistory) any { return e.Platform }},
	{Key: FieldExternalID, Header: "External ID", value: func(e *models.Entry, _ *models.SalaryHistory) any { return e.ExternalID }},
	{Key: FieldCompanyName, Header: "Company", value: func(e *models.Entry, _ *models.SalaryHistory) any { return e.CompanyName }},
	{Key: FieldPhone, Header: "Phone", value: func(e *models.Entry, _ *models.SalaryHistory) any { return e.Phone }},
	{Key: FieldIBAN, Header: "IBAN", value: func(e *models.Entry, _ *models.SalaryHistory) any { return e.IBAN }},
	{Key: FieldBankName, Header: "Bank", value: func(e *models.Entry, _ *models.SalaryHistory) any { return e.BankName }},
	{Key: FieldAmount, Header: "Amount", value: latestMoney(func(r *models.SalaryHistory) decimal.Decimal { return r.Amount })},
	{Key: FieldNet, Header: "Net", value: latestMoney(func(r *models.SalaryHistory) decimal.Decimal { return r.Net })},
	{Key: FieldAsOfDate, Header: "As Of Date", value: func(_ *models.Entry, r *models.SalaryHistory) any {
		if r == nil {
			return ""
		}
		return r.AsOfDate.Format(time.DateOnly)
	}},
	{Key: "created_at", Header: "Created", value: func(e *models.Entry, _ *models.SalaryHistory) any {
		return e.CreatedAt.UTC().Format(time.DateOnly)
	}},
}

func latestMoney(pick func(*models.SalaryHistory) decimal.Decimal) func(*models.Entry, *models.SalaryHistory) any {
	return func(_ *models.Entry, r *models.SalaryHistory) any {
		if r == nil {
			return ""
		}
		return pick(r).InexactFloat64()
	}
}

// SelectColumns resolves column keys, returning every column for an empty list.
func SelectColumns(keys []string) ([]ExportColumn, error) {
	if len(keys) == 0 {
		return slices.Clone(ExportColumns), nil
	}

	selected := make([]ExportColumn, 0, len(keys))
	for _, key := range keys {
		idx := slices.IndexFunc(ExportColumns, func(c ExportColumn) bool { return c.Key == key })
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, key)
		}
		selected = append(selected, ExportColumns[idx])
	}

	return selected, nil
}

// WriteEntries writes an entries workbook with one row per entry. latest maps
// an entry id to its newest ledger record, entries missing from it get empty
// pay columns.
func WriteEntries(w io.Writer, entries []*models.Entry, latest map[uuid.UUID]*models.SalaryHistory, columns []ExportColumn) error {
	headers := make([]any, len(columns))
	for i, c := range columns {
		headers[i] = c.Header
	}

	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = c.value(e, latest[e.EntryID])
		}
		rows = append(rows, row)
	}

	return writeWorkbook(w, "Entries", headers, rows)
}

// WriteHistory writes the salary history of one entry, newest first.
func WriteHistory(w io.Writer, entry *models.Entry, records []*models.SalaryHistory) error {
	headers := []any{"As Of Date", "Amount", "Net", "Tips", "Fee", "Adjustments", "Hours", "Source", "Recorded"}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		var hours any = ""
		if r.Hours != nil {
			hours = r.Hours.InexactFloat64()
		}
		rows = append(rows, []any{
			r.AsOfDate.Format(time.DateOnly),
			r.Amount.InexactFloat64(),
			r.Net.InexactFloat64(),
			r.Tips.InexactFloat64(),
			r.Fee.InexactFloat64(),
			r.Adjustments.InexactFloat64(),
			hours,
			string(r.Provenance),
			r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return writeWorkbook(w, sheetName(entry.FullName), headers, rows)
}

func writeWorkbook(w io.Writer, sheet string, headers []any, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("failed to name worksheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	return nil
}

// sheetName trims a worksheet name to the 31 characters Excel allows and drops
// the characters it rejects.
func sheetName(name string) string {
	clean := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			continue
		}
		clean = append(clean, r)
	}
	if len(clean) > 31 {
		clean = clean[:31]
	}
	if len(clean) == 0 {
		return "History"
	}
	return string(clean)
}
