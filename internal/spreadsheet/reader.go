package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/wolfeidau/payledger/internal/reconcile"
	"github.com/xuri/excelize/v2"
)

var (
	ErrNoSheet       = errors.New("workbook has no worksheet")
	ErrNoHeader      = errors.New("worksheet has no header row")
	ErrMissingColumn = errors.New("required column missing")
)

// Normalizer turns an uploaded .xlsx payroll export into import rows.
type Normalizer struct {
	profile Profile
	index   map[string]string
}

func NewNormalizer(profile Profile) *Normalizer {
	return &Normalizer{profile: profile, index: profile.lookup()}
}

// Rows reads the profile's worksheet. The header row is matched against the
// profile, unknown columns are ignored and empty rows are skipped. Each row
// keeps its worksheet line number. Cell values are not validated here.
func (n *Normalizer) Rows(r io.Reader) ([]reconcile.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := n.profile.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoSheet
		}
		sheet = sheets[0]
	}

	cells, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", sheet, err)
	}

	headerIdx, err := n.findHeader(cells)
	if err != nil {
		return nil, err
	}

	columns, err := n.mapColumns(cells[headerIdx])
	if err != nil {
		return nil, err
	}

	var rows []reconcile.Row
	for i := headerIdx + 1; i < len(cells); i++ {
		if isBlank(cells[i]) {
			continue
		}

		row := reconcile.Row{Line: i + 1}
		for col, field := range columns {
			if col < len(cells[i]) {
				setField(&row, field, cells[i][col])
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func (n *Normalizer) findHeader(cells [][]string) (int, error) {
	if n.profile.HeaderRow > 0 {
		if n.profile.HeaderRow > len(cells) {
			return 0, fmt.Errorf("%w: header row %d is past the end of the sheet", ErrNoHeader, n.profile.HeaderRow)
		}
		return n.profile.HeaderRow - 1, nil
	}

	for i, row := range cells {
		if !isBlank(row) {
			return i, nil
		}
	}

	return 0, ErrNoHeader
}

// mapColumns returns column index to field for the recognised headers.
func (n *Normalizer) mapColumns(header []string) (map[int]string, error) {
	columns := make(map[int]string)
	seen := make(map[string]bool)

	for col, name := range header {
		field, ok := n.index[normalizeHeader(name)]
		if !ok || seen[field] {
			continue
		}
		columns[col] = field
		seen[field] = true
	}

	var missing []string
	for _, field := range requiredFields {
		if !seen[field] {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	return columns, nil
}

func setField(row *reconcile.Row, field, value string) {
	value = strings.TrimSpace(value)

	switch field {
	case FieldFullName:
		row.FullName = value
	case FieldEmail:
		row.Email = value
	case FieldPlatform:
		row.Platform = value
	case FieldExternalID:
		row.ExternalID = value
	case FieldCompanyName:
		row.CompanyName = value
	case FieldPhone:
		row.Phone = value
	case FieldIBAN:
		row.IBAN = value
	case FieldBankName:
		row.BankName = value
	case FieldAmount:
		row.Amount = value
	case FieldNet:
		row.Net = value
	case FieldTips:
		row.Tips = value
	case FieldFee:
		row.Fee = value
	case FieldAdjustments:
		row.Adjustments = value
	case FieldHours:
		row.Hours = value
	case FieldAsOfDate:
		row.AsOfDate = excelDate(value)
	}
}

// excelDate converts a raw date cell, stored as a serial day number, to
// YYYY-MM-DD. Text dates are returned unchanged.
func excelDate(value string) string {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || serial <= 0 {
		return value
	}

	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return value
	}

	return t.Format(time.DateOnly)
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
