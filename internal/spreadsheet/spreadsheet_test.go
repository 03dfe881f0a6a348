package spreadsheet

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payledger/internal/models"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestNormalizerRows(t *testing.T) {
	t.Run("romanian export", func(t *testing.T) {
		buf := buildWorkbook(t, [][]any{
			{"Nume", "Email", "Venituri", "Total Venituri de transferat", "Tips", "Taxa aplicatie", "Ajustări Totale", "Ignored"},
			{"Ana Pop", "ana@x.com", 500, 450.5, 10, 20, -5, "x"},
			{},
			{"Ion Ionescu", "ion@x.com", "1.234,56", "", "", "", "", ""},
		})

		rows, err := NewNormalizer(DefaultProfile()).Rows(buf)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		require.Equal(t, 2, rows[0].Line)
		require.Equal(t, "Ana Pop", rows[0].FullName)
		require.Equal(t, "ana@x.com", rows[0].Email)
		require.Equal(t, "500", rows[0].Amount)
		require.Equal(t, "450.5", rows[0].Net)
		require.Equal(t, "10", rows[0].Tips)
		require.Equal(t, "20", rows[0].Fee)
		require.Equal(t, "-5", rows[0].Adjustments)

		require.Equal(t, 4, rows[1].Line)
		require.Equal(t, "1.234,56", rows[1].Amount)
	})

	t.Run("english headers with date and external id", func(t *testing.T) {
		buf := buildWorkbook(t, [][]any{
			{},
			{"Courier ID", "Full Name", "E-mail", "Amount", "Hours", "Date", "Platform"},
			{"C100", "Ana Pop", "ana@x.com", 500, 40, "2024-01-01", "glovo"},
		})

		rows, err := NewNormalizer(DefaultProfile()).Rows(buf)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, "C100", rows[0].ExternalID)
		require.Equal(t, "40", rows[0].Hours)
		require.Equal(t, "2024-01-01", rows[0].AsOfDate)
		require.Equal(t, "glovo", rows[0].Platform)
	})

	t.Run("date cells are converted", func(t *testing.T) {
		f := excelize.NewFile()
		defer f.Close()

		sheet := f.GetSheetName(0)
		require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Nume", "Email", "Venituri", "Data"}))
		require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Ana Pop", "ana@x.com", 500, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)}))

		var buf bytes.Buffer
		require.NoError(t, f.Write(&buf))

		rows, err := NewNormalizer(DefaultProfile()).Rows(&buf)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, "2024-02-01", rows[0].AsOfDate)
	})

	t.Run("missing required column", func(t *testing.T) {
		buf := buildWorkbook(t, [][]any{
			{"Nume", "Venituri"},
			{"Ana Pop", 500},
		})

		_, err := NewNormalizer(DefaultProfile()).Rows(buf)
		require.ErrorIs(t, err, ErrMissingColumn)
		require.ErrorContains(t, err, "email")
	})

	t.Run("empty sheet", func(t *testing.T) {
		buf := buildWorkbook(t, nil)

		_, err := NewNormalizer(DefaultProfile()).Rows(buf)
		require.ErrorIs(t, err, ErrNoHeader)
	})

	t.Run("not a workbook", func(t *testing.T) {
		_, err := NewNormalizer(DefaultProfile()).Rows(bytes.NewBufferString("name,email\n"))
		require.Error(t, err)
	})
}

func TestLoadProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
platforms:
  Bolt:
    header_row: 2
    columns:
      amount: ["Castig brut"]
      external_id: ["Driver UUID"]
      full_name: ["ID"]
`), 0o600))

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)

	t.Run("platform profile", func(t *testing.T) {
		buf := buildWorkbook(t, [][]any{
			{"Bolt weekly payout"},
			{"ID", "Email", "Castig brut", "Driver UUID"},
			{"Ana Pop", "ana@x.com", 321, "b-1"},
		})

		rows, err := NewNormalizer(profiles.For(" bolt ")).Rows(buf)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		require.Equal(t, "Ana Pop", rows[0].FullName)
		require.Equal(t, "321", rows[0].Amount)
		require.Equal(t, "b-1", rows[0].ExternalID)
		require.Equal(t, 3, rows[0].Line)
	})

	t.Run("unknown platform uses the default", func(t *testing.T) {
		require.Equal(t, profiles.Default, profiles.For("glovo"))
		require.Contains(t, profiles.For("glovo").Columns[FieldAmount], "Venituri")
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("default:\n  columns:\n    salary: [Pay]\n"), 0o600))

		_, err := LoadProfiles(bad)
		require.ErrorContains(t, err, `unknown field "salary"`)
	})
}

func TestWriteEntries(t *testing.T) {
	entry := &models.Entry{
		EntryID:    uuid.Must(uuid.NewV7()),
		FullName:   "Ana Pop",
		Email:      "ana@x.com",
		Platform:   "glovo",
		ExternalID: "C100",
		CreatedAt:  time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC),
	}
	other := &models.Entry{EntryID: uuid.Must(uuid.NewV7()), FullName: "Ion Ionescu", Email: "ion@x.com"}

	latest := map[uuid.UUID]*models.SalaryHistory{
		entry.EntryID: {
			Amount:   decimal.RequireFromString("550.25"),
			AsOfDate: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	columns, err := SelectColumns([]string{FieldFullName, FieldAmount, FieldAsOfDate})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteEntries(&buf, []*models.Entry{entry, other}, latest, columns))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Entries")
	require.NoError(t, err)
	require.Equal(t, []string{"Full Name", "Amount", "As Of Date"}, rows[0])
	require.Equal(t, []string{"Ana Pop", "550.25", "2024-02-01"}, rows[1])
	require.Equal(t, "Ion Ionescu", rows[2][0])

	t.Run("unknown column", func(t *testing.T) {
		_, err := SelectColumns([]string{"password"})
		require.ErrorIs(t, err, ErrUnknownColumn)
	})

	t.Run("all columns by default", func(t *testing.T) {
		columns, err := SelectColumns(nil)
		require.NoError(t, err)
		require.Len(t, columns, len(ExportColumns))
	})
}

func TestWriteHistory(t *testing.T) {
	hours := decimal.NewFromInt(40)
	entry := &models.Entry{FullName: "Ana/Pop"}
	records := []*models.SalaryHistory{
		{Amount: decimal.NewFromInt(550), AsOfDate: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), Provenance: models.ProvenanceImport, Hours: &hours},
		{Amount: decimal.NewFromInt(500), AsOfDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), Provenance: models.ProvenanceManual},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHistory(&buf, entry, records))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("AnaPop")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "As Of Date", rows[0][0])
	require.Equal(t, []string{"2024-02-01", "550"}, rows[1][:2])
	require.Equal(t, "40", rows[1][6])
	require.Equal(t, "import", rows[1][7])
	require.Equal(t, "manual", rows[2][7])
}
