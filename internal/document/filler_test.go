package document

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/warehouse-quote-assistant/internal/quote"
)

func calculate(t *testing.T, req quote.Request, opts quote.Options) *quote.Result {
	t.Helper()
	table, err := quote.DefaultRateTable()
	require.NoError(t, err)
	result, err := quote.NewCalculator(table, opts, zaptest.NewLogger(t)).Calculate(req)
	require.NoError(t, err)
	return result
}

func newTestFiller(t *testing.T, cfg Config) *Filler {
	t.Helper()
	if cfg.OutputDir == "" {
		cfg.OutputDir = t.TempDir()
	}
	f := NewFiller(cfg, zaptest.NewLogger(t))
	f.now = func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	return f
}

func readSheet(t *testing.T, path string) string {
	t.Helper()
	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()
	rows, err := wb.GetRows(wb.GetSheetName(0))
	require.NoError(t, err)
	var lines []string
	for _, row := range rows {
		lines = append(lines, strings.Join(row, "|"))
	}
	return strings.Join(lines, "\n")
}

func TestGenerateStandardWithWMS(t *testing.T) {
	f := newTestFiller(t, Config{})
	f.newID = func() string { return "q-1" }

	result := calculate(t, quote.Request{Category: "Non-AC", Volume: 20, Days: 10, IncludeWMS: true}, quote.Options{})

	path, filename, err := f.Generate(context.Background(), result, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Quotation_ops_example_com_q-1.xlsx", filename)
	assert.Equal(t, filepath.Join(f.config.OutputDir, filename), path)

	text := readSheet(t, path)
	assert.Contains(t, text, "Quotation No.|q-1")
	assert.Contains(t, text, "Date|01 Mar 2025")
	assert.Contains(t, text, "Valid Until|31 Mar 2025")
	assert.Contains(t, text, "Customer|ops@example.com")
	assert.Contains(t, text, "Storage Type|Non-AC")
	assert.Contains(t, text, "Storage Fee|400.00 AED")
	assert.Contains(t, text, "WMS Fee|1,500.00 AED|1 month(s) at 1,500.00 AED")
	assert.Contains(t, text, "Total|1,900.00 AED")
	assert.Contains(t, text, "Non-AC storage is ambient")
	assert.NotContains(t, text, "AC storage is temperature controlled")
	assert.NotContains(t, text, "Open Shed storage")
	assert.NotContains(t, text, "{{")
	assert.NotContains(t, text, "[[")
}

func TestGenerateOpenYardDropsWMS(t *testing.T) {
	f := newTestFiller(t, Config{})

	result := calculate(t, quote.Request{Category: "Open Yard – Mussafah", Volume: 100, Days: 365, IncludeWMS: true}, quote.Options{})

	path, _, err := f.Generate(context.Background(), result, "")
	require.NoError(t, err)

	text := readSheet(t, path)
	assert.Contains(t, text, "Total|16,000.00 AED")
	assert.Contains(t, text, "Mussafah, Abu Dhabi")
	assert.NotContains(t, text, "KIZAD")
	assert.NotContains(t, text, "WMS Fee")
	assert.Contains(t, text, "Customer|Customer")
}

func TestGenerateChemicalTemplate(t *testing.T) {
	f := newTestFiller(t, Config{})

	result := calculate(t, quote.Request{Category: "Chemicals AC", Volume: 3, Days: 95}, quote.Options{})

	path, _, err := f.Generate(context.Background(), result, "lab")
	require.NoError(t, err)

	text := readSheet(t, path)
	assert.Contains(t, text, "MSDS")
	assert.Contains(t, text, "Chemical AC storage")
	assert.NotContains(t, text, "Chemical Non-AC storage")
	assert.NotContains(t, text, "WMS Fee")
}

func TestGenerateUniqueFileNames(t *testing.T) {
	f := newTestFiller(t, Config{})
	result := calculate(t, quote.Request{Category: "AC", Volume: 10, Days: 5}, quote.Options{})

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		_, filename, err := f.Generate(context.Background(), result, "same@example.com")
		require.NoError(t, err)
		assert.False(t, seen[filename], "duplicate file name %s", filename)
		seen[filename] = true
	}
}

func TestGenerateUsesTemplateFromDirectory(t *testing.T) {
	dir := t.TempDir()
	custom := excelize.NewFile()
	sheet := custom.GetSheetName(0)
	require.NoError(t, custom.SetCellStr(sheet, "A1", "Custom quote for {{CONTACT}}"))
	require.NoError(t, custom.SetCellStr(sheet, "A2", "Amount {{TOTAL_FEE}}"))
	require.NoError(t, custom.SaveAs(filepath.Join(dir, Standard.FileName())))
	require.NoError(t, custom.Close())

	f := newTestFiller(t, Config{TemplatesDir: dir})
	result := calculate(t, quote.Request{Category: "AC", Volume: 10, Days: 5}, quote.Options{})

	path, _, err := f.Generate(context.Background(), result, "acme")
	require.NoError(t, err)

	assert.Equal(t, "Custom quote for acme\nAmount 125.00", readSheet(t, path))
}

func TestGenerateCreatesOutputDirectory(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "out")
	f := newTestFiller(t, Config{OutputDir: out})
	result := calculate(t, quote.Request{Category: "Open Shed", Volume: 12.5, Days: 7}, quote.Options{})

	path, _, err := f.Generate(context.Background(), result, "")
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestGenerateUnpricedCategory(t *testing.T) {
	f := newTestFiller(t, Config{})
	result := calculate(t, quote.Request{Category: "Cold Room", Volume: 1, Days: 1}, quote.Options{AllowUnpriced: true})

	path, _, err := f.Generate(context.Background(), result, "")
	require.NoError(t, err)
	assert.Contains(t, readSheet(t, path), "Total|0.00 AED")
}

func TestGenerateCanceledContext(t *testing.T) {
	f := newTestFiller(t, Config{})
	result := calculate(t, quote.Request{Category: "AC", Volume: 1, Days: 1}, quote.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := f.Generate(ctx, result, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileName(t *testing.T) {
	testCases := []struct {
		contact  string
		expected string
	}{
		{"", "Quotation_customer_x.xlsx"},
		{"   ", "Quotation_customer_x.xlsx"},
		{"jane.doe@dsv.com", "Quotation_jane_doe_dsv_com_x.xlsx"},
		{"../../etc/passwd", "Quotation_etc_passwd_x.xlsx"},
		{"Ünïcode", "Quotation_n_code_x.xlsx"},
	}

	for _, tc := range testCases {
		t.Run(tc.contact, func(t *testing.T) {
			assert.Equal(t, tc.expected, FileName(tc.contact, "x"))
		})
	}
}

func TestKeepSections(t *testing.T) {
	withWMS := calculate(t, quote.Request{Category: "AC", Volume: 1, Days: 1, IncludeWMS: true}, quote.Options{})
	assert.Equal(t, []string{"ac", "wms"}, KeepSections(withWMS))

	yard := calculate(t, quote.Request{Category: "Open Yard – KIZAD", Volume: 1, Days: 1, IncludeWMS: true}, quote.Options{})
	assert.Equal(t, []string{"kizad"}, KeepSections(yard))
}
