package document

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newWorkbook(t *testing.T, rows [][]string) *excelize.File {
	t.Helper()
	wb := excelize.NewFile()
	t.Cleanup(func() { _ = wb.Close() })
	sheet := wb.GetSheetName(0)
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, wb.SetCellStr(sheet, cell, value))
		}
	}
	return wb
}

func sheetText(t *testing.T, wb *excelize.File) string {
	t.Helper()
	rows, err := wb.GetRows(wb.GetSheetName(0))
	require.NoError(t, err)
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, strings.Join(row, "|"))
	}
	return strings.Join(lines, "\n")
}

func TestFillSubstitutesPlaceholders(t *testing.T) {
	wb := newWorkbook(t, [][]string{
		{"Total", "{{TOTAL_FEE}} {{CURRENCY}}"},
		{"Note", "{{UNKNOWN}} stays"},
		{"Plain", "no tokens"},
	})

	err := Fill(wb, map[string]string{"TOTAL_FEE": "125.00", "CURRENCY": "AED"}, nil)
	require.NoError(t, err)

	text := sheetText(t, wb)
	assert.Contains(t, text, "Total|125.00 AED")
	assert.Contains(t, text, "Note|{{UNKNOWN}} stays")
	assert.Contains(t, text, "Plain|no tokens")
}

func TestFillRemovesSections(t *testing.T) {
	wb := newWorkbook(t, [][]string{
		{"Header"},
		{"[[begin:wms]]"},
		{"WMS", "{{WMS_FEE}}"},
		{"[[end:wms]]"},
		{"[[begin:ac]]"},
		{"AC terms"},
		{"[[end:ac]]"},
		{"[[begin:non_ac]]"},
		{"Non-AC terms"},
		{"More Non-AC terms"},
		{"[[end:non_ac]]"},
		{"Footer"},
	})

	err := Fill(wb, map[string]string{"WMS_FEE": "1,500.00"}, []string{"ac"})
	require.NoError(t, err)

	assert.Equal(t, "Header\nAC terms\nFooter", sheetText(t, wb))
}

func TestFillKeepsRequestedSectionsWithoutMarkers(t *testing.T) {
	wb := newWorkbook(t, [][]string{
		{"Header"},
		{"[[begin:wms]]"},
		{"WMS", "{{WMS_FEE}}"},
		{"[[end:wms]]"},
		{"Footer"},
	})

	err := Fill(wb, map[string]string{"WMS_FEE": "1,500.00"}, []string{"wms"})
	require.NoError(t, err)

	text := sheetText(t, wb)
	assert.Equal(t, "Header\nWMS|1,500.00\nFooter", text)
	assert.NotContains(t, text, "[[")
}

func TestFillMalformedSections(t *testing.T) {
	testCases := []struct {
		name string
		rows [][]string
	}{
		{
			name: "never closed",
			rows: [][]string{{"[[begin:ac]]"}, {"text"}},
		},
		{
			name: "closed before opened",
			rows: [][]string{{"[[end:ac]]"}},
		},
		{
			name: "opened twice",
			rows: [][]string{{"[[begin:ac]]"}, {"[[begin:ac]]"}, {"[[end:ac]]"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			wb := newWorkbook(t, tc.rows)
			err := Fill(wb, nil, nil)
			assert.ErrorIs(t, err, ErrMalformedTemplate)
		})
	}
}

func TestBuildTemplate(t *testing.T) {
	for _, v := range Variants {
		t.Run(string(v), func(t *testing.T) {
			wb, err := BuildTemplate(v)
			require.NoError(t, err)
			defer func() { _ = wb.Close() }()

			assert.Equal(t, []string{TemplateSheet}, wb.GetSheetList())
			rows, err := wb.GetRows(TemplateSheet)
			require.NoError(t, err)
			require.NotEmpty(t, rows)

			text := sheetText(t, wb)
			assert.Contains(t, text, "{{TOTAL_FEE}}")
			assert.Contains(t, text, "{{STORAGE_TYPE}}")

			// every template must fill cleanly with nothing kept
			assert.NoError(t, Fill(wb, nil, nil))
			assert.NotContains(t, sheetText(t, wb), "[[")
		})
	}

	_, err := BuildTemplate(Variant("pallets"))
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("open_yard")
	require.NoError(t, err)
	assert.Equal(t, OpenYard, v)

	_, err = ParseVariant("")
	assert.ErrorIs(t, err, ErrUnknownVariant)
}

func TestWriteTemplates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "templates")

	written, err := WriteTemplates(dir, false)
	require.NoError(t, err)
	assert.Len(t, written, len(Variants))

	for _, v := range Variants {
		wb, err := excelize.OpenFile(filepath.Join(dir, v.FileName()))
		require.NoError(t, err)
		assert.Contains(t, sheetText(t, wb), "{{TOTAL_FEE}}")
		require.NoError(t, wb.Close())
	}

	written, err = WriteTemplates(dir, false)
	require.NoError(t, err)
	assert.Empty(t, written)

	written, err = WriteTemplates(dir, true)
	require.NoError(t, err)
	assert.Len(t, written, len(Variants))
}
