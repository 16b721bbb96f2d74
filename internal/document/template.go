// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package document

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// Variant selects one of the quotation templates.
type Variant string

const (
	// Standard covers AC, Non-AC and Open Shed storage
	Standard Variant = "standard"
	// Chemical covers chemical storage
	Chemical Variant = "chemical"
	// OpenYard covers the open yard locations
	OpenYard Variant = "open_yard"
)

// Variants lists every template variant.
var Variants = []Variant{Standard, Chemical, OpenYard}

// TemplateSheet is the sheet name used by the built-in templates.
const TemplateSheet = "Quotation"

// FileName returns the template file name for v inside the templates
// directory.
func (v Variant) FileName() string {
	return string(v) + ".xlsx"
}

// ParseVariant validates a variant name.
func ParseVariant(name string) (Variant, error) {
	for _, v := range Variants {
		if string(v) == name {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownVariant, name)
}

type templateRow []string

func begin(name string) templateRow { return templateRow{"[[begin:" + name + "]]"} }
func end(name string) templateRow   { return templateRow{"[[end:" + name + "]]"} }

func header(title string) []templateRow {
	return []templateRow{
		{title},
		{"Quotation No.", "{{QUOTE_ID}}"},
		{"Date", "{{DATE}}"},
		{"Valid Until", "{{VALID_UNTIL}}"},
		{"Customer", "{{CONTACT}}"},
		{},
		{"Storage Type", "{{STORAGE_TYPE}}"},
		{"Quantity", "{{VOLUME}} {{UNIT}}"},
		{"Duration", "{{DAYS}} days"},
		{"Rate", "{{RATE}}"},
		{"Storage Fee", "{{STORAGE_FEE}} {{CURRENCY}}"},
	}
}

func wmsBlock() []templateRow {
	return []templateRow{
		begin("wms"),
		{"WMS Fee", "{{WMS_FEE}} {{CURRENCY}}", "{{WMS_MONTHS}} month(s) at {{WMS_MONTHLY_FEE}} {{CURRENCY}}"},
		end("wms"),
	}
}

func totalBlock() []templateRow {
	return []templateRow{
		{"Total", "{{TOTAL_FEE}} {{CURRENCY}}"},
		{},
		{"Terms & Conditions"},
	}
}

func templateRows(v Variant) ([]templateRow, error) {
	var rows []templateRow
	switch v {
	case Standard:
		rows = append(rows, header("DSV Solutions – Storage Quotation")...)
		rows = append(rows, wmsBlock()...)
		rows = append(rows, totalBlock()...)
		rows = append(rows,
			begin("ac"),
			templateRow{"AC storage is temperature controlled between 18 and 25 °C."},
			templateRow{"Rates are per CBM per day, minimum one day."},
			end("ac"),
			begin("non_ac"),
			templateRow{"Non-AC storage is ambient and not temperature controlled."},
			templateRow{"Rates are per CBM per day, minimum one day."},
			end("non_ac"),
			begin("open_shed"),
			templateRow{"Open Shed storage is covered but open sided; not suitable for sensitive cargo."},
			templateRow{"Rates are per CBM per day, minimum one day."},
			end("open_shed"),
		)
	case Chemical:
		rows = append(rows, header("DSV Solutions – Chemical Storage Quotation")...)
		rows = append(rows, wmsBlock()...)
		rows = append(rows, totalBlock()...)
		rows = append(rows,
			templateRow{"A valid MSDS is required for every product before inbound."},
			templateRow{"Storage is subject to civil defence approval of the hazard class."},
			begin("chemicals_ac"),
			templateRow{"Chemical AC storage is temperature controlled between 18 and 25 °C."},
			end("chemicals_ac"),
			begin("chemicals_non_ac"),
			templateRow{"Chemical Non-AC storage is ambient in a segregated chemical warehouse."},
			end("chemicals_non_ac"),
		)
	case OpenYard:
		rows = append(rows, header("DSV Solutions – Open Yard Quotation")...)
		rows = append(rows, totalBlock()...)
		rows = append(rows,
			templateRow{"Open yard rates are per SQM per year, prorated by day."},
			templateRow{"WMS is not offered for open yard storage."},
			begin("mussafah"),
			templateRow{"Location: DSV open yard, Mussafah, Abu Dhabi."},
			end("mussafah"),
			begin("kizad"),
			templateRow{"Location: DSV open yard, KIZAD, Abu Dhabi."},
			end("kizad"),
		)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
	return rows, nil
}

// BuildTemplate creates the built-in workbook for v. It is used when no
// template file is present in the templates directory and by the
// "templates" CLI command to seed one.
func BuildTemplate(v Variant) (*excelize.File, error) {
	rows, err := templateRows(v)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), TemplateSheet); err != nil {
		_ = f.Close()
		return nil, err
	}

	for r, row := range rows {
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellStr(TemplateSheet, cell, value); err != nil {
				_ = f.Close()
				return nil, err
			}
		}
	}

	if err := f.SetColWidth(TemplateSheet, "A", "A", 30); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.SetColWidth(TemplateSheet, "B", "C", 36); err != nil {
		_ = f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err == nil {
		_ = f.SetCellStyle(TemplateSheet, "A1", "A1", bold)
	}

	return f, nil
}

// WriteTemplates saves the built-in template of every variant into dir and
// returns the paths written. Existing files are left alone unless force is
// set.
func WriteTemplates(dir string, force bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create templates directory: %w", err)
	}

	var written []string
	for _, v := range Variants {
		path := filepath.Join(dir, v.FileName())
		if !force {
			if _, err := os.Stat(path); err == nil {
				continue
			}
		}

		f, err := BuildTemplate(v)
		if err != nil {
			return written, fmt.Errorf("failed to build %s template: %w", v, err)
		}
		err = f.SaveAs(path)
		_ = f.Close()
		if err != nil {
			return written, fmt.Errorf("failed to save %s template: %w", v, err)
		}
		written = append(written, path)
	}
	return written, nil
}
