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

// Package document produces quotation workbooks by filling placeholder
// tokens in an .xlsx template and removing the template sections that do not
// apply to the quoted storage category.
package document

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnknownVariant is returned for a template variant that does not exist
	ErrUnknownVariant = errors.New("unknown template variant")
	// ErrMalformedTemplate is returned when section markers do not pair up
	ErrMalformedTemplate = errors.New("malformed template")
)

var (
	placeholderPattern = regexp.MustCompile(`\{\{([A-Z0-9_]+)\}\}`)
	sectionPattern     = regexp.MustCompile(`^\[\[(begin|end):([a-z0-9_]+)\]\]$`)
)

// Fill removes every section of wb not listed in keep, strips the marker
// rows of the kept sections, and substitutes placeholders in every cell of
// every sheet. Placeholders without a value in fields are left as they are.
func Fill(wb *excelize.File, fields map[string]string, keep []string) error {
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}

	for _, sheet := range wb.GetSheetList() {
		if err := removeSections(wb, sheet, keepSet); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
		if err := substitute(wb, sheet, fields); err != nil {
			return fmt.Errorf("sheet %s: %w", sheet, err)
		}
	}
	return nil
}

type section struct {
	name  string
	begin int
	end   int
}

// removeSections deletes rows bottom-up so earlier row numbers stay valid.
func removeSections(wb *excelize.File, sheet string, keep map[string]bool) error {
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return err
	}

	var sections []section
	open := map[string]int{}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		m := sectionPattern.FindStringSubmatch(strings.TrimSpace(row[0]))
		if m == nil {
			continue
		}
		rowNum := i + 1
		kind, name := m[1], m[2]
		switch kind {
		case "begin":
			if _, dup := open[name]; dup {
				return fmt.Errorf("%w: section %q opened twice", ErrMalformedTemplate, name)
			}
			open[name] = rowNum
		case "end":
			begin, ok := open[name]
			if !ok {
				return fmt.Errorf("%w: section %q closed before it was opened", ErrMalformedTemplate, name)
			}
			delete(open, name)
			sections = append(sections, section{name: name, begin: begin, end: rowNum})
		}
	}
	if len(open) > 0 {
		names := make([]string, 0, len(open))
		for name := range open {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("%w: section %q is never closed", ErrMalformedTemplate, names[0])
	}

	remove := make(map[int]bool)
	for _, s := range sections {
		if keep[s.name] {
			remove[s.begin] = true
			remove[s.end] = true
			continue
		}
		for r := s.begin; r <= s.end; r++ {
			remove[r] = true
		}
	}

	rowNums := make([]int, 0, len(remove))
	for r := range remove {
		rowNums = append(rowNums, r)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(rowNums)))

	for _, r := range rowNums {
		if err := wb.RemoveRow(sheet, r); err != nil {
			return fmt.Errorf("failed to remove row %d: %w", r, err)
		}
	}
	return nil
}

func substitute(wb *excelize.File, sheet string, fields map[string]string) error {
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return err
	}

	for r, row := range rows {
		for c, value := range row {
			if !strings.Contains(value, "{{") {
				continue
			}
			replaced := placeholderPattern.ReplaceAllStringFunc(value, func(token string) string {
				name := token[2 : len(token)-2]
				if v, ok := fields[name]; ok {
					return v
				}
				return token
			})
			if replaced == value {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := wb.SetCellStr(sheet, cell, replaced); err != nil {
				return err
			}
		}
	}
	return nil
}
