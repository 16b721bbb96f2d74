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

// Package quote prices warehouse storage requests from a static rate table.
package quote

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed default_rates.yaml
var defaultRatesYAML []byte

// Period is the billing period a category rate is quoted for.
type Period string

const (
	// PerDay rates are charged per unit per day
	PerDay Period = "day"
	// PerYear rates are charged per unit per year and prorated by day
	PerYear Period = "year"
)

var (
	// ErrInvalidRateTable is returned when a rate table fails validation
	ErrInvalidRateTable = errors.New("invalid rate table")
)

// Category is a priced storage category.
type Category struct {
	Label    string
	Aliases  []string
	Rate     decimal.Decimal
	Unit     string
	Period   Period
	Template string
	Section  string
	Yard     bool
}

// RateDisplay renders the rate the way it appears on a quotation,
// e.g. "2.50 AED / CBM / day".
func (c Category) RateDisplay(currency string) string {
	return fmt.Sprintf("%s %s / %s / %s", c.Rate.StringFixed(2), currency, c.Unit, c.Period)
}

// RateTable maps category labels to rates. It is read-only after loading.
type RateTable struct {
	Version       string
	Currency      string
	WMSMonthlyFee decimal.Decimal
	DaysPerYear   int

	categories []Category
	byKey      map[string]int
}

type rateFile struct {
	Version       string         `yaml:"version"`
	Currency      string         `yaml:"currency"`
	WMSMonthlyFee string         `yaml:"wms_monthly_fee"`
	DaysPerYear   int            `yaml:"days_per_year"`
	Categories    []categoryFile `yaml:"categories"`
}

type categoryFile struct {
	Label    string   `yaml:"label"`
	Aliases  []string `yaml:"aliases"`
	Rate     string   `yaml:"rate"`
	Unit     string   `yaml:"unit"`
	Period   string   `yaml:"period"`
	Template string   `yaml:"template"`
	Section  string   `yaml:"section"`
	Yard     bool     `yaml:"yard"`
}

// DefaultRateTable returns the rate table shipped with the binary.
func DefaultRateTable() (*RateTable, error) {
	return ParseRateTable(defaultRatesYAML)
}

// LoadRateTable reads a rate table from path. An empty path yields the
// default table.
func LoadRateTable(path string) (*RateTable, error) {
	if path == "" {
		return DefaultRateTable()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rate table %s: %w", path, err)
	}
	table, err := ParseRateTable(data)
	if err != nil {
		return nil, fmt.Errorf("rate table %s: %w", path, err)
	}
	return table, nil
}

// ParseRateTable decodes and validates a YAML rate table.
func ParseRateTable(data []byte) (*RateTable, error) {
	var raw rateFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode rate table: %w", err)
	}

	table := &RateTable{
		Version:     raw.Version,
		Currency:    raw.Currency,
		DaysPerYear: raw.DaysPerYear,
		byKey:       make(map[string]int),
	}
	if table.DaysPerYear == 0 {
		table.DaysPerYear = 365
	}
	if table.DaysPerYear < 0 {
		return nil, fmt.Errorf("%w: days_per_year must be positive", ErrInvalidRateTable)
	}

	if raw.WMSMonthlyFee != "" {
		fee, err := decimal.NewFromString(raw.WMSMonthlyFee)
		if err != nil || fee.IsNegative() {
			return nil, fmt.Errorf("%w: wms_monthly_fee %q", ErrInvalidRateTable, raw.WMSMonthlyFee)
		}
		table.WMSMonthlyFee = fee
	}

	if len(raw.Categories) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalidRateTable)
	}

	for _, cf := range raw.Categories {
		cat, err := cf.toCategory()
		if err != nil {
			return nil, err
		}
		if err := table.add(cat); err != nil {
			return nil, err
		}
	}

	return table, nil
}

func (cf categoryFile) toCategory() (Category, error) {
	if strings.TrimSpace(cf.Label) == "" {
		return Category{}, fmt.Errorf("%w: category label is required", ErrInvalidRateTable)
	}
	rate, err := decimal.NewFromString(cf.Rate)
	if err != nil || rate.IsNegative() {
		return Category{}, fmt.Errorf("%w: category %s: rate %q", ErrInvalidRateTable, cf.Label, cf.Rate)
	}

	period := Period(strings.ToLower(cf.Period))
	switch period {
	case PerDay, PerYear:
	case "":
		period = PerDay
	default:
		return Category{}, fmt.Errorf("%w: category %s: unknown period %q", ErrInvalidRateTable, cf.Label, cf.Period)
	}

	return Category{
		Label:    cf.Label,
		Aliases:  cf.Aliases,
		Rate:     rate,
		Unit:     cf.Unit,
		Period:   period,
		Template: cf.Template,
		Section:  cf.Section,
		Yard:     cf.Yard,
	}, nil
}

func (t *RateTable) add(cat Category) error {
	idx := len(t.categories)
	for _, name := range append([]string{cat.Label}, cat.Aliases...) {
		key := CanonicalKey(name)
		if key == "" {
			return fmt.Errorf("%w: category %s: empty alias", ErrInvalidRateTable, cat.Label)
		}
		if _, exists := t.byKey[key]; exists {
			return fmt.Errorf("%w: duplicate category %q", ErrInvalidRateTable, name)
		}
		t.byKey[key] = idx
	}
	t.categories = append(t.categories, cat)
	return nil
}

// Lookup finds a category by label or alias. Matching ignores case,
// punctuation and dashes, so "open yard - mussafah" resolves to
// "Open Yard – Mussafah".
func (t *RateTable) Lookup(label string) (Category, bool) {
	idx, ok := t.byKey[CanonicalKey(label)]
	if !ok {
		return Category{}, false
	}
	return t.categories[idx], true
}

// Categories returns the categories in declaration order.
func (t *RateTable) Categories() []Category {
	out := make([]Category, len(t.categories))
	copy(out, t.categories)
	return out
}

// CanonicalKey lower-cases s and reduces every run of non-alphanumeric
// runes to a single space.
func CanonicalKey(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}
