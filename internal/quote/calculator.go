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

package quote

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/your-org/warehouse-quote-assistant/internal/money"
)

var (
	// ErrUnknownCategory is returned for a category missing from the rate table
	ErrUnknownCategory = errors.New("unknown storage category")
	// ErrInvalidVolume is returned when volume is not positive
	ErrInvalidVolume = errors.New("volume must be greater than 0")
	// ErrInvalidDays is returned when the storage duration is not positive
	ErrInvalidDays = errors.New("days must be greater than 0")
)

// Request is a quotation request as submitted by the form.
type Request struct {
	Category   string  `json:"storage_type"`
	Volume     float64 `json:"volume"`
	Days       int     `json:"days"`
	IncludeWMS bool    `json:"wms"`
	Contact    string  `json:"email,omitempty"`
}

// Validate checks the request fields that do not depend on the rate table.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("%w: storage type is required", ErrUnknownCategory)
	}
	if math.IsNaN(r.Volume) || math.IsInf(r.Volume, 0) || r.Volume <= 0 {
		return ErrInvalidVolume
	}
	if r.Days <= 0 {
		return ErrInvalidDays
	}
	return nil
}

// Result holds the computed quotation. All amounts are rounded to two
// decimals.
type Result struct {
	Category    string          `json:"storage_type"`
	Template    string          `json:"template"`
	Section     string          `json:"section"`
	Volume      decimal.Decimal `json:"volume"`
	Days        int             `json:"days"`
	Unit        string          `json:"unit"`
	Period      Period          `json:"period"`
	Rate        decimal.Decimal `json:"rate"`
	RateDisplay string          `json:"rate_display"`
	Currency    string          `json:"currency"`
	StorageFee  decimal.Decimal `json:"storage_fee"`
	WMSFee      decimal.Decimal `json:"wms_fee"`
	WMSApplied  bool            `json:"wms_applied"`
	Total       decimal.Decimal `json:"total"`
	Priced      bool            `json:"priced"`
}

// Options configures a Calculator.
type Options struct {
	// AllowUnpriced prices unknown categories at zero instead of
	// rejecting them.
	AllowUnpriced bool
	// WMSMonthlyFee overrides the rate table's WMS fee when Valid. A valid
	// zero makes WMS free.
	WMSMonthlyFee decimal.NullDecimal
}

// Calculator computes quotations against a RateTable.
type Calculator struct {
	table   *RateTable
	options Options
	wmsFee  decimal.Decimal
	logger  *zap.Logger
}

// NewCalculator creates a calculator for table.
func NewCalculator(table *RateTable, opts Options, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	wmsFee := table.WMSMonthlyFee
	if opts.WMSMonthlyFee.Valid {
		wmsFee = opts.WMSMonthlyFee.Decimal
	}
	return &Calculator{table: table, options: opts, wmsFee: wmsFee, logger: logger}
}

// Table returns the rate table the calculator prices against.
func (c *Calculator) Table() *RateTable {
	return c.table
}

// WMSMonthlyFee returns the monthly WMS fee in effect.
func (c *Calculator) WMSMonthlyFee() decimal.Decimal {
	return c.wmsFee
}

// Calculate prices req.
//
// Per-day categories: volume x days x rate.
// Per-year categories: volume x days x rate / days-per-year.
// WMS: monthly fee x max(1, days / 30) when requested, never for yards.
func (c *Calculator) Calculate(req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cat, ok := c.table.Lookup(req.Category)
	if !ok {
		if !c.options.AllowUnpriced {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, req.Category)
		}
		c.logger.Warn("Pricing unknown storage category at zero",
			zap.String("storage_type", req.Category))
		cat = Category{
			Label:    req.Category,
			Rate:     decimal.Zero,
			Unit:     "CBM",
			Period:   PerDay,
			Template: "standard",
		}
	}

	volume := decimal.NewFromFloat(req.Volume)
	days := decimal.NewFromInt(int64(req.Days))

	storage := volume.Mul(days).Mul(cat.Rate)
	if cat.Period == PerYear {
		storage = storage.Div(decimal.NewFromInt(int64(c.table.DaysPerYear)))
	}
	storage = money.Round(storage)

	wmsFee := decimal.Zero
	wmsApplied := req.IncludeWMS && !cat.Yard
	if wmsApplied {
		wmsFee = money.Round(c.wmsFee.Mul(decimal.NewFromInt(int64(BillableMonths(req.Days)))))
	}

	result := &Result{
		Category:    cat.Label,
		Template:    cat.Template,
		Section:     cat.Section,
		Volume:      volume,
		Days:        req.Days,
		Unit:        cat.Unit,
		Period:      cat.Period,
		Rate:        cat.Rate,
		RateDisplay: cat.RateDisplay(c.table.Currency),
		Currency:    c.table.Currency,
		StorageFee:  storage,
		WMSFee:      wmsFee,
		WMSApplied:  wmsApplied,
		Total:       money.Round(storage.Add(wmsFee)),
		Priced:      ok,
	}

	c.logger.Debug("Quotation calculated",
		zap.String("storage_type", result.Category),
		zap.String("volume", volume.String()),
		zap.Int("days", req.Days),
		zap.Bool("wms", wmsApplied),
		zap.String("total", result.Total.StringFixed(2)),
	)

	return result, nil
}

// BillableMonths returns the number of WMS months charged for days:
// whole 30-day months, with a minimum of one.
func BillableMonths(days int) int {
	months := days / 30
	if months < 1 {
		return 1
	}
	return months
}
