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
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/your-org/warehouse-quote-assistant/internal/money"
	"github.com/your-org/warehouse-quote-assistant/internal/quote"
)

// ValidityDays is how long an issued quotation stays valid.
const ValidityDays = 30

// Config configures a Filler.
type Config struct {
	// TemplatesDir holds <variant>.xlsx templates. Missing files fall back
	// to the built-in templates.
	TemplatesDir string
	// OutputDir receives generated workbooks. It is created on demand.
	OutputDir string
}

// Filler renders quotation workbooks.
type Filler struct {
	config Config
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewFiller creates a Filler.
func NewFiller(cfg Config, logger *zap.Logger) *Filler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = os.TempDir()
	}
	return &Filler{
		config: cfg,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// OpenTemplate loads the template for v from the templates directory, or
// builds the built-in one when no file exists there.
func (f *Filler) OpenTemplate(v Variant) (*excelize.File, error) {
	if _, err := ParseVariant(string(v)); err != nil {
		return nil, err
	}

	if f.config.TemplatesDir != "" {
		path := filepath.Join(f.config.TemplatesDir, v.FileName())
		wb, err := excelize.OpenFile(path)
		switch {
		case err == nil:
			return wb, nil
		case errors.Is(err, os.ErrNotExist):
			f.logger.Debug("Template file not found, using built-in template",
				zap.String("variant", string(v)),
				zap.String("path", path))
		default:
			return nil, fmt.Errorf("failed to open template %s: %w", path, err)
		}
	}

	return BuildTemplate(v)
}

// Fill opens the template for v and fills it. The caller owns the returned
// workbook and must close it.
func (f *Filler) Fill(v Variant, fields map[string]string, keep []string) (*excelize.File, error) {
	wb, err := f.OpenTemplate(v)
	if err != nil {
		return nil, err
	}
	if err := Fill(wb, fields, keep); err != nil {
		_ = wb.Close()
		return nil, fmt.Errorf("failed to fill %s template: %w", v, err)
	}
	return wb, nil
}

// Fields maps a quotation result onto template placeholders.
func Fields(result *quote.Result, contact, id string, issued time.Time) map[string]string {
	if strings.TrimSpace(contact) == "" {
		contact = "Customer"
	}

	months := quote.BillableMonths(result.Days)
	monthly := decimal.Zero
	if result.WMSApplied {
		monthly = result.WMSFee.Div(decimal.NewFromInt(int64(months)))
	}

	return map[string]string{
		"QUOTE_ID":        id,
		"DATE":            issued.Format("02 Jan 2006"),
		"VALID_UNTIL":     issued.AddDate(0, 0, ValidityDays).Format("02 Jan 2006"),
		"CONTACT":         contact,
		"STORAGE_TYPE":    result.Category,
		"VOLUME":          result.Volume.String(),
		"UNIT":            result.Unit,
		"DAYS":            fmt.Sprintf("%d", result.Days),
		"RATE":            result.RateDisplay,
		"CURRENCY":        result.Currency,
		"STORAGE_FEE":     money.Format(result.StorageFee),
		"WMS_FEE":         money.Format(result.WMSFee),
		"WMS_MONTHS":      fmt.Sprintf("%d", months),
		"WMS_MONTHLY_FEE": money.Format(monthly),
		"TOTAL_FEE":       money.Format(result.Total),
	}
}

// KeepSections returns the template sections that apply to result.
func KeepSections(result *quote.Result) []string {
	var keep []string
	if result.Section != "" {
		keep = append(keep, result.Section)
	}
	if result.WMSApplied {
		keep = append(keep, "wms")
	}
	return keep
}

// FileName builds the output file name for a quotation.
func FileName(contact, id string) string {
	return fmt.Sprintf("Quotation_%s_%s.xlsx", sanitize(contact), id)
}

func sanitize(contact string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(contact) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-') {
			b.WriteRune(r)
			continue
		}
		if !strings.HasSuffix(b.String(), "_") {
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if len(name) > 64 {
		name = name[:64]
	}
	if name == "" {
		return "customer"
	}
	return name
}

// Generate renders result into a new workbook in the output directory and
// returns its path and file name.
func (f *Filler) Generate(ctx context.Context, result *quote.Result, contact string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	variant, err := ParseVariant(result.Template)
	if err != nil {
		return "", "", err
	}

	id := f.newID()
	wb, err := f.Fill(variant, Fields(result, contact, id, f.now()), KeepSections(result))
	if err != nil {
		return "", "", err
	}
	defer func() {
		if cerr := wb.Close(); cerr != nil {
			f.logger.Warn("Failed to close workbook", zap.Error(cerr))
		}
	}()

	if err := os.MkdirAll(f.config.OutputDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := FileName(contact, id)
	path := filepath.Join(f.config.OutputDir, filename)
	if err := wb.SaveAs(path); err != nil {
		return "", "", fmt.Errorf("failed to save quotation: %w", err)
	}

	f.logger.Info("Quotation document generated",
		zap.String("quote_id", id),
		zap.String("variant", string(variant)),
		zap.String("storage_type", result.Category),
		zap.String("path", path))

	return path, filename, nil
}
