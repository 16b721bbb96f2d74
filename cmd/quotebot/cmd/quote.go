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

package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/your-org/warehouse-quote-assistant/internal/app"
	"github.com/your-org/warehouse-quote-assistant/internal/document"
	"github.com/your-org/warehouse-quote-assistant/internal/money"
	"github.com/your-org/warehouse-quote-assistant/internal/quote"
)

type quoteOptions struct {
	storageType string
	volume      float64
	days        int
	wms         bool
	email       string
	outDir      string
	asJSON      bool
}

func newQuoteCommand(root *rootOptions) *cobra.Command {
	opts := &quoteOptions{}

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a storage request",
		Long: `Price a storage request against the configured rate table. With
--out the quotation workbook is also written to that directory.`,
		Example: `  quotebot quote --type "Open Yard Mussafah" --volume 500 --days 365
  quotebot quote --type AC --volume 100 --days 30 --wms --out ./generated`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQuote(cmd, root, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.storageType, "type", "t", "", "storage type (required)")
	cmd.Flags().Float64Var(&opts.volume, "volume", 0, "volume in the category's unit")
	cmd.Flags().IntVar(&opts.days, "days", 0, "storage duration in days")
	cmd.Flags().BoolVar(&opts.wms, "wms", false, "include the WMS fee")
	cmd.Flags().StringVar(&opts.email, "email", "", "customer contact shown on the quotation")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "write the quotation workbook to this directory")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func runQuote(cmd *cobra.Command, root *rootOptions, opts *quoteOptions) error {
	calculator, err := app.LoadCalculator(root.cfg, root.logger)
	if err != nil {
		return err
	}

	result, err := calculator.Calculate(quote.Request{
		Category:   opts.storageType,
		Volume:     opts.volume,
		Days:       opts.days,
		IncludeWMS: opts.wms,
		Contact:    opts.email,
	})
	if err != nil {
		return err
	}

	var path string
	if opts.outDir != "" {
		filler := document.NewFiller(document.Config{
			TemplatesDir: root.cfg.Quotation.TemplatesDir,
			OutputDir:    opts.outDir,
		}, root.logger)
		path, _, err = filler.Generate(cmd.Context(), result, opts.email)
		if err != nil {
			return fmt.Errorf("failed to generate quotation: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if opts.asJSON {
		return writeQuoteJSON(out, result, path)
	}
	writeQuoteText(out, result, path)
	return nil
}

func writeQuoteJSON(w io.Writer, result *quote.Result, path string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*quote.Result
		File string `json:"file,omitempty"`
	}{Result: result, File: path})
}

func writeQuoteText(w io.Writer, result *quote.Result, path string) {
	fmt.Fprintf(w, "Storage Type: %s\n", result.Category)
	fmt.Fprintf(w, "Quantity:     %s %s\n", result.Volume.String(), result.Unit)
	fmt.Fprintf(w, "Duration:     %d days\n", result.Days)
	fmt.Fprintf(w, "Rate:         %s\n", result.RateDisplay)
	fmt.Fprintf(w, "Storage Fee:  %s\n", money.FormatWithCurrency(result.StorageFee, result.Currency))
	if result.WMSApplied {
		fmt.Fprintf(w, "WMS Fee:      %s\n", money.FormatWithCurrency(result.WMSFee, result.Currency))
	}
	fmt.Fprintf(w, "Total:        %s\n", money.FormatWithCurrency(result.Total, result.Currency))
	if !result.Priced {
		fmt.Fprintln(w, "Note:         storage type has no published rate")
	}
	if path != "" {
		fmt.Fprintf(w, "Quotation:    %s\n", path)
	}
}
