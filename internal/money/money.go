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

// Package money holds the rounding and display helpers shared by the
// quotation calculator and the chat calculations.
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Places is the number of decimal places every displayed amount carries.
const Places = 2

// Round rounds d half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

var printer = message.NewPrinter(language.English)

// Format renders d with two decimals and comma thousands separators,
// e.g. 16000 -> "16,000.00".
func Format(d decimal.Decimal) string {
	r := Round(d)

	sign := ""
	if r.IsNegative() {
		sign = "-"
		r = r.Neg()
	}

	whole := r.Truncate(0)
	frac := r.Sub(whole).StringFixed(Places)
	return sign + printer.Sprintf("%d", whole.IntPart()) + frac[1:]
}

// FormatWithCurrency renders d followed by the currency code, e.g.
// "850.00 AED".
func FormatWithCurrency(d decimal.Decimal, currency string) string {
	if currency == "" {
		return Format(d)
	}
	return Format(d) + " " + currency
}
