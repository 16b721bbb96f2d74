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

// Package normalize canonicalises free-text chat messages before they are
// matched against the rule book.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultAbbreviations maps informal tokens to their expanded form.
var DefaultAbbreviations = map[string]string{
	"u":      "you",
	"r":      "are",
	"ur":     "your",
	"pls":    "please",
	"plz":    "please",
	"thx":    "thanks",
	"thnx":   "thanks",
	"ty":     "thank you",
	"hw":     "how",
	"abt":    "about",
	"wat":    "what",
	"wht":    "what",
	"whats":  "what is",
	"qty":    "quantity",
	"hrs":    "hours",
	"govt":   "government",
	"info":   "information",
	"msg":    "message",
	"pcs":    "pieces",
	"nos":    "numbers",
	"approx": "approximately",
	"aircon": "airconditioned",
	"youre":  "you are",
	"im":     "i am",
}

// stripMarks returns a fresh accent-folding transformer. A chain keeps
// internal buffers, so one is built per call.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Normalizer lower-cases text, strips punctuation and expands informal
// abbreviations. It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	abbreviations map[string]string
}

// New creates a Normalizer with the default abbreviations plus any extra
// entries. Extra entries override defaults with the same key.
func New(extra map[string]string) *Normalizer {
	abbr := make(map[string]string, len(DefaultAbbreviations)+len(extra))
	for k, v := range DefaultAbbreviations {
		abbr[k] = v
	}
	for k, v := range extra {
		abbr[strings.ToLower(k)] = strings.ToLower(v)
	}
	return &Normalizer{abbreviations: abbr}
}

var defaultNormalizer = New(nil)

// Normalize canonicalises raw using the default abbreviation table.
func Normalize(raw string) string {
	return defaultNormalizer.Normalize(raw)
}

// Normalize returns the canonical form of raw: lower case, letters, digits
// and single spaces only, with informal tokens expanded. A '.' between two
// digits is kept as a decimal point and a ',' between two digits is treated
// as a thousands separator.
func (n *Normalizer) Normalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	folded, _, err := transform.String(stripMarks(), raw)
	if err != nil {
		folded = raw
	}
	folded = strings.ToLower(folded)

	cleaned := stripPunctuation([]rune(folded))

	words := strings.Fields(cleaned)
	for i, w := range words {
		if expanded, ok := n.abbreviations[w]; ok {
			words[i] = expanded
		}
	}
	return strings.Join(words, " ")
}

func stripPunctuation(rs []rune) string {
	var b strings.Builder
	b.Grow(len(rs))

	for i, r := range rs {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’':
			// "what's" -> "whats"
		case r == '.' && betweenDigits(rs, i):
			b.WriteRune(r)
		case r == ',' && betweenDigits(rs, i):
		case r == '&':
			b.WriteString(" and ")
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func betweenDigits(rs []rune, i int) bool {
	return i > 0 && i < len(rs)-1 && unicode.IsDigit(rs[i-1]) && unicode.IsDigit(rs[i+1])
}
