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

package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"
	"github.com/shopspring/decimal"

	"github.com/your-org/warehouse-quote-assistant/internal/money"
	"github.com/your-org/warehouse-quote-assistant/internal/normalize"
)

// Match is the outcome of evaluating a message against the rule book.
type Match struct {
	RuleID     string          `json:"rule_id,omitempty"`
	Reply      string          `json:"reply"`
	Matched    bool            `json:"matched"`
	Calculated bool            `json:"calculated,omitempty"`
	Quantity   decimal.Decimal `json:"quantity"`
	Total      decimal.Decimal `json:"total"`
}

type compiledRule struct {
	id       string
	reply    string
	patterns []*regexp.Regexp
	calc     *compiledCalculation
}

type compiledCalculation struct {
	quantity *regexp.Regexp
	rate     decimal.Decimal
	unit     string
	reply    string
}

// Matcher evaluates normalized text against a compiled rule book. It is
// immutable after construction and safe for concurrent use.
type Matcher struct {
	version  string
	currency string
	fallback string
	rules    []compiledRule

	// phrases holds every distinct literal phrase, space padded so that the
	// automaton only reports whole-word hits. phraseRules maps a phrase
	// index to the rules declaring it.
	phrases     *ahocorasick.Matcher
	phraseRules [][]int
}

// NewMatcher compiles book. Literal phrases are normalized with n so that
// authors can write them the way users type them ("Non-AC storage").
func NewMatcher(book *Book, n *normalize.Normalizer) (*Matcher, error) {
	if book == nil {
		return nil, fmt.Errorf("%w: nil book", ErrInvalidBook)
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}
	if n == nil {
		n = normalize.New(nil)
	}

	m := &Matcher{
		version:  book.Version,
		currency: book.Currency,
		fallback: book.Fallback,
		rules:    make([]compiledRule, 0, len(book.Rules)),
	}

	phraseIndex := make(map[string]int)
	var dictionary []string

	for i, r := range book.Rules {
		cr := compiledRule{id: r.ID, reply: r.Reply}

		for _, p := range r.Phrases {
			phrase := n.Normalize(p)
			if phrase == "" {
				return nil, fmt.Errorf("%w: rule %s: phrase %q is empty after normalization", ErrInvalidBook, r.ID, p)
			}
			idx, ok := phraseIndex[phrase]
			if !ok {
				idx = len(dictionary)
				phraseIndex[phrase] = idx
				dictionary = append(dictionary, " "+phrase+" ")
				m.phraseRules = append(m.phraseRules, nil)
			}
			m.phraseRules[idx] = append(m.phraseRules[idx], i)
		}

		for _, p := range r.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %s: pattern %q: %v", ErrInvalidBook, r.ID, p, err)
			}
			cr.patterns = append(cr.patterns, re)
		}

		if r.Calculation != nil {
			calc, err := compileCalculation(r.Calculation)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %s: %v", ErrInvalidBook, r.ID, err)
			}
			cr.calc = calc
		}

		m.rules = append(m.rules, cr)
	}

	if len(dictionary) > 0 {
		m.phrases = ahocorasick.NewStringMatcher(dictionary)
	}

	return m, nil
}

func compileCalculation(c *Calculation) (*compiledCalculation, error) {
	re, err := regexp.Compile("(?i)" + c.Quantity)
	if err != nil {
		return nil, fmt.Errorf("quantity pattern %q: %v", c.Quantity, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("quantity pattern %q has no capture group", c.Quantity)
	}

	rate, err := decimal.NewFromString(c.Rate)
	if err != nil {
		return nil, fmt.Errorf("rate %q: %v", c.Rate, err)
	}
	if rate.IsNegative() {
		return nil, fmt.Errorf("rate %q must not be negative", c.Rate)
	}

	return &compiledCalculation{
		quantity: re,
		rate:     rate,
		unit:     c.Unit,
		reply:    c.Reply,
	}, nil
}

// Version returns the version string of the compiled rule book.
func (m *Matcher) Version() string {
	return m.version
}

// Fallback returns the reply used when no rule matches.
func (m *Matcher) Fallback() string {
	return m.fallback
}

// RuleCount returns the number of compiled rules.
func (m *Matcher) RuleCount() int {
	return len(m.rules)
}

// Match evaluates normalized against the rules in declaration order and
// returns the first applicable reply. A calculation rule whose quantity
// cannot be extracted is skipped. Match never fails: when no rule applies
// the fallback reply is returned.
func (m *Matcher) Match(normalized string) Match {
	hits := m.phraseHits(normalized)

	for i := range m.rules {
		r := &m.rules[i]
		if !hits[i] && !r.matchesPattern(normalized) {
			continue
		}

		if r.calc == nil {
			return Match{RuleID: r.id, Reply: r.reply, Matched: true}
		}

		quantity, ok := r.calc.extract(normalized)
		if !ok {
			continue
		}
		total := money.Round(quantity.Mul(r.calc.rate))
		return Match{
			RuleID:     r.id,
			Reply:      r.calc.render(quantity, total, m.currency),
			Matched:    true,
			Calculated: true,
			Quantity:   quantity,
			Total:      total,
		}
	}

	return Match{Reply: m.fallback}
}

func (m *Matcher) phraseHits(normalized string) []bool {
	hits := make([]bool, len(m.rules))
	if m.phrases == nil || normalized == "" {
		return hits
	}
	for _, idx := range m.phrases.MatchThreadSafe([]byte(" " + normalized + " ")) {
		for _, ruleIdx := range m.phraseRules[idx] {
			hits[ruleIdx] = true
		}
	}
	return hits
}

func (r *compiledRule) matchesPattern(normalized string) bool {
	for _, re := range r.patterns {
		if re.MatchString(normalized) {
			return true
		}
	}
	return false
}

func (c *compiledCalculation) extract(normalized string) (decimal.Decimal, bool) {
	sub := c.quantity.FindStringSubmatch(normalized)
	if len(sub) < 2 || sub[1] == "" {
		return decimal.Zero, false
	}
	q, err := decimal.NewFromString(sub[1])
	if err != nil || q.IsNegative() {
		return decimal.Zero, false
	}
	return q, true
}

func (c *compiledCalculation) render(quantity, total decimal.Decimal, currency string) string {
	return strings.NewReplacer(
		"{quantity}", quantity.String(),
		"{unit}", c.unit,
		"{rate}", money.Format(c.rate),
		"{total}", money.Format(total),
		"{currency}", currency,
	).Replace(c.reply)
}
