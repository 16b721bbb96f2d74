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

// Package rules implements the ordered, data-driven rule book used by the
// chat assistant: every rule is a set of phrases or regular expressions
// paired with a canned reply or a unit-rate calculation.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

var (
	// ErrInvalidBook is returned when a rule book fails validation
	ErrInvalidBook = errors.New("invalid rule book")
)

// Book is a versioned, ordered list of rules plus the reply returned when
// nothing matches. Declaration order is evaluation order.
type Book struct {
	Version  string `yaml:"version"`
	Currency string `yaml:"currency"`
	Fallback string `yaml:"fallback"`
	Rules    []Rule `yaml:"rules"`
}

// Rule pairs match patterns with a response.
type Rule struct {
	ID string `yaml:"id"`
	// Phrases are matched as whole words against normalized text.
	Phrases []string `yaml:"phrases"`
	// Patterns are regular expressions evaluated against normalized text.
	Patterns    []string     `yaml:"patterns"`
	Reply       string       `yaml:"reply"`
	Calculation *Calculation `yaml:"calculation,omitempty"`
}

// Calculation describes a reply computed as quantity x rate. Quantity is a
// regular expression with exactly one capture group holding the number.
// Reply may reference {quantity}, {unit}, {rate}, {total} and {currency}.
type Calculation struct {
	Quantity string `yaml:"quantity"`
	Rate     string `yaml:"rate"`
	Unit     string `yaml:"unit"`
	Reply    string `yaml:"reply"`
}

// DefaultBook returns the rule book shipped with the binary.
func DefaultBook() (*Book, error) {
	return ParseBook(defaultRulesYAML)
}

// LoadBook reads a rule book from path. An empty path yields the default
// book.
func LoadBook(path string) (*Book, error) {
	if path == "" {
		return DefaultBook()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule book %s: %w", path, err)
	}

	book, err := ParseBook(data)
	if err != nil {
		return nil, fmt.Errorf("rule book %s: %w", path, err)
	}
	return book, nil
}

// ParseBook decodes and validates a YAML rule book.
func ParseBook(data []byte) (*Book, error) {
	var book Book
	if err := yaml.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("failed to decode rule book: %w", err)
	}
	if err := book.Validate(); err != nil {
		return nil, err
	}
	return &book, nil
}

// Validate checks the structural requirements of the book. Regular
// expressions are compiled later by NewMatcher.
func (b *Book) Validate() error {
	var problems []string

	if strings.TrimSpace(b.Fallback) == "" {
		problems = append(problems, "fallback reply is required")
	}
	if len(b.Rules) == 0 {
		problems = append(problems, "at least one rule is required")
	}

	seen := make(map[string]bool, len(b.Rules))
	for i, r := range b.Rules {
		label := fmt.Sprintf("rule %d", i)
		if r.ID != "" {
			label = fmt.Sprintf("rule %d (%s)", i, r.ID)
		}

		switch {
		case r.ID == "":
			problems = append(problems, label+": id is required")
		case seen[r.ID]:
			problems = append(problems, label+": duplicate id")
		}
		seen[r.ID] = true

		if len(r.Phrases) == 0 && len(r.Patterns) == 0 {
			problems = append(problems, label+": needs at least one phrase or pattern")
		}

		if r.Calculation == nil {
			if strings.TrimSpace(r.Reply) == "" {
				problems = append(problems, label+": reply or calculation is required")
			}
			continue
		}
		if r.Calculation.Quantity == "" {
			problems = append(problems, label+": calculation quantity pattern is required")
		}
		if r.Calculation.Rate == "" {
			problems = append(problems, label+": calculation rate is required")
		}
		if r.Calculation.Reply == "" {
			problems = append(problems, label+": calculation reply is required")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n%s", ErrInvalidBook, strings.Join(problems, "\n"))
	}
	return nil
}
