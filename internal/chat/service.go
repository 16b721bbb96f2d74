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

// Package chat answers free-text messages: rule book first, text
// generation when the mode allows it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/warehouse-quote-assistant/internal/normalize"
	"github.com/your-org/warehouse-quote-assistant/internal/openai"
	"github.com/your-org/warehouse-quote-assistant/internal/resilience"
	"github.com/your-org/warehouse-quote-assistant/internal/rules"
)

// Mode selects how messages are answered.
type Mode string

const (
	// ModeRules answers from the rule book only
	ModeRules Mode = "rules"
	// ModeHybrid sends messages no rule matched to the generator
	ModeHybrid Mode = "hybrid"
	// ModeLLM sends every message to the generator
	ModeLLM Mode = "llm"
)

// ErrUnknownMode is returned by ParseMode for an unsupported mode.
var ErrUnknownMode = errors.New("unknown chat mode")

// ParseMode validates a mode name. An empty name selects ModeRules.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeRules:
		return ModeRules, nil
	case ModeHybrid:
		return ModeHybrid, nil
	case ModeLLM:
		return ModeLLM, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Source tells where a reply came from.
type Source string

const (
	SourceRule        Source = "rule"
	SourceCalculation Source = "calculation"
	SourceFallback    Source = "fallback"
	SourceGenerator   Source = "generator"
	SourceUnavailable Source = "unavailable"
	SourceError       Source = "error"
)

// Reply is the answer to one message.
type Reply struct {
	Text   string `json:"reply"`
	Source Source `json:"source"`
	RuleID string `json:"rule_id,omitempty"`
}

// Config configures a Service.
type Config struct {
	Mode Mode
	// Timeout bounds a single generator call.
	Timeout time.Duration
	// FallbackReply overrides the rule book's fallback when set.
	FallbackReply    string
	UnavailableReply string
	ErrorReply       string
}

const (
	defaultUnavailableReply = "The assistant is unavailable right now. Please try again later."
	defaultErrorReply       = "Sorry, I could not answer that right now. Please try again later."
)

// Service answers chat messages. It is safe for concurrent use; the rule
// matcher can be replaced at runtime with SetMatcher.
type Service struct {
	normalizer *normalize.Normalizer
	generator  openai.Generator
	config     Config
	logger     *zap.Logger

	matcher atomic.Pointer[rules.Matcher]
}

// NewService creates a chat service. A nil generator behaves like
// openai.Unavailable.
func NewService(matcher *rules.Matcher, n *normalize.Normalizer, generator openai.Generator, cfg Config, logger *zap.Logger) *Service {
	if n == nil {
		n = normalize.New(nil)
	}
	if generator == nil {
		generator = openai.Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeRules
	}
	if cfg.UnavailableReply == "" {
		cfg.UnavailableReply = defaultUnavailableReply
	}
	if cfg.ErrorReply == "" {
		cfg.ErrorReply = defaultErrorReply
	}

	s := &Service{
		normalizer: n,
		generator:  generator,
		config:     cfg,
		logger:     logger,
	}
	s.matcher.Store(matcher)
	return s
}

// Mode returns the configured mode.
func (s *Service) Mode() Mode {
	return s.config.Mode
}

// Matcher returns the rule matcher currently in use.
func (s *Service) Matcher() *rules.Matcher {
	return s.matcher.Load()
}

// SetMatcher replaces the rule matcher. In-flight messages finish with the
// matcher they started with.
func (s *Service) SetMatcher(m *rules.Matcher) {
	if m == nil {
		return
	}
	s.matcher.Store(m)
	s.logger.Info("Rule book replaced",
		zap.String("version", m.Version()),
		zap.Int("rules", m.RuleCount()))
}

// Reply answers message. It never fails: generator problems turn into the
// configured unavailable or error replies.
func (s *Service) Reply(ctx context.Context, message string) Reply {
	normalized := s.normalizer.Normalize(message)
	matcher := s.matcher.Load()

	if normalized == "" {
		return s.fallback(matcher)
	}

	if s.config.Mode == ModeLLM {
		return s.generate(ctx, message)
	}

	match := matcher.Match(normalized)
	if match.Matched {
		source := SourceRule
		if match.Calculated {
			source = SourceCalculation
		}
		s.logger.Debug("Rule matched",
			zap.String("rule_id", match.RuleID),
			zap.Bool("calculated", match.Calculated))
		return Reply{Text: match.Reply, Source: source, RuleID: match.RuleID}
	}

	if s.config.Mode == ModeHybrid {
		return s.generate(ctx, message)
	}

	s.logger.Debug("No rule matched", zap.String("normalized", normalized))
	return s.fallback(matcher)
}

func (s *Service) fallback(matcher *rules.Matcher) Reply {
	text := s.config.FallbackReply
	if text == "" {
		text = matcher.Fallback()
	}
	return Reply{Text: text, Source: SourceFallback}
}

func (s *Service) generate(ctx context.Context, message string) Reply {
	text, err := resilience.Call(ctx, s.config.Timeout, s.logger, func(ctx context.Context) (string, error) {
		return s.generator.GenerateReply(ctx, message)
	})
	if err == nil {
		return Reply{Text: text, Source: SourceGenerator}
	}

	if errors.Is(err, openai.ErrUnavailable) {
		s.logger.Debug("Text generation unavailable")
		return Reply{Text: s.config.UnavailableReply, Source: SourceUnavailable}
	}

	s.logger.Warn("Text generation failed", zap.Error(err))
	return Reply{Text: s.config.ErrorReply, Source: SourceError}
}
