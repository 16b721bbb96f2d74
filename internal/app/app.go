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

// Package app wires the configured components into a runnable service.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/warehouse-quote-assistant/internal/chat"
	"github.com/your-org/warehouse-quote-assistant/internal/config"
	"github.com/your-org/warehouse-quote-assistant/internal/document"
	"github.com/your-org/warehouse-quote-assistant/internal/health"
	"github.com/your-org/warehouse-quote-assistant/internal/normalize"
	"github.com/your-org/warehouse-quote-assistant/internal/openai"
	"github.com/your-org/warehouse-quote-assistant/internal/quote"
	"github.com/your-org/warehouse-quote-assistant/internal/rules"
	"github.com/your-org/warehouse-quote-assistant/internal/web"
)

const (
	// ServiceName identifies the service in health reports.
	ServiceName = "quotebot"
	// HealthCheckTimeout bounds a full health report.
	HealthCheckTimeout = 5 * time.Second
)

// App holds the wired components.
type App struct {
	Config *config.Config
	Filler *document.Filler
	Chat   *chat.Service
	Health *health.Manager
	Server *web.Server

	normalizer *normalize.Normalizer
	logger     *zap.Logger
}

// New builds every component from cfg.
func New(cfg *config.Config, version string, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	n := normalize.New(nil)

	matcher, err := LoadMatcher(cfg, n)
	if err != nil {
		return nil, err
	}

	calculator, err := LoadCalculator(cfg, logger)
	if err != nil {
		return nil, err
	}

	mode, err := chat.ParseMode(cfg.Chat.Mode)
	if err != nil {
		return nil, err
	}

	generator, err := newGenerator(cfg, calculator, logger)
	if err != nil {
		return nil, err
	}

	chatService := chat.NewService(matcher, n, generator, chat.Config{
		Mode:             mode,
		Timeout:          cfg.OpenAI.Timeout(),
		FallbackReply:    cfg.Chat.FallbackReply,
		UnavailableReply: cfg.Chat.UnavailableReply,
		ErrorReply:       cfg.Chat.ErrorReply,
	}, logger)

	filler := document.NewFiller(document.Config{
		TemplatesDir: cfg.Quotation.TemplatesDir,
		OutputDir:    cfg.Quotation.OutputDir,
	}, logger)

	healthManager := health.NewManager(ServiceName, version, logger)
	healthManager.SetTimeout(HealthCheckTimeout)

	server, err := web.NewServer(web.Deps{
		Calculator: calculator,
		Filler:     filler,
		Chat:       chatService,
		Health:     healthManager,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:     cfg,
		Filler:     filler,
		Chat:       chatService,
		Health:     healthManager,
		Server:     server,
		normalizer: n,
		logger:     logger,
	}
	a.registerHealthChecks()

	logger.Info("Service components initialized",
		zap.String("rules_version", matcher.Version()),
		zap.Int("rules", matcher.RuleCount()),
		zap.String("rates_version", calculator.Table().Version),
		zap.String("chat_mode", string(mode)),
		zap.Bool("generator_configured", cfg.GeneratorConfigured()))

	return a, nil
}

func (a *App) registerHealthChecks() {
	templateFiles := make([]string, 0, len(document.Variants))
	for _, v := range document.Variants {
		templateFiles = append(templateFiles, v.FileName())
	}

	a.Health.AddChecker("rules", health.StaticChecker(func() map[string]interface{} {
		m := a.Chat.Matcher()
		return map[string]interface{}{"version": m.Version(), "rules": m.RuleCount()}
	}))
	a.Health.AddCheckerFunc("rates", func(context.Context) health.CheckResult {
		t := a.Calculator().Table()
		result := health.CheckResult{
			Status:   health.StatusHealthy,
			Metadata: map[string]interface{}{"version": t.Version, "categories": len(t.Categories())},
		}
		if len(t.Categories()) == 0 {
			result.Status = health.StatusUnhealthy
			result.Error = "rate table has no categories"
		}
		return result
	})
	a.Health.AddChecker("generator", health.GeneratorChecker(string(a.Chat.Mode()), a.Config.GeneratorConfigured(), a.Config.OpenAI.Model))
	a.Health.AddChecker("templates", health.TemplatesChecker(a.Config.Quotation.TemplatesDir, templateFiles))
	a.Health.AddChecker("output", health.DirectoryChecker(a.Config.Quotation.OutputDir))
}

// Reload rebuilds the rule book and rate table from cfg and swaps them in.
// On error the running components are left untouched.
func (a *App) Reload(cfg *config.Config) error {
	matcher, err := LoadMatcher(cfg, a.normalizer)
	if err != nil {
		return err
	}
	calculator, err := LoadCalculator(cfg, a.logger)
	if err != nil {
		return err
	}

	a.Chat.SetMatcher(matcher)
	a.Server.SetCalculator(calculator)
	return nil
}

// Calculator returns the calculator currently serving quotations.
func (a *App) Calculator() *quote.Calculator {
	return a.Server.Calculator()
}

// LoadMatcher loads the configured rule book, or the built-in one.
func LoadMatcher(cfg *config.Config, n *normalize.Normalizer) (*rules.Matcher, error) {
	book, err := rules.LoadBook(cfg.Chat.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule book: %w", err)
	}
	matcher, err := rules.NewMatcher(book, n)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rule book: %w", err)
	}
	return matcher, nil
}

// LoadCalculator loads the configured rate table, or the built-in one, and
// applies the quotation overrides from cfg.
func LoadCalculator(cfg *config.Config, logger *zap.Logger) (*quote.Calculator, error) {
	table, err := quote.LoadRateTable(cfg.Quotation.RatesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate table: %w", err)
	}
	if currency := strings.TrimSpace(cfg.Quotation.Currency); currency != "" {
		table.Currency = currency
	}

	fee, err := cfg.Quotation.WMSFee()
	if err != nil {
		return nil, fmt.Errorf("invalid WMS monthly fee: %w", err)
	}

	return quote.NewCalculator(table, quote.Options{
		AllowUnpriced: cfg.Quotation.AllowUnpricedCategories,
		WMSMonthlyFee: fee,
	}, logger), nil
}

func newGenerator(cfg *config.Config, calculator *quote.Calculator, logger *zap.Logger) (openai.Generator, error) {
	if !cfg.GeneratorConfigured() {
		if cfg.Chat.Mode != config.ChatModeRules {
			logger.Warn("No OpenAI API key configured, generated replies are unavailable",
				zap.String("chat_mode", cfg.Chat.Mode))
		}
		return openai.Unavailable{}, nil
	}

	table := calculator.Table()
	facts := make([]string, 0, len(table.Categories())+1)
	for _, cat := range table.Categories() {
		facts = append(facts, fmt.Sprintf("%s storage: %s", cat.Label, cat.RateDisplay(table.Currency)))
	}
	facts = append(facts, fmt.Sprintf("WMS: %s %s per month, not offered for open yard storage",
		calculator.WMSMonthlyFee().StringFixed(2), table.Currency))

	client, err := openai.NewClient(openai.Config{
		APIKey:       cfg.OpenAI.APIKey,
		Endpoint:     cfg.OpenAI.Endpoint,
		Model:        cfg.OpenAI.Model,
		MaxTokens:    cfg.OpenAI.MaxTokens,
		Temperature:  cfg.OpenAI.Temperature,
		SystemPrompt: openai.BuildSystemPrompt(facts),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	return client, nil
}
