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

// Package config loads the service configuration from defaults, an optional
// YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/your-org/warehouse-quote-assistant/internal/logging"
)

var (
	// ErrInvalidConfigValue is returned when a configuration value is invalid
	ErrInvalidConfigValue = errors.New("invalid configuration value")
	// ErrNoConfigFile is returned by WatchConfig when there is no file to watch
	ErrNoConfigFile = errors.New("no configuration file to watch")
)

// Chat modes
const (
	ChatModeRules  = "rules"
	ChatModeHybrid = "hybrid"
	ChatModeLLM    = "llm"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Quotation QuotationConfig `mapstructure:"quotation"`
	Logging   logging.Config  `mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// OpenAIConfig contains OpenAI API configuration
type OpenAIConfig struct {
	APIKey         string  `mapstructure:"apikey"`
	Endpoint       string  `mapstructure:"endpoint"`
	Model          string  `mapstructure:"model"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// Timeout returns the generator call timeout.
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ChatConfig contains chat assistant configuration
type ChatConfig struct {
	Mode             string `mapstructure:"mode"`
	RulesPath        string `mapstructure:"rules_path"`
	FallbackReply    string `mapstructure:"fallback_reply"`
	UnavailableReply string `mapstructure:"unavailable_reply"`
	ErrorReply       string `mapstructure:"error_reply"`
}

// QuotationConfig contains quotation generation configuration
type QuotationConfig struct {
	RatesPath               string `mapstructure:"rates_path"`
	TemplatesDir            string `mapstructure:"templates_dir"`
	OutputDir               string `mapstructure:"output_dir"`
	WMSMonthlyFee           string `mapstructure:"wms_monthly_fee"`
	AllowUnpricedCategories bool   `mapstructure:"allow_unpriced_categories"`
	Currency                string `mapstructure:"currency"`
}

// WMSFee parses the configured WMS monthly fee. An empty value yields an
// invalid NullDecimal, which leaves the rate table's fee in effect.
func (c QuotationConfig) WMSFee() (decimal.NullDecimal, error) {
	raw := strings.TrimSpace(c.WMSMonthlyFee)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	fee, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(fee), nil
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over config file values.
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{
		ConfigPath:       configPath,
		ValidateRequired: true,
	})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	hasFile, err := setConfigFile(v, opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("QUOTEBOT")

	if hasFile {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "release")

	// OpenAI defaults
	v.SetDefault("openai.endpoint", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 300)
	v.SetDefault("openai.temperature", 0.3)
	v.SetDefault("openai.timeout_seconds", 15)

	// Chat defaults
	v.SetDefault("chat.mode", ChatModeRules)
	v.SetDefault("chat.rules_path", "")
	v.SetDefault("chat.fallback_reply", "")
	v.SetDefault("chat.unavailable_reply", "The assistant is unavailable right now. Please try again later.")
	v.SetDefault("chat.error_reply", "Sorry, I could not answer that right now. Please try again later.")

	// Quotation defaults
	v.SetDefault("quotation.rates_path", "")
	v.SetDefault("quotation.templates_dir", "./templates")
	v.SetDefault("quotation.output_dir", "./generated")
	v.SetDefault("quotation.wms_monthly_fee", "")
	v.SetDefault("quotation.allow_unpriced_categories", false)
	v.SetDefault("quotation.currency", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.development", false)
}

// setConfigFile sets the configuration file path with fallback logic. It
// reports whether a file will be read; running without one is allowed.
func setConfigFile(v *viper.Viper, configPath string) (bool, error) {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return false, fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return true, nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return false, fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return true, nil
	}

	for _, path := range []string{"./configs/config.yaml", "./config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			return true, nil
		}
	}

	return false, nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"PORT":            "server.port",
		"GIN_MODE":        "server.mode",
		"OPENAI_API_KEY":  "openai.apikey",
		"OPENAI_ENDPOINT": "openai.endpoint",
		"OPENAI_MODEL":    "openai.model",
		"CHAT_MODE":       "chat.mode",
		"LOG_LEVEL":       "logging.level",
		"LOG_FORMAT":      "logging.format",
		"LOG_OUTPUT":      "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates the configuration for valid values
func validateConfig(config *Config) error {
	var errs []ValidationError

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	validServerModes := []string{"debug", "release", "test"}
	if !contains(validServerModes, config.Server.Mode) {
		errs = append(errs, ValidationError{
			Field:   "server.mode",
			Message: fmt.Sprintf("server mode must be one of: %s", strings.Join(validServerModes, ", ")),
		})
	}

	if config.OpenAI.MaxTokens <= 0 {
		errs = append(errs, ValidationError{
			Field:   "openai.max_tokens",
			Message: "max_tokens must be greater than 0",
		})
	}

	if config.OpenAI.Temperature < 0 || config.OpenAI.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "openai.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if config.OpenAI.TimeoutSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "openai.timeout_seconds",
			Message: "timeout_seconds must be greater than 0",
		})
	}

	validChatModes := []string{ChatModeRules, ChatModeHybrid, ChatModeLLM}
	if !contains(validChatModes, config.Chat.Mode) {
		errs = append(errs, ValidationError{
			Field:   "chat.mode",
			Message: fmt.Sprintf("chat mode must be one of: %s", strings.Join(validChatModes, ", ")),
		})
	}

	if fee, err := config.Quotation.WMSFee(); err != nil || (fee.Valid && fee.Decimal.IsNegative()) {
		errs = append(errs, ValidationError{
			Field:   "quotation.wms_monthly_fee",
			Message: "wms_monthly_fee must be a non-negative decimal",
		})
	}

	if config.Quotation.OutputDir == "" {
		errs = append(errs, ValidationError{
			Field:   "quotation.output_dir",
			Message: "output directory is required",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "console"}
	if !contains(validLogFormats, config.Logging.Format) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if len(errs) > 0 {
		var errorMessages []string
		for _, err := range errs {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("%w:\n%s", ErrInvalidConfigValue, strings.Join(errorMessages, "\n"))
	}

	return nil
}

// GeneratorConfigured reports whether text generation can be used.
func (c *Config) GeneratorConfigured() bool {
	return strings.TrimSpace(c.OpenAI.APIKey) != ""
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.OpenAI.APIKey != "" {
		masked.OpenAI.APIKey = maskValue(masked.OpenAI.APIKey)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// WatchConfig reloads the configuration whenever the config file changes
// and passes every valid result to callback. Invalid edits are logged and
// ignored so the previous configuration stays in effect.
func WatchConfig(configPath string, logger *zap.Logger, callback func(*Config)) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := viper.New()

	hasFile, err := setConfigFile(v, configPath)
	if err != nil {
		return err
	}
	if !hasFile {
		return ErrNoConfigFile
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		logger.Info("Config file changed", zap.String("file", e.Name))

		config, err := Load(configPath)
		if err != nil {
			logger.Error("Failed to reload config", zap.Error(err))
			return
		}

		callback(config)
	})
	v.WatchConfig()

	return nil
}
