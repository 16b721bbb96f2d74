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

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// clearEnv blanks every variable the loader maps so the host environment
// does not leak into tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"CONFIG_PATH", "PORT", "GIN_MODE", "OPENAI_API_KEY", "OPENAI_ENDPOINT",
		"OPENAI_MODEL", "CHAT_MODE", "LOG_LEVEL", "LOG_FORMAT", "LOG_OUTPUT",
	} {
		t.Setenv(name, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	configPath := writeConfig(t, `
server:
  port: 8080
  mode: debug
openai:
  apikey: "sk-test-key"  # pragma: allowlist secret
  model: "gpt-4o"
  max_tokens: 500
  temperature: 0.1
  timeout_seconds: 5
chat:
  mode: hybrid
  rules_path: "./rules.yaml"
quotation:
  rates_path: "./rates.yaml"
  templates_dir: "./tpl"
  output_dir: "./out"
  wms_monthly_fee: "1750.50"
  allow_unpriced_categories: true
logging:
  level: debug
  format: console
  output: stderr
`)

	config, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "debug", config.Server.Mode)
	assert.Equal(t, "sk-test-key", config.OpenAI.APIKey)
	assert.Equal(t, "https://api.openai.com/v1", config.OpenAI.Endpoint)
	assert.Equal(t, "gpt-4o", config.OpenAI.Model)
	assert.Equal(t, 500, config.OpenAI.MaxTokens)
	assert.InDelta(t, 0.1, config.OpenAI.Temperature, 1e-9)
	assert.Equal(t, 5*time.Second, config.OpenAI.Timeout())
	assert.Equal(t, ChatModeHybrid, config.Chat.Mode)
	assert.Equal(t, "./rules.yaml", config.Chat.RulesPath)
	assert.Equal(t, "./rates.yaml", config.Quotation.RatesPath)
	assert.Equal(t, "./tpl", config.Quotation.TemplatesDir)
	assert.Equal(t, "./out", config.Quotation.OutputDir)
	assert.True(t, config.Quotation.AllowUnpricedCategories)
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "console", config.Logging.Format)
	assert.Equal(t, "stderr", config.Logging.Output)

	fee, err := config.Quotation.WMSFee()
	require.NoError(t, err)
	assert.True(t, fee.Valid)
	assert.Equal(t, "1750.5", fee.Decimal.String())
	assert.True(t, config.GeneratorConfigured())
}

func TestDefaultValues(t *testing.T) {
	clearEnv(t)
	chdirForTest(t, t.TempDir())

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, config.Server.Port)
	assert.Equal(t, "release", config.Server.Mode)
	assert.Equal(t, "gpt-4o-mini", config.OpenAI.Model)
	assert.Equal(t, 300, config.OpenAI.MaxTokens)
	assert.Equal(t, 15*time.Second, config.OpenAI.Timeout())
	assert.Equal(t, ChatModeRules, config.Chat.Mode)
	assert.NotEmpty(t, config.Chat.UnavailableReply)
	assert.NotEmpty(t, config.Chat.ErrorReply)
	assert.Equal(t, "./templates", config.Quotation.TemplatesDir)
	assert.Equal(t, "./generated", config.Quotation.OutputDir)
	assert.False(t, config.Quotation.AllowUnpricedCategories)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, "stdout", config.Logging.Output)
	assert.False(t, config.GeneratorConfigured())

	fee, err := config.Quotation.WMSFee()
	require.NoError(t, err)
	assert.False(t, fee.Valid)
}

func TestQuotationConfig_WMSFeeExplicitZero(t *testing.T) {
	fee, err := QuotationConfig{WMSMonthlyFee: " 0 "}.WMSFee()
	require.NoError(t, err)
	assert.True(t, fee.Valid)
	assert.True(t, fee.Decimal.IsZero())
}

func TestEnvironmentVariableOverrides(t *testing.T) {
	clearEnv(t)

	configPath := writeConfig(t, `
server:
  port: 8080
openai:
  model: "gpt-4o"
logging:
  level: info
`)

	t.Setenv("PORT", "9090")
	t.Setenv("OPENAI_API_KEY", "sk-env-key")
	t.Setenv("OPENAI_ENDPOINT", "http://localhost:11434/v1")
	t.Setenv("OPENAI_MODEL", "llama3")
	t.Setenv("CHAT_MODE", "llm")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "console")

	config, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "sk-env-key", config.OpenAI.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", config.OpenAI.Endpoint)
	assert.Equal(t, "llama3", config.OpenAI.Model)
	assert.Equal(t, ChatModeLLM, config.Chat.Mode)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, "console", config.Logging.Format)
}

func TestConfigPathEnvironmentVariable(t *testing.T) {
	clearEnv(t)

	configPath := writeConfig(t, `
server:
  port: 7000
`)
	t.Setenv("CONFIG_PATH", configPath)

	config, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7000, config.Server.Port)

	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name          string
		content       string
		expectedField string
	}{
		{
			name:          "port out of range",
			content:       "server:\n  port: 70000\n",
			expectedField: "server.port",
		},
		{
			name:          "unknown server mode",
			content:       "server:\n  mode: turbo\n",
			expectedField: "server.mode",
		},
		{
			name:          "unknown chat mode",
			content:       "chat:\n  mode: smart\n",
			expectedField: "chat.mode",
		},
		{
			name:          "zero max tokens",
			content:       "openai:\n  max_tokens: 0\n",
			expectedField: "openai.max_tokens",
		},
		{
			name:          "temperature too high",
			content:       "openai:\n  temperature: 2.5\n",
			expectedField: "openai.temperature",
		},
		{
			name:          "zero timeout",
			content:       "openai:\n  timeout_seconds: 0\n",
			expectedField: "openai.timeout_seconds",
		},
		{
			name:          "negative wms fee",
			content:       "quotation:\n  wms_monthly_fee: \"-1\"\n",
			expectedField: "quotation.wms_monthly_fee",
		},
		{
			name:          "unparsable wms fee",
			content:       "quotation:\n  wms_monthly_fee: \"lots\"\n",
			expectedField: "quotation.wms_monthly_fee",
		},
		{
			name:          "empty output dir",
			content:       "quotation:\n  output_dir: \"\"\n",
			expectedField: "quotation.output_dir",
		},
		{
			name:          "invalid log level",
			content:       "logging:\n  level: verbose\n",
			expectedField: "logging.level",
		},
		{
			name:          "invalid log format",
			content:       "logging:\n  format: text\n",
			expectedField: "logging.format",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)

			_, err := Load(writeConfig(t, tc.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfigValue)
			assert.Contains(t, err.Error(), tc.expectedField)
		})
	}
}

func TestLoadWithOptionsSkipsValidation(t *testing.T) {
	clearEnv(t)

	config, err := LoadWithOptions(LoadOptions{
		ConfigPath:       writeConfig(t, "chat:\n  mode: smart\n"),
		ValidateRequired: false,
	})
	require.NoError(t, err)
	assert.Equal(t, "smart", config.Chat.Mode)
}

func TestMaskSensitiveValues(t *testing.T) {
	config := &Config{OpenAI: OpenAIConfig{APIKey: "sk-1234567890abcdef"}} // pragma: allowlist secret

	masked := config.MaskSensitiveValues()

	assert.Equal(t, "sk-12345***********", masked.OpenAI.APIKey)
	assert.Equal(t, "sk-1234567890abcdef", config.OpenAI.APIKey, "original must not change")
}

func TestMaskValue(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"short", "*****"},
		{"exactly8", "********"},
		{"longer-than-eight", "longer-t*********"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, maskValue(tc.input))
		})
	}
}

func TestValidationError(t *testing.T) {
	err := ValidationError{Field: "chat.mode", Message: "bad"}
	expected := "configuration validation failed for field 'chat.mode': bad"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestWatchConfigWithoutFile(t *testing.T) {
	clearEnv(t)
	chdirForTest(t, t.TempDir())

	err := WatchConfig("", zaptest.NewLogger(t), func(*Config) {})
	assert.ErrorIs(t, err, ErrNoConfigFile)
}

func TestWatchConfigReloads(t *testing.T) {
	clearEnv(t)

	configPath := writeConfig(t, "server:\n  port: 8080\n")

	reloaded := make(chan *Config, 4)
	err := WatchConfig(configPath, zaptest.NewLogger(t), func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 8181\n"), 0o644))

	// a write can surface as several events, the first of them seeing a
	// truncated file
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c.Server.Port == 8181 {
				return
			}
		case <-deadline:
			t.Skip("file watcher did not report the change in time")
		}
	}
}

func TestContains(t *testing.T) {
	assert.True(t, contains([]string{"rules", "hybrid"}, "hybrid"))
	assert.False(t, contains([]string{"rules"}, strings.ToUpper("rules")))
	assert.False(t, contains(nil, "rules"))
}

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it
// changes the working directory and restores it when the test finishes.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
