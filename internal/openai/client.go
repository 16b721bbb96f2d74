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

// Package openai adapts go-openai to the text generation capability used by
// the chat assistant.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable is returned when no generation backend is configured
	ErrUnavailable = errors.New("text generation unavailable")
	// ErrUnauthorized is returned when the backend rejects the credential
	ErrUnauthorized = errors.New("invalid API key or unauthorized access")
	// ErrRateLimited is returned when the backend throttles requests
	ErrRateLimited = errors.New("rate limited by text generation backend")
	// ErrUpstream is returned for backend server errors
	ErrUpstream = errors.New("text generation backend error")
	// ErrEmptyReply is returned when the backend answers without content
	ErrEmptyReply = errors.New("empty reply from text generation backend")
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Generator produces a free-text reply for a prompt.
type Generator interface {
	GenerateReply(ctx context.Context, prompt string) (string, error)
}

// Config configures a Client.
type Config struct {
	APIKey       string
	Endpoint     string
	Model        string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
}

// Client implements Generator over the chat completions API. Every call is
// a single attempt.
type Client struct {
	client       *openai.Client
	logger       *zap.Logger
	model        string
	maxTokens    int
	temperature  float32
	systemPrompt string
}

// NewClient creates a client. It does not contact the backend.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrUnavailable)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.Endpoint, "/")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = BuildSystemPrompt(nil)
	}

	logger.Info("OpenAI client initialized",
		zap.String("model", model),
		zap.String("endpoint", clientConfig.BaseURL),
		zap.Int("max_tokens", cfg.MaxTokens))

	return &Client{
		client:       openai.NewClientWithConfig(clientConfig),
		logger:       logger,
		model:        model,
		maxTokens:    cfg.MaxTokens,
		temperature:  float32(cfg.Temperature),
		systemPrompt: systemPrompt,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// GenerateReply sends prompt with the assistant system prompt and returns
// the first choice's content.
func (c *Client) GenerateReply(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	c.logger.Debug("Creating chat completion",
		zap.String("model", c.model),
		zap.Int("max_tokens", c.maxTokens),
		zap.Int("prompt_length", len(prompt)))

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", handleAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyReply
	}

	c.logger.Debug("Chat completion successful",
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return content, nil
}

// handleAPIError maps API errors onto the package sentinels.
func handleAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		case apiErr.HTTPStatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w (status %d): %s", ErrUpstream, apiErr.HTTPStatusCode, apiErr.Message)
		default:
			return fmt.Errorf("API error (status %d): %w", apiErr.HTTPStatusCode, err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w (status %d): %v", ErrUpstream, reqErr.HTTPStatusCode, reqErr.Err)
	}

	return fmt.Errorf("chat completion failed: %w", err)
}

// Unavailable is the Generator used when no backend is configured.
type Unavailable struct{}

// GenerateReply always fails with ErrUnavailable.
func (Unavailable) GenerateReply(context.Context, string) (string, error) {
	return "", ErrUnavailable
}

// BuildSystemPrompt creates the system prompt for the warehouse assistant.
// facts are appended as reference lines, e.g. the current storage rates.
func BuildSystemPrompt(facts []string) string {
	var b strings.Builder
	b.WriteString(`You are DSV Assistant, a helpful assistant for DSV warehousing and logistics in the UAE.

Answer questions about storage, warehouse management (WMS), value added services, transport, handling equipment and containers.

When responding:
- Be brief, two or three sentences at most
- Quote prices only from the reference facts below, never invent a rate
- If you do not know the answer, suggest contacting DSV directly`)

	if len(facts) > 0 {
		b.WriteString("\n\nReference facts:\n")
		for _, fact := range facts {
			b.WriteString("- ")
			b.WriteString(fact)
			b.WriteString("\n")
		}
	}

	return b.String()
}
