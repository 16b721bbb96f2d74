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

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testAPIKey = "sk-test1234567890abcdef" // pragma: allowlist secret

// mockOpenAIServer answers chat completions with the given status and body
// and records the last request it received.
func mockOpenAIServer(t testing.TB, status int, body string, got *openai.ChatCompletionRequest) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": {"message": "not found"}}`))
			return
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func createMockChatResponse(content string) string {
	payload := map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1234567890,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	data, _ := json.Marshal(payload)
	return string(data)
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{
		APIKey:      testAPIKey,
		Endpoint:    server.URL + "/v1/",
		Model:       "gpt-4o-mini",
		MaxTokens:   100,
		Temperature: 0.2,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{}, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrUnavailable)

	client, err := NewClient(Config{APIKey: testAPIKey}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", client.Model())
	assert.Contains(t, client.systemPrompt, "DSV Assistant")
}

func TestGenerateReply(t *testing.T) {
	var got openai.ChatCompletionRequest
	server := mockOpenAIServer(t, http.StatusOK, createMockChatResponse("  Forklifts are available.  "), &got)
	client := newTestClient(t, server)

	reply, err := client.GenerateReply(context.Background(), "do you have forklifts?")
	require.NoError(t, err)
	assert.Equal(t, "Forklifts are available.", reply)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 100, got.MaxTokens)
	assert.InDelta(t, 0.2, got.Temperature, 1e-6)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, got.Messages[0].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, got.Messages[1].Role)
	assert.Equal(t, "do you have forklifts?", got.Messages[1].Content)
}

func TestGenerateReplyErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{"error": {"message": "bad key", "type": "invalid_request_error"}}`,
			expected: ErrUnauthorized,
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error": {"message": "slow down", "type": "requests"}}`,
			expected: ErrRateLimited,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{"error": {"message": "boom", "type": "server_error"}}`,
			expected: ErrUpstream,
		},
		{
			name:     "no choices",
			status:   http.StatusOK,
			body:     `{"id": "x", "object": "chat.completion", "choices": []}`,
			expected: ErrEmptyReply,
		},
		{
			name:     "blank content",
			status:   http.StatusOK,
			body:     createMockChatResponse("   "),
			expected: ErrEmptyReply,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := mockOpenAIServer(t, tt.status, tt.body, nil)
			client := newTestClient(t, server)

			_, err := client.GenerateReply(context.Background(), "hello")
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestGenerateReplySingleAttempt(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded"}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.GenerateReply(context.Background(), "hello")

	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, 1, calls)
}

func TestGenerateReplyContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := newTestClient(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GenerateReply(ctx, "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnavailable(t *testing.T) {
	var g Generator = Unavailable{}
	_, err := g.GenerateReply(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt([]string{"AC: 2.50 AED / CBM / day"})
	assert.Contains(t, prompt, "DSV Assistant")
	assert.Contains(t, prompt, "Reference facts:\n- AC: 2.50 AED / CBM / day\n")

	assert.NotContains(t, BuildSystemPrompt(nil), "Reference facts")
}
