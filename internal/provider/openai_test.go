package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGenerate(t *testing.T) {
	var got openAIRequest
	server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(openAIResponse{
			Model: "gpt-test",
			Choices: []openAIChoice{{
				Message:      openAIMessage{Role: RoleAssistant, Content: "generated"},
				FinishReason: "stop",
			}},
			Usage: openAIUsage{PromptTokens: 3, CompletionTokens: 4},
		})
	}))

	p, err := NewOpenAIProvider(&ProviderConfig{
		Name:   "openai",
		Config: map[string]interface{}{"api_key": "sk-test", "base_url": server.URL, "max_tokens": 100},
	})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), &GenerateRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "protocol"},
			{Role: RoleUser, Content: "task"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "generated", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
	assert.Equal(t, 100, got.MaxTokens)
	assert.Equal(t, "gpt-4o", got.Model)
}

func TestOpenAIGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":{"message":"overloaded"}}`, wantMsg: "overloaded"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantMsg: "no choices"},
		{name: "bad json", status: http.StatusOK, body: `{`, wantMsg: "unmarshal response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			p, err := NewOpenAIProvider(&ProviderConfig{
				Name:   "openai",
				Config: map[string]interface{}{"api_key": "k", "base_url": server.URL},
			})
			require.NoError(t, err)

			_, err = p.Generate(context.Background(), &GenerateRequest{Messages: []Message{{Role: RoleUser, Content: "x"}}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestOpenAIServerErrorIsNotUnauthorized(t *testing.T) {
	err := error(&HTTPError{Provider: "openai", StatusCode: http.StatusBadGateway})
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.False(t, httpErr.Unauthorized())
}
