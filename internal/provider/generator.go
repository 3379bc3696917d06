package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Generator is the capability the orchestration core depends on: an ordered
// list of role-tagged messages and a temperature in, generated text out.
type Generator interface {
	Generate(ctx context.Context, messages []Message, temperature float64) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, messages []Message, temperature float64) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, messages []Message, temperature float64) (string, error) {
	return f(ctx, messages, temperature)
}

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("provider returned an empty response")

// HTTPError is a non-2xx answer from an API provider.
type HTTPError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: http error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unauthorized reports whether the provider rejected the credentials.
func (e *HTTPError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

type contextKey string

const roleKey contextKey = "foundry-role"

// WithRole tags ctx with the id of the role a generation call is made for.
// Fixture providers use it to select a recorded response.
func WithRole(ctx context.Context, roleID string) context.Context {
	return context.WithValue(ctx, roleKey, roleID)
}

// RoleFromContext returns the role id stored by WithRole.
func RoleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(roleKey).(string); ok {
		return v
	}
	return ""
}

// ClientGenerator adapts a ProviderClient to the Generator capability.
type ClientGenerator struct {
	client    ProviderClient
	maxTokens int
}

// NewClientGenerator wraps client. maxTokens of 0 keeps the provider default.
func NewClientGenerator(client ProviderClient, maxTokens int) *ClientGenerator {
	return &ClientGenerator{client: client, maxTokens: maxTokens}
}

// Generate implements Generator.
func (g *ClientGenerator) Generate(ctx context.Context, messages []Message, temperature float64) (string, error) {
	req := &GenerateRequest{
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: temperature,
	}
	if role := RoleFromContext(ctx); role != "" {
		req.Metadata = map[string]string{"role": role}
	}

	resp, err := g.client.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%s: %s", g.client.GetInfo().Name, resp.Error)
	}
	if resp.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}

// Client returns the wrapped provider.
func (g *ClientGenerator) Client() ProviderClient {
	return g.client
}

var _ Generator = (*ClientGenerator)(nil)
