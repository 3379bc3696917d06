package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AnthropicProvider implements ProviderClient for the Anthropic Messages API
type AnthropicProvider struct {
	apiKey    string
	baseURL   string
	client    *http.Client
	config    *ProviderConfig
	model     string
	maxTokens int
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason,omitempty"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewAnthropicProvider creates a new Anthropic provider instance
func NewAnthropicProvider(config *ProviderConfig) (*AnthropicProvider, error) {
	apiKey := config.stringValue("api_key", "")
	if apiKey == "" {
		return nil, fmt.Errorf("api_key not found in provider config")
	}

	return &AnthropicProvider{
		apiKey:    apiKey,
		baseURL:   strings.TrimSuffix(config.stringValue("base_url", "https://api.anthropic.com/v1"), "/"),
		client:    &http.Client{Timeout: config.timeout(120 * time.Second)},
		config:    config,
		model:     config.stringValue("model", "claude-3-5-sonnet-latest"),
		maxTokens: config.intValue("max_tokens", 8192),
	}, nil
}

// Generate implements ProviderClient.Generate
func (p *AnthropicProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	startTime := time.Now()

	reqBody, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := string(respBody)
		var errResp anthropicResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			msg = errResp.Error.Message
		}
		return nil, &HTTPError{Provider: p.config.Name, StatusCode: httpResp.StatusCode, Message: msg}
	}

	var anthResp anthropicResponse
	if err := json.Unmarshal(respBody, &anthResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	var content strings.Builder
	for _, block := range anthResp.Content {
		if block.Type == "" || block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &GenerateResponse{
		Content:      content.String(),
		InputTokens:  anthResp.Usage.InputTokens,
		OutputTokens: anthResp.Usage.OutputTokens,
		Model:        anthResp.Model,
		Latency:      time.Since(startTime),
		FinishReason: anthResp.StopReason,
		Provider:     p.config.Name,
	}, nil
}

// buildRequest maps the conversation onto the Messages API, which carries
// system instructions outside the message list.
func (p *AnthropicProvider) buildRequest(req *GenerateRequest) *anthropicRequest {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	var system []string
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		messages = append(messages, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}

	return &anthropicRequest{
		Model:       model,
		Messages:    messages,
		System:      strings.Join(system, "\n\n"),
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}
}

// GetInfo implements ProviderClient.GetInfo
func (p *AnthropicProvider) GetInfo() *ProviderInfo {
	return &ProviderInfo{
		Name:        p.config.Name,
		Version:     p.config.Version,
		Type:        ProviderTypeAPI,
		Description: fmt.Sprintf("Anthropic Messages API provider: %s (%s)", p.baseURL, p.model),
	}
}

// IsAvailable implements ProviderClient.IsAvailable
func (p *AnthropicProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// Close implements ProviderClient.Close
func (p *AnthropicProvider) Close() error {
	return nil
}
