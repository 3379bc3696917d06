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

// OpenAIProvider implements ProviderClient for OpenAI-compatible chat
// completion APIs
type OpenAIProvider struct {
	apiKey    string
	baseURL   string
	client    *http.Client
	config    *ProviderConfig
	model     string
	maxTokens int
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *openAIError   `json:"error,omitempty"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewOpenAIProvider creates a new OpenAI provider instance
func NewOpenAIProvider(config *ProviderConfig) (*OpenAIProvider, error) {
	apiKey := config.stringValue("api_key", "")
	if apiKey == "" {
		return nil, fmt.Errorf("api_key not found in provider config")
	}

	return &OpenAIProvider{
		apiKey:    apiKey,
		baseURL:   strings.TrimSuffix(config.stringValue("base_url", "https://api.openai.com/v1"), "/"),
		client:    &http.Client{Timeout: config.timeout(120 * time.Second)},
		config:    config,
		model:     config.stringValue("model", "gpt-4o"),
		maxTokens: config.intValue("max_tokens", 0),
	}, nil
}

// Generate implements ProviderClient.Generate
func (p *OpenAIProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	startTime := time.Now()

	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	messages := make([]openAIMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openAIMessage{Role: msg.Role, Content: msg.Content}
	}

	reqBody, err := json.Marshal(&openAIRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

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
		var errResp openAIResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != nil {
			msg = errResp.Error.Message
		}
		return nil, &HTTPError{Provider: p.config.Name, StatusCode: httpResp.StatusCode, Message: msg}
	}

	var oaiResp openAIResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(oaiResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := oaiResp.Choices[0]
	return &GenerateResponse{
		Content:      choice.Message.Content,
		InputTokens:  oaiResp.Usage.PromptTokens,
		OutputTokens: oaiResp.Usage.CompletionTokens,
		Model:        oaiResp.Model,
		Latency:      time.Since(startTime),
		FinishReason: choice.FinishReason,
		Provider:     p.config.Name,
	}, nil
}

// GetInfo implements ProviderClient.GetInfo
func (p *OpenAIProvider) GetInfo() *ProviderInfo {
	return &ProviderInfo{
		Name:        p.config.Name,
		Version:     p.config.Version,
		Type:        ProviderTypeAPI,
		Description: fmt.Sprintf("OpenAI chat completions provider: %s (%s)", p.baseURL, p.model),
	}
}

// IsAvailable implements ProviderClient.IsAvailable
func (p *OpenAIProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// Close implements ProviderClient.Close
func (p *OpenAIProvider) Close() error {
	return nil
}
