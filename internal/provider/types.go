package provider

import "time"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged entry in a conversation.
type Message struct {
	// Role is who sent the message: "system", "user" or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// GenerateRequest contains all parameters for generating a response
type GenerateRequest struct {
	// Messages is the ordered conversation sent to the model
	Messages []Message `json:"messages"`

	// MaxTokens limits the response length; 0 uses the provider default
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 = deterministic)
	Temperature float64 `json:"temperature"`

	// Model overrides the provider's configured model
	Model string `json:"model,omitempty"`

	// Metadata for tracking and debugging, e.g. the role being generated
	Metadata map[string]string `json:"metadata,omitempty"`
}

// GenerateResponse contains the model's response
type GenerateResponse struct {
	Content      string        `json:"content"`
	InputTokens  int           `json:"input_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
	Model        string        `json:"model"`
	Latency      time.Duration `json:"latency"`
	FinishReason string        `json:"finish_reason"`
	Error        string        `json:"error,omitempty"`
	Provider     string        `json:"provider"`
}

// ProviderConfig represents one entry of providers.yaml
type ProviderConfig struct {
	// Name is the provider identifier
	Name string `yaml:"name" json:"name"`

	// Type is the provider implementation type
	Type ProviderType `yaml:"type" json:"type"`

	// Enabled controls if this provider is active
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Config contains provider-specific settings such as api_key, base_url,
	// model, max_tokens, timeout_seconds, path, args or dir
	Config map[string]interface{} `yaml:"config" json:"config"`

	// Version is informational
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

func (c *ProviderConfig) stringValue(key, fallback string) string {
	if v, ok := c.Config[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (c *ProviderConfig) intValue(key string, fallback int) int {
	switch v := c.Config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

func (c *ProviderConfig) timeout(fallback time.Duration) time.Duration {
	if secs := c.intValue("timeout_seconds", 0); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
