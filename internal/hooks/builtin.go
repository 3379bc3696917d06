package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ScriptHook runs a script with the event in its environment.
type ScriptHook struct {
	name   string
	events []EventType
	script string
	args   []string
	shell  string
	dir    string
}

// NewScriptHook builds a script hook. Config keys: script (required), args,
// shell (default /bin/sh) and dir.
func NewScriptHook(config *HookConfig) (Hook, error) {
	script := config.stringValue("script")
	if script == "" {
		return nil, fmt.Errorf("script path required")
	}
	h := &ScriptHook{
		name:   config.Name,
		events: config.Events,
		script: script,
		shell:  "/bin/sh",
		dir:    config.stringValue("dir"),
	}
	if args, ok := config.Config["args"].([]any); ok {
		for _, a := range args {
			if s, ok := a.(string); ok {
				h.args = append(h.args, s)
			}
		}
	}
	if shell := config.stringValue("shell"); shell != "" {
		h.shell = shell
	}
	return h, nil
}

func (h *ScriptHook) Name() string        { return h.name }
func (h *ScriptHook) Events() []EventType { return h.events }

func (h *ScriptHook) Execute(ctx context.Context, event *Event) error {
	cmd := exec.CommandContext(ctx, h.shell, append([]string{h.script}, h.args...)...)
	cmd.Dir = h.dir
	cmd.Env = append(os.Environ(), eventEnv(event)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("script failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func eventEnv(e *Event) []string {
	return []string{
		"FOUNDRY_EVENT=" + string(e.Type),
		"FOUNDRY_RUN_ID=" + e.RunID,
		"FOUNDRY_ATTEMPT=" + strconv.Itoa(e.Attempt),
		"FOUNDRY_ROLE_ID=" + e.RoleID,
		"FOUNDRY_ARTIFACTS=" + strconv.Itoa(e.Artifacts),
		"FOUNDRY_ERROR=" + e.Error,
	}
}

// WebhookHook posts the event as JSON.
type WebhookHook struct {
	name    string
	events  []EventType
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookHook builds a webhook hook. Config keys: url (required) and
// headers.
func NewWebhookHook(config *HookConfig) (Hook, error) {
	url := config.stringValue("url")
	if url == "" {
		return nil, fmt.Errorf("webhook URL required")
	}
	h := &WebhookHook{
		name:    config.Name,
		events:  config.Events,
		url:     url,
		headers: make(map[string]string),
		client:  &http.Client{Timeout: config.timeout()},
	}
	if headers, ok := config.Config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				h.headers[k] = s
			}
		}
	}
	return h, nil
}

func (h *WebhookHook) Name() string        { return h.name }
func (h *WebhookHook) Events() []EventType { return h.events }

func (h *WebhookHook) Execute(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// RegisterBuiltins registers the script and webhook factories.
func RegisterBuiltins(r *Registry) {
	r.RegisterFactory("script", NewScriptHook)
	r.RegisterFactory("webhook", NewWebhookHook)
}
