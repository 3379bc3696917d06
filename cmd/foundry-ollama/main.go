// Command foundry-ollama is an executable provider for a local Ollama
// server. It reads a provider.GenerateRequest as JSON on stdin and writes a
// provider.GenerateResponse to stdout.
//
// providers.yaml:
//
//	- name: ollama
//	  type: cli
//	  enabled: true
//	  config:
//	    path: foundry-ollama
//
// OLLAMA_HOST overrides the server address and OLLAMA_MODEL the default model.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/felixgeelhaar/foundry/internal/provider"
)

const (
	defaultHost  = "http://localhost:11434"
	defaultModel = "llama3.2"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason,omitempty"`
	PromptEvalCount int         `json:"prompt_eval_count,omitempty"`
	EvalCount       int         `json:"eval_count,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// client talks to one Ollama server.
type client struct {
	host  string
	model string
	http  *http.Client
}

func newClient() *client {
	host := strings.TrimRight(os.Getenv("OLLAMA_HOST"), "/")
	if host == "" {
		host = defaultHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	model := os.Getenv("OLLAMA_MODEL")
	if model == "" {
		model = defaultModel
	}
	return &client{host: host, model: model, http: &http.Client{Timeout: 10 * time.Minute}}
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s generate|health\n", os.Args[0])
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := newClient()
	var err error
	switch os.Args[len(os.Args)-1] {
	case "generate":
		err = c.handleGenerate(ctx, os.Stdin, os.Stdout)
	case "health":
		err = c.health(ctx)
		if err == nil {
			fmt.Println("OK")
		}
	default:
		err = fmt.Errorf("unknown command: %s", os.Args[len(os.Args)-1])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *client) handleGenerate(ctx context.Context, in io.Reader, out io.Writer) error {
	var req provider.GenerateRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	resp, err := c.generate(ctx, &req)
	if err != nil {
		return err
	}
	return json.NewEncoder(out).Encode(resp)
}

func (c *client) generate(ctx context.Context, req *provider.GenerateRequest) (*provider.GenerateResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.model
	}
	body := chatRequest{
		Model:    model,
		Messages: make([]chatMessage, len(req.Messages)),
		Options:  chatOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	}
	for i, m := range req.Messages {
		body.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	var chat chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response (status %d): %w", httpResp.StatusCode, err)
	}
	if httpResp.StatusCode != http.StatusOK || chat.Error != "" {
		return nil, fmt.Errorf("ollama returned status %d: %s", httpResp.StatusCode, chat.Error)
	}

	finish := chat.DoneReason
	if finish == "" {
		finish = "stop"
		if !chat.Done {
			finish = "length"
		}
	}
	return &provider.GenerateResponse{
		Content:      chat.Message.Content,
		InputTokens:  chat.PromptEvalCount,
		OutputTokens: chat.EvalCount,
		Model:        chat.Model,
		Latency:      time.Since(start),
		FinishReason: finish,
		Provider:     "ollama",
	}, nil
}

func (c *client) health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable at %s: %w", c.host, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}
