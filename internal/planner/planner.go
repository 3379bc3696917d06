// Package planner turns a natural-language project request into a validated
// manifest using the same generation service as the worker roles.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/foundry/internal/log"
	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/provider"
)

// Role is the role id under which planning requests are issued. Fixture
// providers answer it from planner.txt.
const Role = "planner"

// DefaultTemperature keeps manifests stable between requests.
const DefaultTemperature = 0.1

// ErrEmptyPrompt is returned when there is nothing to plan.
var ErrEmptyPrompt = errors.New("planning prompt is empty")

// PlanError is a response that could not be turned into a manifest. Raw
// holds the response for inspection.
type PlanError struct {
	Raw string
	Err error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("planner response is not a usable manifest: %v", e.Err)
}

func (e *PlanError) Unwrap() error {
	return e.Err
}

// Planner requests manifests from a generator.
type Planner struct {
	generator   provider.Generator
	temperature float64
	logger      *log.Logger
}

// New creates a Planner. A negative temperature selects DefaultTemperature.
func New(gen provider.Generator, temperature float64, logger *log.Logger) *Planner {
	if temperature < 0 {
		temperature = DefaultTemperature
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Planner{generator: gen, temperature: temperature, logger: logger}
}

// Plan asks for a manifest describing prompt. The result is normalized and
// validated; a manifest with issues is returned as a *PlanError wrapping the
// *manifest.ValidationError.
func (p *Planner) Plan(ctx context.Context, prompt string) (*manifest.Manifest, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	messages := []provider.Message{
		{Role: provider.RoleSystem, Content: buildSystemPrompt()},
		{Role: provider.RoleUser, Content: buildUserPrompt(prompt)},
	}

	p.logger.Debug("requesting manifest", "prompt_bytes", len(prompt))
	text, err := p.generator.Generate(provider.WithRole(ctx, Role), messages, p.temperature)
	if err != nil {
		return nil, fmt.Errorf("failed to generate manifest: %w", err)
	}

	m, err := manifest.Parse([]byte(extractManifest(text)))
	if err != nil {
		return nil, &PlanError{Raw: text, Err: err}
	}

	p.logger.Info("manifest planned", "project", m.ProjectName, "roles", len(m.Roles))
	return m, nil
}
