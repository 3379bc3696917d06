package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/protocol"
	"github.com/felixgeelhaar/foundry/internal/provider"
	"github.com/felixgeelhaar/foundry/internal/workspace"
)

type recordingGenerator struct {
	responses map[string]string
	err       error
	calls     []string
	messages  [][]provider.Message
	temps     []float64
}

func (g *recordingGenerator) Generate(ctx context.Context, msgs []provider.Message, temperature float64) (string, error) {
	role := provider.RoleFromContext(ctx)
	g.calls = append(g.calls, role)
	g.messages = append(g.messages, msgs)
	g.temps = append(g.temps, temperature)
	if g.err != nil {
		return "", g.err
	}
	return g.responses[role], nil
}

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		ProjectName: "todo",
		TechStack:   map[string]string{"language": "python", "framework": "fastapi"},
		Roles: []manifest.Role{
			{ID: "architect", Name: "Architect", Outputs: []string{"docs/design.md"}},
			{ID: "backend", Name: "Backend", Description: "Implement the REST API.", Outputs: []string{"api/main.py", "api/models.py"}, DependsOn: []string{"architect"}},
		},
		SharedFiles: []string{"README.md"},
		Constraints: []string{"no external database"},
	}
}

const backendResponse = `Here you go.