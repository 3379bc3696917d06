package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/foundry/internal/checkpoint"
	"github.com/felixgeelhaar/foundry/internal/config"
	ferrors "github.com/felixgeelhaar/foundry/internal/errors"
	"github.com/felixgeelhaar/foundry/internal/exitcode"
	"github.com/felixgeelhaar/foundry/internal/hooks"
	"github.com/felixgeelhaar/foundry/internal/ledger"
	"github.com/felixgeelhaar/foundry/internal/log"
	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/protocol"
	"github.com/felixgeelhaar/foundry/internal/provider"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
	"github.com/felixgeelhaar/foundry/internal/worker"
	"github.com/felixgeelhaar/foundry/internal/workspace"
)

const todoManifest = `project_name: todo
tech_stack:
  backend: go
  frontend: htmx
roles:
  - id: backend
    name: Backend
    outputs: [server/main.go]
  - id: frontend
    name: Frontend
    outputs: [web/index.html]
    depends_on: [backend]
`

var roleResponses = map[string]string{
	"backend": `Here is the server.