package main

func main() {}
=== END FILE ===

=== DECISIONS ===
WHAT: Use net/http
WHY: The API is small
`,
	"frontend": `=== FILE: web/index.html ===
<html></html>
=== END FILE ===
`,
}

// scriptedGenerator answers per role and records every call.
type scriptedGenerator struct {
	mu        sync.Mutex
	responses map[string][]string
	calls     []string
	strict    []bool
}

func newScriptedGenerator() *scriptedGenerator {
	g := &scriptedGenerator{responses: map[string][]string{}}
	for role, text := range roleResponses {
		g.responses[role] = []string{text}
	}
	return g
}

// script queues responses for role; the last one repeats.
func (g *scriptedGenerator) script(role string, texts ...string) {
	g.responses[role] = texts
}

func (g *scriptedGenerator) Generate(ctx context.Context, messages []provider.Message, _ float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	role := provider.RoleFromContext(ctx)
	g.calls = append(g.calls, role)
	g.strict = append(g.strict, strings.Contains(messages[0].Content, worker.StrictReminder))

	queue := g.responses[role]
	if len(queue) == 0 {
		return "", errors.New("unexpected role " + role)
	}
	text := queue[0]
	if len(queue) > 1 {
		g.responses[role] = queue[1:]
	}
	return text, nil
}

func newTestPipeline(t *testing.T, gen provider.Generator, attempts int) (*pipeline, *manifest.Manifest) {
	t.Helper()
	m, err := manifest.Parse([]byte(todoManifest))
	require.NoError(t, err)
	return &pipeline{
		Workspace: workspace.New(t.TempDir()),
		Config:    config.Default(),
		Generator: gen,
		Attempts:  attempts,
	}, m
}

func TestPipelineAssemblesProject(t *testing.T) {
	gen := newScriptedGenerator()
	p, m := newTestPipeline(t, gen, 1)

	res, err := p.run(context.Background(), m)
	require.NoError(t, err)

	assert.True(t, res.Report.Succeeded())
	assert.Equal(t, []string{"backend", "frontend"}, gen.calls)
	assert.ElementsMatch(t, []string{"server/main.go", "web/index.html"}, res.Assembly.Copied)

	data, err := os.ReadFile(filepath.Join(p.Workspace.Root(), "server", "main.go"))
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc main() {}\n", string(data))

	summary, err := os.ReadFile(res.SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(summary), "# Run Summary: todo")
	assert.Equal(t, 2, res.Counts[ledger.Decisions], "execution order plus the backend decision")

	state, err := checkpoint.NewStore(p.Workspace.StateDir()).Load()
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusSucceeded, state.Status)
	assert.Equal(t, []string{"backend", "frontend"}, state.Completed)

	assert.FileExists(t, res.TracePath)
}

func TestPipelineStopsAtFirstFailure(t *testing.T) {
	gen := newScriptedGenerator()
	gen.script("backend", "I could not produce any files.")
	p, m := newTestPipeline(t, gen, 1)

	res, err := p.run(context.Background(), m)
	require.Error(t, err)

	var noArtifacts *protocol.NoArtifactsError
	assert.ErrorAs(t, err, &noArtifacts)
	assert.Equal(t, []string{"backend"}, gen.calls)
	assert.Nil(t, res.Assembly, "a failed run is not assembled")
	assert.NoFileExists(t, filepath.Join(p.Workspace.Root(), "server", "main.go"))

	frontend, ok := res.Report.Outcome("frontend")
	require.True(t, ok)
	assert.Equal(t, scheduler.StatePending, frontend.State)
	assert.FileExists(t, res.SummaryPath, "the summary is written for failed runs too")
	assert.Equal(t, 1, res.Counts[ledger.Errors])

	coded := classifyRunError(err, "backend")
	var fe *ferrors.FoundryError
	require.ErrorAs(t, coded, &fe)
	assert.Equal(t, ferrors.ErrCodeNoArtifacts, fe.Code)
	assert.Equal(t, exitcode.GenerationFailed, exitcode.DetermineExitCode(coded))
}

func TestPipelineRetriesWithStrictInstructions(t *testing.T) {
	gen := newScriptedGenerator()
	gen.script("frontend", "Sorry, here is prose instead of files.", roleResponses["frontend"])
	p, m := newTestPipeline(t, gen, 2)

	res, err := p.run(context.Background(), m)
	require.NoError(t, err)

	assert.Equal(t, []string{"backend", "frontend", "frontend"}, gen.calls, "completed roles are not invoked again")
	assert.Equal(t, []bool{false, false, true}, gen.strict)
	assert.Equal(t, 2, res.Report.Attempt)

	backend, _ := res.Report.Outcome("backend")
	assert.True(t, backend.Resumed)

	led, err := ledger.Open(p.Workspace.LedgerDir())
	require.NoError(t, err)
	decisions, err := led.Entries(ledger.Decisions)
	require.NoError(t, err)
	var retried bool
	for _, d := range decisions {
		if strings.Contains(d.Content, "Retry run as attempt 2") {
			retried = true
		}
	}
	assert.True(t, retried, "the retry is recorded as an orchestrator decision")
}

func TestPipelineDoesNotRetryCycles(t *testing.T) {
	gen := newScriptedGenerator()
	p, _ := newTestPipeline(t, gen, 2)
	m := &manifest.Manifest{
		ProjectName: "loop",
		Roles: []manifest.Role{
			{ID: "a", Outputs: []string{"a.txt"}, DependsOn: []string{"b"}},
			{ID: "b", Outputs: []string{"b.txt"}, DependsOn: []string{"a"}},
		},
	}

	res, err := p.run(context.Background(), m)

	var cycle *scheduler.CyclicManifestError
	require.ErrorAs(t, err, &cycle)
	assert.Empty(t, gen.calls)
	assert.Equal(t, 1, res.Report.Attempt)
	assert.FileExists(t, res.SummaryPath)
	assert.Equal(t, exitcode.ManifestInvalid, exitcode.DetermineExitCode(classifyRunError(err, "")))
}

func TestLoadState(t *testing.T) {
	m, err := manifest.Parse([]byte(todoManifest))
	require.NoError(t, err)
	store := checkpoint.NewStore(t.TempDir())
	logger := log.Discard()

	fresh, err := loadState(store, m, true, logger)
	require.NoError(t, err, "nothing to resume starts fresh")
	assert.Equal(t, 1, fresh.Attempt)

	recorded := checkpoint.NewRunState("todo")
	recorded.Record(checkpoint.Task{RoleID: "backend", Status: checkpoint.TaskDone})
	recorded.Finish(checkpoint.StatusFailed)
	require.NoError(t, store.Save(recorded))

	resumed, err := loadState(store, m, true, logger)
	require.NoError(t, err)
	assert.Equal(t, recorded.RunID, resumed.RunID)
	assert.Equal(t, 2, resumed.Attempt)
	assert.Equal(t, checkpoint.StatusRunning, resumed.Status)
	assert.Equal(t, 1, pendingRoles([]string{"backend", "frontend"}, resumed))

	restart, err := loadState(store, m, false, logger)
	require.NoError(t, err)
	assert.NotEqual(t, recorded.RunID, restart.RunID)

	other := *m
	other.ProjectName = "other"
	_, err = loadState(store, &other, true, logger)
	var fe *ferrors.FoundryError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ferrors.ErrCodeRunNotFound, fe.Code)
}

func TestPipelineRunsHooks(t *testing.T) {
	var (
		mu     sync.Mutex
		events []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e hooks.Event
		if err := json.NewDecoder(r.Body).Decode(&e); err == nil {
			mu.Lock()
			events = append(events, string(e.Type)+":"+e.RoleID)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, m := newTestPipeline(t, newScriptedGenerator(), 1)
	p.Config.Hooks = []hooks.HookConfig{{
		Name:    "notify",
		Type:    "webhook",
		Events:  []hooks.EventType{hooks.EventRoleDone, hooks.EventRunComplete},
		Enabled: true,
		Config:  map[string]any{"url": srv.URL},
	}}

	_, err := p.run(context.Background(), m)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"on_role_done:backend", "on_role_done:frontend", "on_run_complete:"}, events)
}

func TestPipelineRejectsBrokenHooks(t *testing.T) {
	gen := newScriptedGenerator()
	p, m := newTestPipeline(t, gen, 1)
	p.Config.Hooks = []hooks.HookConfig{{Name: "x", Type: "script", Events: []hooks.EventType{hooks.EventRunStart}, Enabled: true}}

	_, err := p.run(context.Background(), m)
	var fe *ferrors.FoundryError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ferrors.ErrCodeHookInvalid, fe.Code)
	assert.Empty(t, gen.calls, "no role runs with a broken hook")
}
