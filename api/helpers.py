def helper(): pass
=== END FILE ===

=== DECISIONS ===
WHAT: Use in-memory storage
WHY: No database allowed
`

func TestInvokeWritesArtifactsAndReports(t *testing.T) {
	ws := workspace.New(t.TempDir())
	_, err := ws.WriteRoleFile("architect", "docs/design.md", "# Design\nUse FastAPI.\n")
	require.NoError(t, err)

	gen := &recordingGenerator{responses: map[string]string{"backend": backendResponse}}
	inv := New(gen, ws, Options{Temperature: 0.4, ContextBudget: 1000}, nil)

	m := testManifest()
	result, err := inv.Invoke(context.Background(), m.Roles[1], m)
	require.NoError(t, err)

	require.Equal(t, []string{"backend"}, gen.calls, "exactly one generation call")
	assert.InDelta(t, 0.4, gen.temps[0], 1e-9)

	assert.Equal(t, []string{"api/main.py", "api/helpers.py"}, protocolPaths(result.Artifacts))
	assert.Equal(t, []string{"api/helpers.py"}, result.Undeclared)
	assert.Equal(t, []string{"api/models.py"}, result.Missing)
	require.Len(t, result.Decisions, 1)
	assert.Equal(t, "Use in-memory storage", result.Decisions[0].What)
	assert.Equal(t, workspace.Checksum([]byte("from api.models import Todo\n")), result.Checksums["api/main.py"])

	content, err := ws.ReadRoleFile("backend", "api/main.py")
	require.NoError(t, err)
	assert.Equal(t, "from api.models import Todo\n", content)

	raw, err := os.ReadFile(result.RawPath)
	require.NoError(t, err)
	assert.Equal(t, backendResponse, string(raw))

	user := gen.messages[0][1].Content
	assert.Contains(t, user, "# Design\nUse FastAPI.")
	assert.Contains(t, user, "Implement the REST API.")
	assert.Less(t, strings.Index(user, "- framework: fastapi"), strings.Index(user, "- language: python"), "tech stack is sorted by key")
}

func TestInvokeGenerationError(t *testing.T) {
	ws := workspace.New(t.TempDir())
	boom := errors.New("503 service unavailable")
	inv := New(&recordingGenerator{err: boom}, ws, Options{}, nil)

	m := testManifest()
	_, err := inv.Invoke(context.Background(), m.Roles[0], m)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr), "got %v", err)
	assert.Equal(t, "architect", genErr.RoleID)
	assert.ErrorIs(t, err, boom)

	_, statErr := os.Stat(filepath.Join(ws.RoleDir("architect"), workspace.RawResponseFile))
	assert.True(t, os.IsNotExist(statErr), "a failed generation writes nothing")
}

func TestInvokeNoArtifactsKeepsRawResponse(t *testing.T) {
	ws := workspace.New(t.TempDir())
	text := "I think the design should be simple.\n=== DECISIONS ===\nWHAT: x\nWHY: y\n"
	inv := New(&recordingGenerator{responses: map[string]string{"architect": text}}, ws, Options{}, nil)

	m := testManifest()
	_, err := inv.Invoke(context.Background(), m.Roles[0], m)

	var noArtifacts *protocol.NoArtifactsError
	require.True(t, errors.As(err, &noArtifacts), "got %v", err)
	assert.Contains(t, err.Error(), "role architect")
	assert.Equal(t, []protocol.Decision{{What: "x", Why: "y"}}, noArtifacts.Decisions)

	raw, readErr := os.ReadFile(filepath.Join(ws.RoleDir("architect"), workspace.RawResponseFile))
	require.NoError(t, readErr)
	assert.Equal(t, text, string(raw))

	entries, _ := os.ReadDir(ws.RoleDir("architect"))
	assert.Len(t, entries, 1, "only the raw response is written")
}

func TestInvokeNeverOverwritesRawResponse(t *testing.T) {
	ws := workspace.New(t.TempDir())
	m := testManifest()

	text := "=== FILE: .raw_response.txt ===\nartifact body\n=== END FILE ===\n"
	inv := New(&recordingGenerator{responses: map[string]string{"architect": text}}, ws, Options{}, nil)
	_, err := inv.Invoke(context.Background(), m.Roles[0], m)

	var noArtifacts *protocol.NoArtifactsError
	require.True(t, errors.As(err, &noArtifacts), "got %v", err)
	require.Len(t, noArtifacts.Skipped, 1)
	assert.Equal(t, protocol.SkipReserved, noArtifacts.Skipped[0].Reason)

	raw, readErr := os.ReadFile(filepath.Join(ws.RoleDir("architect"), workspace.RawResponseFile))
	require.NoError(t, readErr)
	assert.Equal(t, text, string(raw))

	text += "=== FILE: docs/design.md ===\n# Design\n=== END FILE ===\n"
	inv = New(&recordingGenerator{responses: map[string]string{"architect": text}}, ws, Options{}, nil)
	result, err := inv.Invoke(context.Background(), m.Roles[0], m)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/design.md"}, protocolPaths(result.Artifacts))

	raw, readErr = os.ReadFile(result.RawPath)
	require.NoError(t, readErr)
	assert.Equal(t, text, string(raw))
}

func TestStrictModeAddsReminder(t *testing.T) {
	ws := workspace.New(t.TempDir())
	gen := &recordingGenerator{responses: map[string]string{"architect": "=== FILE: docs/design.md ===\nx\n=== END FILE ===\n"}}
	inv := New(gen, ws, Options{}, nil)
	m := testManifest()

	_, err := inv.Invoke(context.Background(), m.Roles[0], m)
	require.NoError(t, err)
	_, err = inv.Strict(true).Invoke(context.Background(), m.Roles[0], m)
	require.NoError(t, err)

	require.Len(t, gen.messages, 2)
	assert.NotContains(t, gen.messages[0][0].Content, StrictReminder)
	assert.Contains(t, gen.messages[1][0].Content, StrictReminder)
	assert.Equal(t, provider.RoleSystem, gen.messages[1][0].Role)
}

func TestDependencyContextTruncates(t *testing.T) {
	ws := workspace.New(t.TempDir())
	_, err := ws.WriteRoleFile("architect", "docs/design.md", strings.Repeat("é", 10))
	require.NoError(t, err)

	inv := New(&recordingGenerator{}, ws, Options{ContextBudget: 5}, nil)
	m := testManifest()

	files, err := inv.dependencyContext(m.Roles[1], m)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, files[0].Truncated)
	assert.Equal(t, "éé", files[0].Content, "truncation never splits a rune")

	files, err = inv.dependencyContext(m.Roles[0], m)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestBuildMessagesListsOwnership(t *testing.T) {
	m := testManifest()
	msgs := BuildMessages(m.Roles[1], m, nil, false)

	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, protocol.FileEndMarker)
	assert.Contains(t, msgs[0].Content, protocol.DecisionsMarker)
	user := msgs[1].Content
	assert.Contains(t, user, "Project: todo")
	assert.Contains(t, user, "- api/main.py\n- api/models.py")
	assert.Contains(t, user, "- no external database")
	assert.Contains(t, user, "- README.md")
	assert.NotContains(t, user, "already produced")
}

func protocolPaths(artifacts []protocol.Artifact) []string {
	out := make([]string, len(artifacts))
	for i, a := range artifacts {
		out[i] = a.Path
	}
	return out
}
