router = object()
=== END FILE ===

=== DECISIONS ===
WHAT: Use FastAPI
WHY: async support
WHAT: Keep a single module
WHY: small scope
`

func TestParseExtractsArtifactsInOrder(t *testing.T) {
	result, err := Parse(wellFormed)
	require.NoError(t, err)

	require.Len(t, result.Artifacts, 2)
	assert.Equal(t, []string{"app/main.py", "app/api.py"}, result.Paths())
	assert.Equal(t, "from app.api import router\n\nprint(\"hi\")\n", result.Artifacts[0].Content)
	assert.Equal(t, "router = object()\n", result.Artifacts[1].Content)
	assert.Empty(t, result.Skipped)

	assert.Equal(t, []Decision{
		{What: "Use FastAPI", Why: "async support"},
		{What: "Keep a single module", Why: "small scope"},
	}, result.Decisions)
}

func TestParseIsIdempotent(t *testing.T) {
	first, err := Parse(wellFormed)
	require.NoError(t, err)
	second, err := Parse(wellFormed)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParseNoArtifacts(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "prose only", text: "I could not produce the files, sorry."},
		{
			name: "decisions only",
			text: "=== DECISIONS ===\nWHAT: use go\nWHY: fast\n",
		},
		{
			name: "unterminated segment",
			text: "=== FILE: main.go ===\npackage main\n",
		},
		{
			name: "unsafe paths only",
			text: "=== FILE: ../etc/passwd ===\nx\n=== END FILE ===\n=== FILE: /abs.txt ===\ny\n=== END FILE ===\n",
		},
		{
			name: "file header inside decisions section",
			text: "=== DECISIONS ===\n=== FILE: a.txt ===\nx\n=== END FILE ===\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Parse(tt.text)
			assert.Nil(t, result)

			var noArtifacts *NoArtifactsError
			require.True(t, errors.As(err, &noArtifacts), "expected NoArtifactsError, got %v", err)
		})
	}
}

func TestParseSkippedSegments(t *testing.T) {
	text := "=== FILE: ../escape.txt ===\nbad\n=== END FILE ===\n" +
		"=== FILE: a.txt ===\nfirst\n=== END FILE ===\n" +
		"=== FILE: ./a.txt ===\nsecond\n=== END FILE ===\n" +
		"=== FILE: b.txt ===\nnever closed\n" +
		"=== DECISIONS ===\nWHAT: keep a\nWHY: needed\n"

	result, err := Parse(text)
	require.NoError(t, err)

	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, "a.txt", result.Artifacts[0].Path)
	assert.Equal(t, "second\n", result.Artifacts[0].Content)

	reasons := make([]SkipReason, len(result.Skipped))
	for i, s := range result.Skipped {
		reasons[i] = s.Reason
	}
	assert.Equal(t, []SkipReason{SkipUnsafePath, SkipDuplicate, SkipUnterminated}, reasons)
	assert.Equal(t, []Decision{{What: "keep a", Why: "needed"}}, result.Decisions)
}

func TestParseDecisionPairs(t *testing.T) {
	const files = "=== FILE: x.txt ===\nx\n=== END FILE ===\n"

	tests := []struct {
		name     string
		section  string
		expected []Decision
	}{
		{
			name:     "what without why before next what is dropped",
			section:  "WHAT: orphan\nWHAT: kept\nWHY: reason\n",
			expected: []Decision{{What: "kept", Why: "reason"}},
		},
		{
			name:     "trailing what is dropped",
			section:  "WHAT: a\nWHY: b\nWHAT: dangling\n",
			expected: []Decision{{What: "a", Why: "b"}},
		},
		{
			name:     "why without what is ignored",
			section:  "WHY: stray\nWHAT: a\nWHY: b\n",
			expected: []Decision{{What: "a", Why: "b"}},
		},
		{
			name:     "empty why drops the pair",
			section:  "WHAT: a\nWHY:\nWHY: late\n",
			expected: nil,
		},
		{
			name:     "unrelated lines are ignored",
			section:  "Notes:\n- WHAT: not a marker\nWHAT: a\nsome text\nWHY: b\n",
			expected: []Decision{{What: "a", Why: "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Parse(files + DecisionsMarker + "\n" + tt.section)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.Decisions)
		})
	}
}

func TestParseKeepsMarkersInsideContent(t *testing.T) {
	text := "=== FILE: README.md ===\nUse === DECISIONS === carefully\nWHAT: docs\n=== END FILE ===\n"

	result, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, "Use === DECISIONS === carefully\nWHAT: docs\n", result.Artifacts[0].Content)
	assert.Empty(t, result.Decisions)
}

func TestParseHandlesCRLFAndEmptyContent(t *testing.T) {
	text := "=== FILE: empty.txt ===\r\n=== END FILE ===\r\n=== FILE: win.txt ===\r\nline\r\n=== END FILE ===\r\n"

	result, err := Parse(text)
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 2)
	assert.Equal(t, "", result.Artifacts[0].Content)
	assert.Equal(t, "line\r\n", result.Artifacts[1].Content)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "./src/app.go", want: "src/app.go"},
		{in: "././a.txt", want: "a.txt"},
		{in: "src//pkg/../app.go", want: "src/app.go"},
		{in: "src\\win.go", want: "src/win.go"},
		{in: "", wantErr: true},
		{in: ".", wantErr: true},
		{in: "/etc/hosts", wantErr: true},
		{in: "../up.txt", wantErr: true},
		{in: "a/../../up.txt", wantErr: true},
		{in: "C:/temp/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePath(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsafePath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
