package worker

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/felixgeelhaar/foundry/internal/manifest"
	"github.com/felixgeelhaar/foundry/internal/protocol"
	"github.com/felixgeelhaar/foundry/internal/provider"
)

// ProtocolPreamble is the fixed system instruction describing the output
// format every role must follow.
var ProtocolPreamble = strings.Join([]string{
	"You are one member of a team generating a software project. You own a fixed set of files and must produce exactly those files.",
	"",
	"Emit every file in this exact format, each delimiter on its own line:",
	"",
	protocol.FileHeaderPrefix + " relative/path.ext " + protocol.FileHeaderSuffix,
	"<complete file content>",
	protocol.FileEndMarker,
	"",
	"Paths are relative to the project root. Never use absolute paths or '..'.",
	"Write complete files; never elide content with placeholders.",
	"",
	"After the last file, record the architectural decisions you made:",
	"",
	protocol.DecisionsMarker,
	protocol.WhatMarker + " <the decision>",
	protocol.WhyMarker + " <the reason>",
	"",
	"Every " + protocol.WhatMarker + " line must be followed by a " + protocol.WhyMarker + " line.",
}, "\n")

// StrictReminder is appended on a retried run after a role failed to follow
// the protocol.
var StrictReminder = strings.Join([]string{
	"IMPORTANT: a previous attempt did not follow the output format.",
	"Respond with file blocks only, starting immediately with " + protocol.FileHeaderPrefix + ".",
	"Do not wrap files in markdown code fences. Close every file with " + protocol.FileEndMarker + ".",
}, "\n")

// DependencyFile is the current content of a file produced by an upstream
// role, included for context.
type DependencyFile struct {
	RoleID    string
	Path      string
	Content   string
	Truncated bool
}

// BuildMessages assembles the system and user messages for one role.
func BuildMessages(role manifest.Role, m *manifest.Manifest, deps []DependencyFile, strict bool) []provider.Message {
	system := ProtocolPreamble
	if strict {
		system += "\n\n" + StrictReminder
	}
	return []provider.Message{
		{Role: provider.RoleSystem, Content: system},
		{Role: provider.RoleUser, Content: buildTask(role, m, deps)},
	}
}

func buildTask(role manifest.Role, m *manifest.Manifest, deps []DependencyFile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Project: %s\n", m.ProjectName)

	if len(m.TechStack) > 0 {
		b.WriteString("\nTech stack:\n")
		keys := make([]string, 0, len(m.TechStack))
		for k := range m.TechStack {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, m.TechStack[k])
		}
	}

	writeList(&b, "Constraints", m.Constraints)
	writeList(&b, "Shared files (owned by nobody; do not emit them)", m.SharedFiles)

	fmt.Fprintf(&b, "\nYour role: %s (%s)\n", role.DisplayName(), role.ID)
	if role.Description != "" {
		fmt.Fprintf(&b, "%s\n", strings.TrimSpace(role.Description))
	}
	writeList(&b, "Files you must produce", role.Outputs)

	if len(deps) > 0 {
		b.WriteString("\nFiles already produced by the roles you depend on:\n")
		for _, dep := range deps {
			fmt.Fprintf(&b, "\n--- %s (from %s) ---\n", dep.Path, dep.RoleID)
			b.WriteString(dep.Content)
			if !strings.HasSuffix(dep.Content, "\n") {
				b.WriteString("\n")
			}
			if dep.Truncated {
				b.WriteString("[truncated]\n")
			}
		}
	}

	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

// truncate shortens s to at most max bytes without splitting a rune. A max
// of zero or less disables truncation.
func truncate(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}
