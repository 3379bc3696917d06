// Package protocol implements the worker output protocol: a small line-based
// grammar that carries file artifacts and a trailing decisions section inside
// free-form generated text.
//
// A response looks like:
//
//	=== FILE: cmd/app/main.go ===
//	package main
//	=== END FILE ===
//
//	=== DECISIONS ===
//	WHAT: use cobra for the CLI
//	WHY: consistent flag handling
//
// Parsing is pure. Writing artifacts and stamping decisions belong to callers.
package protocol

import (
	"fmt"
	"strings"
)

// Delimiters of the wire format. Each delimiter occupies a whole line;
// surrounding whitespace is ignored.
const (
	FileHeaderPrefix = "=== FILE:"
	FileHeaderSuffix = "==="
	FileEndMarker    = "=== END FILE ==="
	DecisionsMarker  = "=== DECISIONS ==="
	WhatMarker       = "WHAT:"
	WhyMarker        = "WHY:"
)

// Artifact is a file extracted from a response.
type Artifact struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Decision is a (what, why) pair extracted from the decisions section.
type Decision struct {
	What string `json:"what"`
	Why  string `json:"why"`
}

// SkipReason enumerates why a file segment was not accepted.
type SkipReason string

const (
	SkipUnterminated SkipReason = "unterminated"
	SkipUnsafePath   SkipReason = "unsafe-path"
	SkipDuplicate    SkipReason = "duplicate"
	SkipReserved     SkipReason = "reserved"
)

// Skipped records a file segment that was seen but not accepted.
type Skipped struct {
	Path   string     `json:"path"`
	Line   int        `json:"line"`
	Reason SkipReason `json:"reason"`
}

// Result is the outcome of parsing one response.
type Result struct {
	Artifacts []Artifact `json:"artifacts"`
	Decisions []Decision `json:"decisions"`
	Skipped   []Skipped  `json:"skipped,omitempty"`
}

// Paths returns the artifact paths in extraction order.
func (r *Result) Paths() []string {
	paths := make([]string, len(r.Artifacts))
	for i, a := range r.Artifacts {
		paths[i] = a.Path
	}
	return paths
}

// NoArtifactsError reports a response that yielded zero accepted file
// segments. It is returned regardless of decision-section content; any
// decisions the response did carry are kept so they can still be recorded.
type NoArtifactsError struct {
	Skipped   []Skipped
	Decisions []Decision
}

func (e *NoArtifactsError) Error() string {
	if len(e.Skipped) == 0 {
		return "no file artifacts found in response"
	}
	reasons := make([]string, len(e.Skipped))
	for i, s := range e.Skipped {
		reasons[i] = fmt.Sprintf("%s (line %d): %s", s.Path, s.Line, s.Reason)
	}
	return fmt.Sprintf("no file artifacts found in response; skipped %s", strings.Join(reasons, ", "))
}

// Parse extracts artifacts and decisions from a generated response.
func Parse(text string) (*Result, error) {
	lines := splitLines(text)
	result := &Result{}
	index := make(map[string]int)

	decisionsAt := -1
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i].text)
		if trimmed == DecisionsMarker {
			decisionsAt = i + 1
			break
		}
		rawPath, ok := headerPath(trimmed)
		if !ok {
			continue
		}

		end, stop := -1, len(lines)
		for j := i + 1; j < len(lines); j++ {
			marker := strings.TrimSpace(lines[j].text)
			if marker == FileEndMarker {
				end = j
				break
			}
			if marker == DecisionsMarker {
				stop = j
				break
			}
		}
		if end < 0 {
			// The segment runs into the decisions section or EOF.
			result.Skipped = append(result.Skipped, Skipped{Path: rawPath, Line: i + 1, Reason: SkipUnterminated})
			i = stop - 1
			continue
		}

		content := text[lines[i].next:lines[end].start]
		i = end

		cleaned, err := NormalizePath(rawPath)
		if err != nil {
			result.Skipped = append(result.Skipped, Skipped{Path: rawPath, Line: lines[end].number, Reason: SkipUnsafePath})
			continue
		}
		if pos, seen := index[cleaned]; seen {
			result.Artifacts[pos].Content = content
			result.Skipped = append(result.Skipped, Skipped{Path: cleaned, Line: lines[end].number, Reason: SkipDuplicate})
			continue
		}
		index[cleaned] = len(result.Artifacts)
		result.Artifacts = append(result.Artifacts, Artifact{Path: cleaned, Content: content})
	}

	if decisionsAt >= 0 {
		result.Decisions = parseDecisions(lines[decisionsAt:])
	}

	if len(result.Artifacts) == 0 {
		return nil, &NoArtifactsError{Skipped: result.Skipped, Decisions: result.Decisions}
	}
	return result, nil
}

// parseDecisions pairs WHAT/WHY markers. A pending WHAT is dropped when another
// WHAT arrives or the section ends before its WHY.
func parseDecisions(lines []line) []Decision {
	var (
		decisions []Decision
		pending   string
		open      bool
	)
	for _, l := range lines {
		trimmed := strings.TrimSpace(l.text)
		switch {
		case strings.HasPrefix(trimmed, WhatMarker):
			pending = strings.TrimSpace(strings.TrimPrefix(trimmed, WhatMarker))
			open = pending != ""
		case strings.HasPrefix(trimmed, WhyMarker):
			why := strings.TrimSpace(strings.TrimPrefix(trimmed, WhyMarker))
			if open && why != "" {
				decisions = append(decisions, Decision{What: pending, Why: why})
			}
			pending, open = "", false
		}
	}
	return decisions
}

// headerPath returns the path named by a file header line.
func headerPath(trimmed string) (string, bool) {
	if trimmed == FileEndMarker || !strings.HasPrefix(trimmed, FileHeaderPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(trimmed, FileHeaderPrefix)
	if !strings.HasSuffix(rest, FileHeaderSuffix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimSuffix(rest, FileHeaderSuffix)), true
}

type line struct {
	text   string
	number int
	start  int // offset of the first byte of the line
	next   int // offset of the first byte after the line terminator
}

func splitLines(text string) []line {
	var lines []line
	start := 0
	for n := 1; start < len(text); n++ {
		end := strings.IndexByte(text[start:], '\n')
		if end < 0 {
			lines = append(lines, line{text: strings.TrimSuffix(text[start:], "\r"), number: n, start: start, next: len(text)})
			break
		}
		lines = append(lines, line{
			text:   strings.TrimSuffix(text[start:start+end], "\r"),
			number: n,
			start:  start,
			next:   start + end + 1,
		})
		start += end + 1
	}
	return lines
}
