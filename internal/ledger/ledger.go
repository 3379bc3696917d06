package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Orchestrator is the author of entries written by the scheduler itself.
const Orchestrator = "Orchestrator"

// Stream is one of the four append-only ledger files.
type Stream string

const (
	Errors          Stream = "errors"
	Learnings       Stream = "learnings"
	FeatureRequests Stream = "feature_requests"
	Decisions       Stream = "decisions"
)

// Streams lists every stream in display order.
func Streams() []Stream {
	return []Stream{Decisions, Errors, Learnings, FeatureRequests}
}

// ParseStream accepts a stream name with '-' or '_' separators.
func ParseStream(s string) (Stream, error) {
	normalized := Stream(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, st := range Streams() {
		if st == normalized {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown ledger stream %q", s)
}

// File returns the markdown file name of the stream.
func (s Stream) File() string {
	return string(s) + ".md"
}

// Title returns the heading written at the top of the stream file.
func (s Stream) Title() string {
	switch s {
	case Errors:
		return "Errors"
	case Learnings:
		return "Learnings"
	case FeatureRequests:
		return "Feature Requests"
	case Decisions:
		return "Decisions"
	}
	return string(s)
}

// entryPrefix starts every entry header line; entries are counted by it.
const entryPrefix = "### ["

// Entry is one immutable ledger record.
type Entry struct {
	ID        string    `json:"id"`
	Stream    Stream    `json:"stream"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
}

// Ledger appends entries to markdown files under one directory. Entries are
// never edited or removed.
type Ledger struct {
	dir    string
	mu     sync.Mutex
	counts map[Stream]int
	now    func() time.Time
	newID  func() string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides the entry id source.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// Open prepares the ledger directory and recovers entry counts from any
// files left by earlier runs.
func Open(dir string, opts ...Option) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	l := &Ledger{
		dir:    dir,
		counts: make(map[Stream]int),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}

	for _, s := range Streams() {
		n, err := countEntries(l.path(s))
		if err != nil {
			return nil, err
		}
		l.counts[s] = n
	}
	return l, nil
}

// Dir returns the ledger directory.
func (l *Ledger) Dir() string {
	return l.dir
}

func (l *Ledger) path(s Stream) string {
	return filepath.Join(l.dir, s.File())
}

// Append writes one entry to a stream.
func (l *Ledger) Append(stream Stream, author, content string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		ID:        l.newID(),
		Stream:    stream,
		Timestamp: l.now().UTC(),
		Author:    strings.Join(strings.Fields(author), " "),
		Content:   strings.TrimSpace(content),
	}
	if entry.Author == "" {
		entry.Author = Orchestrator
	}

	path := l.path(stream)
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to open %s: %w", stream.File(), err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	if fresh {
		fmt.Fprintf(&b, "# %s\n\n", stream.Title())
	}
	b.WriteString(formatEntry(entry))

	if _, err := f.WriteString(b.String()); err != nil {
		return Entry{}, fmt.Errorf("failed to append to %s: %w", stream.File(), err)
	}
	l.counts[stream]++
	return entry, nil
}

// RecordDecision appends a what/why pair to the decisions stream.
func (l *Ledger) RecordDecision(author, what, why string) error {
	_, err := l.Append(Decisions, author, FormatDecision(what, why))
	return err
}

// FormatDecision renders a what/why pair as decision entry content.
func FormatDecision(what, why string) string {
	return fmt.Sprintf("**What:** %s\n**Why:** %s", strings.TrimSpace(what), strings.TrimSpace(why))
}

// RecordError appends to the errors stream.
func (l *Ledger) RecordError(author, content string) error {
	_, err := l.Append(Errors, author, content)
	return err
}

// RecordLearning appends to the learnings stream.
func (l *Ledger) RecordLearning(author, content string) error {
	_, err := l.Append(Learnings, author, content)
	return err
}

// RecordFeatureRequest appends to the feature requests stream.
func (l *Ledger) RecordFeatureRequest(author, content string) error {
	_, err := l.Append(FeatureRequests, author, content)
	return err
}

// Counts returns the number of entries per stream, including entries
// written before this ledger was opened.
func (l *Ledger) Counts() map[Stream]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[Stream]int, len(l.counts))
	for s, n := range l.counts {
		out[s] = n
	}
	return out
}

// Entries reads a stream back in append order.
func (l *Ledger) Entries(stream Stream) ([]Entry, error) {
	f, err := os.Open(l.path(stream))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", stream.File(), err)
	}
	defer func() { _ = f.Close() }()

	var (
		entries []Entry
		current *Entry
		body    []string
	)
	flush := func() {
		if current != nil {
			current.Content = strings.TrimSpace(unescape(strings.Join(body, "\n")))
			entries = append(entries, *current)
		}
		body = nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, entryPrefix) {
			flush()
			e, ok := parseHeader(line)
			if !ok {
				current = nil
				continue
			}
			e.Stream = stream
			current = &e
			continue
		}
		if current != nil {
			body = append(body, line)
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", stream.File(), err)
	}
	return entries, nil
}

// formatEntry renders:
//
//	### [<id>] <RFC3339 timestamp> · <author>
//
//	<content>
func formatEntry(e Entry) string {
	return fmt.Sprintf("%s%s] %s · %s\n\n%s\n\n",
		entryPrefix, e.ID, e.Timestamp.Format(time.RFC3339), e.Author, escape(e.Content))
}

func parseHeader(line string) (Entry, bool) {
	rest := strings.TrimPrefix(line, entryPrefix)
	id, rest, ok := strings.Cut(rest, "] ")
	if !ok {
		return Entry{}, false
	}
	stamp, author, ok := strings.Cut(rest, " · ")
	if !ok {
		return Entry{}, false
	}
	ts, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return Entry{}, false
	}
	return Entry{ID: id, Timestamp: ts, Author: author}, true
}

// escape keeps content lines from being mistaken for entry headers.
func escape(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, entryPrefix) {
			lines[i] = `\` + line
		}
	}
	return strings.Join(lines, "\n")
}

func unescape(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, `\`+entryPrefix) {
			lines[i] = line[1:]
		}
	}
	return strings.Join(lines, "\n")
}

func countEntries(path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = f.Close() }()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), entryPrefix) {
			n++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return n, nil
}
