// Package trace records scheduler events as JSON lines so a run can be
// inspected after the fact.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/felixgeelhaar/foundry/internal/log"
	"github.com/felixgeelhaar/foundry/internal/scheduler"
)

// Dir is the trace directory below the workspace state directory.
const Dir = "trace"

// Logger appends events to <dir>/trace_<run id>.jsonl. Attempts of the same
// run share one file. It implements scheduler.Observer.
type Logger struct {
	runID    string
	dir      string
	file     *os.File
	mu       sync.Mutex
	seq      int
	maxFiles int
	events   []Event
	logger   *log.Logger
}

// Config contains logger configuration.
type Config struct {
	RunID string
	Dir   string

	// MaxFiles is the number of trace files kept in Dir; older runs are
	// removed when a new trace is opened. Zero keeps everything.
	MaxFiles int

	// Enabled controls whether events are written to disk. A disabled
	// logger still keeps events in memory.
	Enabled bool
}

// DefaultMaxFiles is the number of run traces kept by default.
const DefaultMaxFiles = 20

// NewLogger opens the trace file for a run.
func NewLogger(config Config, logger *log.Logger) (*Logger, error) {
	if logger == nil {
		logger = log.Discard()
	}
	l := &Logger{runID: config.RunID, dir: config.Dir, maxFiles: config.MaxFiles, logger: logger}
	if !config.Enabled {
		return l, nil
	}

	if err := os.MkdirAll(config.Dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create trace directory: %w", err)
	}

	path := l.Path()
	seq, err := countLines(path)
	if err != nil {
		return nil, err
	}
	l.seq = seq

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	l.file = file

	if err := l.cleanupOldFiles(); err != nil {
		logger.Warn("failed to remove old trace files", "error", err)
	}
	return l, nil
}

// OnEvent records a scheduler event. Write failures are logged; tracing
// never interrupts a run.
func (l *Logger) OnEvent(e scheduler.Event) {
	if err := l.Log(FromScheduler(e)); err != nil {
		l.logger.Warn("failed to write trace event", "error", err)
	}
}

// Log appends one event.
func (l *Logger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	event.Seq = l.seq
	l.events = append(l.events, event)

	if l.file == nil {
		return nil
	}
	line, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if event.Type == scheduler.EventRunFinished {
		return l.file.Sync()
	}
	return nil
}

// Close syncs and closes the trace file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Sync()
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}

// Path returns the trace file of the run.
func (l *Logger) Path() string {
	return filepath.Join(l.dir, fmt.Sprintf("trace_%s.jsonl", l.runID))
}

// Events returns the events recorded by this logger.
func (l *Logger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]Event, len(l.events))
	copy(events, l.events)
	return events
}

// ReadFile loads every event of a trace file.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		ev, err := FromJSON(scanner.Bytes())
		if err != nil {
			return nil, fmt.Errorf("failed to parse trace line %d: %w", len(events)+1, err)
		}
		events = append(events, *ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	return events, nil
}

// cleanupOldFiles keeps the newest maxFiles traces, never removing the
// current one.
func (l *Logger) cleanupOldFiles() error {
	if l.maxFiles <= 0 {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(l.dir, "trace_*.jsonl"))
	if err != nil {
		return err
	}
	if len(files) <= l.maxFiles {
		return nil
	}

	type traced struct {
		path  string
		mtime int64
	}
	var others []traced
	for _, f := range files {
		if f == l.Path() {
			continue
		}
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		others = append(others, traced{f, info.ModTime().UnixNano()})
	}
	sort.Slice(others, func(i, j int) bool { return others[i].mtime < others[j].mtime })

	excess := len(files) - l.maxFiles
	for i := 0; i < excess && i < len(others); i++ {
		if err := os.Remove(others[i].path); err != nil {
			return err
		}
	}
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer func() { _ = f.Close() }()

	n := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			n++
		}
	}
	return n, scanner.Err()
}
