package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// StateFile is the name of the persisted run state inside the reserved
// workspace directory.
const StateFile = "state.json"

// ErrNoState is returned by Load when no run has been recorded yet.
var ErrNoState = errors.New("no run state recorded")

// Status is the overall state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// TaskStatus is the terminal state of one role invocation.
type TaskStatus string

const (
	TaskDone   TaskStatus = "done"
	TaskFailed TaskStatus = "failed"
)

// Task is one entry of the ordered task log.
type Task struct {
	RoleID        string            `json:"role_id"`
	Status        TaskStatus        `json:"status"`
	ArtifactCount int               `json:"artifact_count"`
	Checksums     map[string]string `json:"checksums,omitempty"`
	Error         string            `json:"error,omitempty"`
	Attempt       int               `json:"attempt"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    time.Time         `json:"finished_at"`
}

// RunState is the durable record of a run. Completed only grows and tasks are
// only appended, so a failed run leaves a truthful partial record.
type RunState struct {
	Version   string    `json:"version"`
	RunID     string    `json:"run_id"`
	Project   string    `json:"project"`
	Status    Status    `json:"status"`
	Attempt   int       `json:"attempt"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Completed []string  `json:"completed"`
	Tasks     []Task    `json:"tasks"`
}

// NewRunState creates an empty state for a fresh run.
func NewRunState(project string) *RunState {
	now := time.Now().UTC()
	return &RunState{
		Version:   "1",
		RunID:     uuid.NewString(),
		Project:   project,
		Status:    StatusRunning,
		Attempt:   1,
		StartedAt: now,
		UpdatedAt: now,
		Completed: []string{},
		Tasks:     []Task{},
	}
}

// BeginAttempt marks the start of a resumed attempt of the same run.
func (s *RunState) BeginAttempt() {
	s.Attempt++
	s.Status = StatusRunning
	s.UpdatedAt = time.Now().UTC()
}

// IsCompleted reports whether roleID finished successfully in any attempt.
func (s *RunState) IsCompleted(roleID string) bool {
	for _, id := range s.Completed {
		if id == roleID {
			return true
		}
	}
	return false
}

// Record appends a task entry. A done task also joins the completed set.
func (s *RunState) Record(task Task) {
	if task.Attempt == 0 {
		task.Attempt = s.Attempt
	}
	s.Tasks = append(s.Tasks, task)
	if task.Status == TaskDone && !s.IsCompleted(task.RoleID) {
		s.Completed = append(s.Completed, task.RoleID)
	}
	s.UpdatedAt = time.Now().UTC()
}

// Finish sets the final run status.
func (s *RunState) Finish(status Status) {
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
}

// LastTask returns the most recent entry for roleID.
func (s *RunState) LastTask(roleID string) (Task, bool) {
	for i := len(s.Tasks) - 1; i >= 0; i-- {
		if s.Tasks[i].RoleID == roleID {
			return s.Tasks[i], true
		}
	}
	return Task{}, false
}

// Checksums returns the artifact digests of every completed role, keyed by
// path. A later attempt's entry replaces an earlier one.
func (s *RunState) Checksums() map[string]string {
	sums := make(map[string]string)
	for _, t := range s.Tasks {
		if t.Status != TaskDone {
			continue
		}
		for path, sum := range t.Checksums {
			sums[path] = sum
		}
	}
	return sums
}

// Store persists a RunState as JSON.
type Store struct {
	path string
}

// NewStore returns a store writing <dir>/state.json.
func NewStore(dir string) *Store {
	return &Store{path: filepath.Join(dir, StateFile)}
}

// Path returns the state file location.
func (st *Store) Path() string {
	return st.path
}

// Save writes the state atomically: a crash mid-write leaves the previous
// state intact.
func (st *Store) Save(state *RunState) error {
	if state == nil {
		return fmt.Errorf("run state is nil")
	}

	if err := os.MkdirAll(filepath.Dir(st.path), 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}

	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write run state: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		return fmt.Errorf("failed to replace run state: %w", err)
	}
	return nil
}

// Load reads the persisted state. ErrNoState is returned when none exists.
func (st *Store) Load() (*RunState, error) {
	data, err := os.ReadFile(st.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run state: %w", err)
	}

	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	return &state, nil
}

// Exists reports whether a state file is present.
func (st *Store) Exists() bool {
	_, err := os.Stat(st.path)
	return err == nil
}
