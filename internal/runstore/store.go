// Package runstore keeps the history of pipeline runs for serve mode.
package runstore

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status of a run. Finished runs carry the pipeline result status.
type Status string

const (
	StatusRunning Status = "running"
)

// Run is one pipeline execution.
type Run struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	IssueURL    string     `json:"issue_url,omitempty"`
	Repo        string     `json:"repo,omitempty"`
	IssueNumber int        `json:"issue_number,omitempty"`
	Title       string     `json:"title,omitempty"`
	PRURL       string     `json:"pr_url,omitempty"`
	Error       string     `json:"error,omitempty"`
	Logs        []LogEntry `json:"logs"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	seq int
}

// LogEntry is a single log line of a run.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"` // info, error, success
	Message   string    `json:"message"`
}

// Store is a thread-safe in-memory run store. Only the most recent
// maxRuns runs are kept.
type Store struct {
	mu      sync.RWMutex
	runs    map[string]*Run
	seq     int
	maxRuns int
	now     func() time.Time
}

// New creates a store keeping at most maxRuns runs (0 keeps all).
func New(maxRuns int) *Store {
	return &Store{
		runs:    make(map[string]*Run),
		maxRuns: maxRuns,
		now:     time.Now,
	}
}

// Create starts a new run in the running state and returns its ID.
func (s *Store) Create() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	now := s.now()
	id := fmt.Sprintf("run-%d-%d", now.Unix(), s.seq)
	s.runs[id] = &Run{
		ID:        id,
		Status:    StatusRunning,
		Logs:      []LogEntry{},
		CreatedAt: now,
		UpdatedAt: now,
		seq:       s.seq,
	}
	s.evictLocked()
	return id
}

// Get returns a copy of the run.
func (s *Store) Get(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return copyRun(run), nil
}

// List returns copies of all runs, newest first.
func (s *Store) List() []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.sortedLocked() {
		runs = append(runs, copyRun(run))
	}
	return runs
}

// UpdateStatus sets the run status.
func (s *Store) UpdateStatus(id string, status Status) error {
	return s.update(id, func(run *Run) {
		run.Status = status
	})
}

// SetIssue records the issue a run selected.
func (s *Store) SetIssue(id, url, repo string, number int, title string) error {
	return s.update(id, func(run *Run) {
		run.IssueURL = url
		run.Repo = repo
		run.IssueNumber = number
		run.Title = title
	})
}

// AppendLog adds a log entry to the run.
func (s *Store) AppendLog(id, level, message string) error {
	return s.update(id, func(run *Run) {
		run.Logs = append(run.Logs, LogEntry{
			Timestamp: s.now(),
			Level:     level,
			Message:   message,
		})
	})
}

// SetPRURL records the pull request opened by the run.
func (s *Store) SetPRURL(id, url string) error {
	return s.update(id, func(run *Run) {
		run.PRURL = url
	})
}

// SetError records the error that ended the run.
func (s *Store) SetError(id, msg string) error {
	return s.update(id, func(run *Run) {
		run.Error = msg
	})
}

func (s *Store) update(id string, fn func(*Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("run not found: %s", id)
	}
	fn(run)
	run.UpdatedAt = s.now()
	return nil
}

func (s *Store) sortedLocked() []*Run {
	runs := make([]*Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].seq > runs[j].seq
	})
	return runs
}

func (s *Store) evictLocked() {
	if s.maxRuns <= 0 || len(s.runs) <= s.maxRuns {
		return
	}
	sorted := s.sortedLocked()
	for _, run := range sorted[s.maxRuns:] {
		delete(s.runs, run.ID)
	}
}

func copyRun(run *Run) *Run {
	c := *run
	c.Logs = append(make([]LogEntry, 0, len(run.Logs)), run.Logs...)
	return &c
}

// Recorder feeds pipeline progress into the run with the given ID.
type Recorder struct {
	store *Store
	id    string
}

// Recorder returns a recorder for run id.
func (s *Store) Recorder(id string) *Recorder {
	return &Recorder{store: s, id: id}
}

// Log appends a log line.
func (r *Recorder) Log(level, message string) {
	_ = r.store.AppendLog(r.id, level, message)
}

// Issue records the selected issue.
func (r *Recorder) Issue(url, repo string, number int, title string) {
	_ = r.store.SetIssue(r.id, url, repo, number, title)
}
