// Package state persists the set of issues the bot has already attempted.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Outcome describes how a processed issue ended.
type Outcome string

const (
	OutcomePROpened Outcome = "pr_opened"
	OutcomeDryRun   Outcome = "dry_run"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Record is a single processed issue entry.
type Record struct {
	URL         string    `json:"url"`
	Outcome     Outcome   `json:"outcome"`
	Detail      string    `json:"detail,omitempty"`
	PullRequest string    `json:"pull_request,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

type fileFormat struct {
	Issues []Record `json:"issues"`
}

// ProcessedIssues is an append-only set of issue URLs backed by a JSON file.
type ProcessedIssues struct {
	mu      sync.Mutex
	path    string
	records map[string]Record
	now     func() time.Time
}

// Open loads the log at path. A missing file is an empty set; an unreadable
// or corrupt file is an error so that history is never silently discarded.
func Open(path string) (*ProcessedIssues, error) {
	p := &ProcessedIssues{
		path:    path,
		records: make(map[string]Record),
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read processed issues %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return p, nil
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse processed issues %s: %w", path, err)
	}
	for _, rec := range f.Issues {
		key := normalizeURL(rec.URL)
		if key == "" {
			continue
		}
		if _, exists := p.records[key]; !exists {
			p.records[key] = rec
		}
	}
	return p, nil
}

func normalizeURL(url string) string {
	return strings.TrimRight(strings.TrimSpace(url), "/")
}

// Path returns the backing file path.
func (p *ProcessedIssues) Path() string {
	return p.path
}

// Has reports whether url was already processed.
func (p *ProcessedIssues) Has(url string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.records[normalizeURL(url)]
	return ok
}

// Get returns the record for url.
func (p *ProcessedIssues) Get(url string) (Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[normalizeURL(url)]
	return rec, ok
}

// Add records url. Adding an existing url keeps the first record and does
// not touch the file. It reports whether a new record was written.
func (p *ProcessedIssues) Add(url string, outcome Outcome, detail, pullRequest string) (bool, error) {
	key := normalizeURL(url)
	if key == "" {
		return false, fmt.Errorf("issue url is empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.records[key]; exists {
		return false, nil
	}

	p.records[key] = Record{
		URL:         key,
		Outcome:     outcome,
		Detail:      detail,
		PullRequest: pullRequest,
		ProcessedAt: p.now().UTC(),
	}
	if err := p.saveLocked(); err != nil {
		delete(p.records, key)
		return false, err
	}
	return true, nil
}

// List returns all records, oldest first.
func (p *ProcessedIssues) List() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sortedLocked()
}

// Len returns the number of processed issues.
func (p *ProcessedIssues) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

func (p *ProcessedIssues) sortedLocked() []Record {
	out := make([]Record, 0, len(p.records))
	for _, rec := range p.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProcessedAt.Equal(out[j].ProcessedAt) {
			return out[i].URL < out[j].URL
		}
		return out[i].ProcessedAt.Before(out[j].ProcessedAt)
	})
	return out
}

// saveLocked writes the whole log to a temp file and renames it into place.
func (p *ProcessedIssues) saveLocked() error {
	data, err := json.MarshalIndent(fileFormat{Issues: p.sortedLocked()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode processed issues: %w", err)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".processed-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
