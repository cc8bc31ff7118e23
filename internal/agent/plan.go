package agent

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/cexll/firstfix/internal/issues"
	"github.com/cexll/firstfix/internal/llm"
	"github.com/cexll/firstfix/internal/repocontext"
)

// Plan names the existing files to change.
type Plan struct {
	Files     []string
	Rationale string
	// Dropped lists paths the model proposed that are unknown or unsafe.
	Dropped []string
}

// Empty reports whether nothing is left to change.
func (p *Plan) Empty() bool {
	return p == nil || len(p.Files) == 0
}

type planResponse struct {
	Files     []string `json:"files"`
	Rationale string   `json:"rationale"`
}

// Plan asks the model which files to change. Paths are normalised,
// deduplicated and restricted to safe files present in rc. An unparseable
// response yields an empty plan.
func (a *Agent) Plan(ctx context.Context, issue *issues.Issue, rc *repocontext.RepoContext) (*Plan, error) {
	req, err := a.prompts.Plan(issue, rc.Tree(), a.maxPlanFiles)
	text, err := a.generate(ctx, req, err)
	if err != nil {
		return nil, err
	}

	files, rationale := parsePlan(text)
	plan := &Plan{Rationale: rationale}
	for _, p := range files {
		switch {
		case !repocontext.IsSafePath(p):
			log.Printf("[Agent] Plan: dropping unsafe path %q", p)
			plan.Dropped = append(plan.Dropped, p)
		case !rc.Has(p):
			log.Printf("[Agent] Plan: dropping unknown path %q", p)
			plan.Dropped = append(plan.Dropped, p)
		case len(plan.Files) >= a.maxPlanFiles:
			plan.Dropped = append(plan.Dropped, p)
		default:
			plan.Files = append(plan.Files, p)
		}
	}

	log.Printf("[Agent] Plan for %s: %v", issue, plan.Files)
	return plan, nil
}

// ParseFileList extracts file paths from a model response: a JSON array of
// strings, or an object with a "files" array. Anything else yields an empty
// list.
func ParseFileList(text string) []string {
	files, _ := parsePlan(text)
	return files
}

func parsePlan(text string) ([]string, string) {
	var raw json.RawMessage
	if err := llm.DecodeJSON(text, &raw); err == nil {
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil && plausiblePaths(list) {
			return normalizePaths(list), ""
		}

		var obj planResponse
		if err := json.Unmarshal(raw, &obj); err == nil && plausiblePaths(obj.Files) {
			return normalizePaths(obj.Files), strings.TrimSpace(obj.Rationale)
		}
	}

	log.Printf("[Agent] Could not parse file list from response (%d chars)", len(text))
	return []string{}, ""
}

// plausiblePaths rejects lists holding several paths or prose in one entry.
func plausiblePaths(paths []string) bool {
	for _, p := range paths {
		if strings.ContainsAny(p, "\n\"") || strings.Contains(p, ", ") {
			return false
		}
	}
	return true
}

func normalizePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = repocontext.NormalizePath(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
