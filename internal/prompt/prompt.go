// Package prompt renders the model prompts for each pipeline stage.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"unicode/utf8"

	"github.com/cexll/firstfix/internal/github"
	"github.com/cexll/firstfix/internal/issues"
	"github.com/cexll/firstfix/internal/llm"
)

// Template names. A file named <name>.tmpl in the override directory
// replaces the built-in template; overrides may use {{template "issue" .Issue}}.
const (
	NameSystem    = "system"
	NameClassify  = "classify"
	NamePlan      = "plan"
	NameImplement = "implement"
	NameCritique  = "critique"
	NamePRBody    = "pr_body"
)

const (
	maxComments        = 10
	maxCommentChars    = 1000
	maxTreeLines       = 2000
	maxChangePreview   = 20000
	truncationSentinel = "\n... (truncated)"
)

var defaults = map[string]string{
	NameSystem:    defaultSystemTemplate,
	NameClassify:  defaultClassifyTemplate,
	NamePlan:      defaultPlanTemplate,
	NameImplement: defaultImplementTemplate,
	NameCritique:  defaultCritiqueTemplate,
	NamePRBody:    defaultPRBodyTemplate,
}

// Change is a proposed file rewrite shown to the critic and in the PR body.
type Change struct {
	Path     string
	Original string
	Content  string
	New      bool
}

// Builder renders prompts.
type Builder struct {
	templates map[string]*template.Template
}

// NewBuilder parses the built-in templates and any overrides found in dir.
func NewBuilder(dir string) (*Builder, error) {
	b := &Builder{templates: make(map[string]*template.Template, len(defaults))}
	for name, text := range defaults {
		if dir != "" {
			if override, err := os.ReadFile(filepath.Join(dir, name+".tmpl")); err == nil {
				text = string(override)
			}
		}
		t, err := template.New(name).Funcs(funcs).Parse(issueBlock)
		if err == nil {
			t, err = t.Parse(text)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		b.templates[name] = t
	}
	return b, nil
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"add":  func(a, b int) int { return a + b },
}

func (b *Builder) render(name string, data any) (string, error) {
	t, ok := b.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", name, err)
	}
	return strings.TrimSpace(sb.String()) + "\n", nil
}

func (b *Builder) request(stage string, data any, json bool) (llm.Request, error) {
	system, err := b.render(NameSystem, nil)
	if err != nil {
		return llm.Request{}, err
	}
	text, err := b.render(stage, data)
	if err != nil {
		return llm.Request{}, err
	}
	return llm.Request{Stage: stage, System: system, Prompt: text, JSON: json}, nil
}

type issueView struct {
	Repo     string
	Number   int
	Title    string
	URL      string
	Body     string
	Labels   []string
	Comments []commentView
}

type commentView struct {
	Author string
	Body   string
}

func viewIssue(issue *issues.Issue) issueView {
	v := issueView{
		Repo:   issue.Repo,
		Number: issue.Number,
		Title:  github.SanitizeContent(issue.Title),
		URL:    issue.HTMLURL,
		Body:   github.SanitizeContent(issue.Body),
		Labels: issue.Labels,
	}

	comments := issue.Comments
	if len(comments) > maxComments {
		comments = comments[len(comments)-maxComments:]
	}
	for _, c := range comments {
		v.Comments = append(v.Comments, commentView{
			Author: c.Author,
			Body:   truncate(github.SanitizeContent(c.Body), maxCommentChars),
		})
	}
	return v
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationSentinel
}

func truncateLines(s string, limit int) string {
	total := strings.Count(s, "\n")
	if total <= limit {
		return s
	}
	end := 0
	for i := 0; i < limit; i++ {
		end += strings.IndexByte(s[end:], '\n') + 1
	}
	return s[:end] + fmt.Sprintf("... (%d more files)\n", total-limit)
}

// Classify asks whether the issue is a small, self-contained code change.
func (b *Builder) Classify(issue *issues.Issue, tree string) (llm.Request, error) {
	return b.request(NameClassify, map[string]any{
		"Issue": viewIssue(issue),
		"Tree":  truncateLines(tree, maxTreeLines),
	}, true)
}

// Plan asks which existing files must change.
func (b *Builder) Plan(issue *issues.Issue, tree string, maxFiles int) (llm.Request, error) {
	return b.request(NamePlan, map[string]any{
		"Issue":    viewIssue(issue),
		"Tree":     truncateLines(tree, maxTreeLines),
		"MaxFiles": maxFiles,
	}, true)
}

// ImplementInput carries the plan and sources into the implement prompt.
type ImplementInput struct {
	Files     []string
	Rationale string
	// Sources is the rendered content of the planned files.
	Sources string
	// Feedback from a rejected previous attempt, if any.
	Feedback string
}

// Implement asks for complete new contents of the planned files.
func (b *Builder) Implement(issue *issues.Issue, in ImplementInput) (llm.Request, error) {
	return b.request(NameImplement, map[string]any{
		"Issue":     viewIssue(issue),
		"Files":     in.Files,
		"Rationale": in.Rationale,
		"Sources":   in.Sources,
		"Feedback":  strings.TrimSpace(in.Feedback),
	}, false)
}

// Critique asks for a review of the proposed changes.
func (b *Builder) Critique(issue *issues.Issue, rationale string, changes []Change) (llm.Request, error) {
	views := make([]Change, len(changes))
	for i, c := range changes {
		views[i] = Change{
			Path:     c.Path,
			Original: truncate(c.Original, maxChangePreview),
			Content:  truncate(c.Content, maxChangePreview),
			New:      c.New,
		}
	}
	return b.request(NameCritique, map[string]any{
		"Issue":     viewIssue(issue),
		"Rationale": rationale,
		"Changes":   views,
	}, true)
}

// PullRequestInput describes the change for the PR description.
type PullRequestInput struct {
	Category  string
	Rationale string
	Summary   string
	Files     []string
	Critique  string
	Model     string
}

// PullRequestTitle returns the title of the pull request for issue.
func PullRequestTitle(issue *issues.Issue) string {
	title := strings.TrimSpace(github.SanitizeContent(issue.Title))
	title = strings.Join(strings.Fields(title), " ")
	return truncate(fmt.Sprintf("Fix #%d: %s", issue.Number, title), 240)
}

// PullRequestBody renders the pull request description.
func (b *Builder) PullRequestBody(issue *issues.Issue, in PullRequestInput) (string, error) {
	return b.render(NamePRBody, map[string]any{
		"Issue":     viewIssue(issue),
		"Category":  in.Category,
		"Rationale": strings.TrimSpace(in.Rationale),
		"Summary":   strings.TrimSpace(in.Summary),
		"Files":     in.Files,
		"Critique":  strings.TrimSpace(in.Critique),
		"Model":     in.Model,
	})
}

// CommitMessage returns the commit message for the fix.
func CommitMessage(issue *issues.Issue) string {
	title := strings.Join(strings.Fields(github.SanitizeContent(issue.Title)), " ")
	subject := truncate(fmt.Sprintf("fix: %s", title), 72)
	return fmt.Sprintf("%s\n\nCloses #%d", subject, issue.Number)
}
