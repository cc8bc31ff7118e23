package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cexll/firstfix/internal/issues"
	"github.com/cexll/firstfix/internal/prompt"
	"github.com/cexll/firstfix/internal/repocontext"
)

// ErrNoChanges is returned when the implementer produced nothing usable.
var ErrNoChanges = errors.New("implementation produced no usable file changes")

// Implementation is one implementer attempt.
type Implementation struct {
	Changes []FileChange
	Summary string
	Attempt int
}

// Paths returns the changed paths in order.
func (impl *Implementation) Paths() []string {
	paths := make([]string, len(impl.Changes))
	for i, c := range impl.Changes {
		paths[i] = c.Path
	}
	return paths
}

// PromptChanges converts the changes for the critique prompt.
func (impl *Implementation) PromptChanges() []prompt.Change {
	changes := make([]prompt.Change, len(impl.Changes))
	for i, c := range impl.Changes {
		changes[i] = prompt.Change{Path: c.Path, Original: c.Original, Content: c.Content, New: c.New}
	}
	return changes
}

// Implement asks the model for the new content of the planned files.
// feedback carries the critic's objections to a previous attempt.
// Changes to files outside the plan, unsafe paths and no-op rewrites are
// dropped; ErrNoChanges is returned when nothing remains.
func (a *Agent) Implement(ctx context.Context, issue *issues.Issue, rc *repocontext.RepoContext, plan *Plan, feedback string, attempt int) (*Implementation, error) {
	if plan.Empty() {
		return nil, fmt.Errorf("implement: empty plan")
	}

	req, err := a.prompts.Implement(issue, prompt.ImplementInput{
		Files:     plan.Files,
		Rationale: plan.Rationale,
		Sources:   rc.Render(plan.Files),
		Feedback:  feedback,
	})
	text, err := a.generate(ctx, req, err)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseResponse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoChanges, err)
	}

	allowed := make(map[string]bool, len(plan.Files))
	for _, p := range plan.Files {
		allowed[p] = true
	}

	impl := &Implementation{Summary: parsed.Summary, Attempt: attempt}
	index := map[string]int{}
	for _, change := range parsed.Files {
		path := repocontext.NormalizePath(change.Path)
		if !repocontext.IsSafePath(path) {
			log.Printf("[Agent] Implement: dropping unsafe path %q", change.Path)
			continue
		}
		if !allowed[path] {
			log.Printf("[Agent] Implement: dropping %q, not in plan", change.Path)
			continue
		}

		original, exists := rc.Content(path)
		fc := FileChange{Path: path, Content: change.Content, Original: original, New: !exists}
		if !fc.New && strings.HasSuffix(original, "\n") && !strings.HasSuffix(fc.Content, "\n") {
			fc.Content += "\n"
		}
		if !fc.New && fc.Content == original {
			log.Printf("[Agent] Implement: %s unchanged", path)
			continue
		}

		// A later block for the same path wins.
		if i, ok := index[path]; ok {
			impl.Changes[i] = fc
			continue
		}
		index[path] = len(impl.Changes)
		impl.Changes = append(impl.Changes, fc)
	}

	if len(impl.Changes) == 0 {
		return nil, ErrNoChanges
	}
	log.Printf("[Agent] Attempt %d changed %v", attempt, impl.Paths())
	return impl, nil
}
