package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cexll/firstfix/internal/issues"
	"github.com/cexll/firstfix/internal/llm"
	"github.com/cexll/firstfix/internal/repocontext"
)

// Issue categories.
const (
	CategoryBug      = "bug"
	CategoryDocs     = "docs"
	CategoryFeature  = "feature"
	CategoryRefactor = "refactor"
	CategoryTest     = "test"
	CategoryOther    = "other"
)

var knownCategories = map[string]bool{
	CategoryBug:      true,
	CategoryDocs:     true,
	CategoryFeature:  true,
	CategoryRefactor: true,
	CategoryTest:     true,
	CategoryOther:    true,
}

// Classification is the classifier's verdict on an issue.
type Classification struct {
	Category string `json:"category"`
	Feasible bool   `json:"feasible"`
	Reason   string `json:"reason"`
}

// Classify asks the model whether the issue is worth attempting.
func (a *Agent) Classify(ctx context.Context, issue *issues.Issue, rc *repocontext.RepoContext) (*Classification, error) {
	req, err := a.prompts.Classify(issue, rc.Tree())
	text, err := a.generate(ctx, req, err)
	if err != nil {
		return nil, err
	}
	c, err := ParseClassification(text)
	if err != nil {
		return nil, err
	}
	log.Printf("[Agent] Classified %s as %s (feasible=%v): %s", issue, c.Category, c.Feasible, c.Reason)
	return c, nil
}

type classificationResponse struct {
	Category string `json:"category"`
	Feasible *bool  `json:"feasible"`
	Reason   string `json:"reason"`
}

// ParseClassification decodes a classifier response. The "feasible" verdict
// is required; unknown categories map to "other".
func ParseClassification(text string) (*Classification, error) {
	var resp classificationResponse
	if err := llm.DecodeJSON(text, &resp); err != nil {
		return nil, fmt.Errorf("parse classification: %w", err)
	}
	if resp.Feasible == nil {
		return nil, fmt.Errorf("parse classification: missing feasible verdict")
	}

	c := &Classification{
		Category: strings.ToLower(strings.TrimSpace(resp.Category)),
		Feasible: *resp.Feasible,
		Reason:   strings.TrimSpace(resp.Reason),
	}
	if !knownCategories[c.Category] {
		c.Category = CategoryOther
	}
	return c, nil
}
