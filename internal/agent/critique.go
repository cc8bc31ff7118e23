package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cexll/firstfix/internal/issues"
	"github.com/cexll/firstfix/internal/llm"
)

// Critique is the reviewer's verdict on an implementation.
type Critique struct {
	Approved bool     `json:"approved"`
	Problems []string `json:"problems"`
	Feedback string   `json:"feedback"`
	// Unparsed is set when the response could not be decoded and the
	// critique defaulted to approval.
	Unparsed bool `json:"-"`
}

// FeedbackText joins the problems and feedback for the next implement prompt.
func (c *Critique) FeedbackText() string {
	var sb strings.Builder
	for _, p := range c.Problems {
		if p = strings.TrimSpace(p); p != "" {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}
	if fb := strings.TrimSpace(c.Feedback); fb != "" {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fb)
	}
	return strings.TrimSpace(sb.String())
}

// Critique asks the model to review impl. The critic is advisory: a
// response that cannot be parsed counts as approval.
func (a *Agent) Critique(ctx context.Context, issue *issues.Issue, plan *Plan, impl *Implementation) (*Critique, error) {
	req, err := a.prompts.Critique(issue, plan.Rationale, impl.PromptChanges())
	text, err := a.generate(ctx, req, err)
	if err != nil {
		return nil, err
	}

	c := ParseCritique(text)
	if c.Unparsed {
		log.Printf("[Agent] Warning: could not parse critique for %s, treating as approved", issue)
	} else {
		log.Printf("[Agent] Critique of attempt %d: approved=%v problems=%d", impl.Attempt, c.Approved, len(c.Problems))
	}
	return c, nil
}

type critiqueResponse struct {
	Approved *bool    `json:"approved"`
	Problems []string `json:"problems"`
	Feedback string   `json:"feedback"`
}

// ParseCritique decodes a critic response. A response without an "approved"
// verdict is unparsed.
func ParseCritique(text string) *Critique {
	var resp critiqueResponse
	if err := llm.DecodeJSON(text, &resp); err != nil || resp.Approved == nil {
		return &Critique{Approved: true, Unparsed: true}
	}
	return &Critique{
		Approved: *resp.Approved,
		Problems: resp.Problems,
		Feedback: resp.Feedback,
	}
}
