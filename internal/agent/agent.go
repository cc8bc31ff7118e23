// Package agent runs the model-driven stages of the pipeline: classify,
// plan, implement and critique.
package agent

import (
	"context"
	"fmt"

	"github.com/cexll/firstfix/internal/llm"
	"github.com/cexll/firstfix/internal/prompt"
)

const defaultMaxPlanFiles = 5

// Agent issues the stage prompts against a Generator.
type Agent struct {
	gen          llm.Generator
	prompts      *prompt.Builder
	maxPlanFiles int
}

// New creates an Agent. maxPlanFiles <= 0 uses the default of 5.
func New(gen llm.Generator, prompts *prompt.Builder, maxPlanFiles int) *Agent {
	if maxPlanFiles <= 0 {
		maxPlanFiles = defaultMaxPlanFiles
	}
	return &Agent{gen: gen, prompts: prompts, maxPlanFiles: maxPlanFiles}
}

func (a *Agent) generate(ctx context.Context, req llm.Request, buildErr error) (string, error) {
	if buildErr != nil {
		return "", fmt.Errorf("build prompt: %w", buildErr)
	}
	resp, err := a.gen.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
