// Package llm talks to the hosted language model.
package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrBudgetExhausted is returned when a run has used all of its model calls.
var ErrBudgetExhausted = errors.New("model call budget exhausted")

// Request is a single prompt.
type Request struct {
	// Stage names the pipeline step, used for logging only.
	Stage  string
	System string
	Prompt string
	// JSON asks the model for an application/json response.
	JSON bool
}

// Response is the model's text answer.
type Response struct {
	Text         string
	PromptTokens int
	OutputTokens int
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// IsRetryable reports whether err is a rate limit or transient server error.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrBudgetExhausted) {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"resource exhausted",
		"resource_exhausted",
		"429",
		"rate limit",
		"overloaded",
		"503",
		"500",
		"unavailable",
		"quota exceeded",
		"internal error",
		"server error",
		"deadline exceeded",
		"timeout",
		"connection reset",
		"eof",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
