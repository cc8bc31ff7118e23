package llm

import (
	"context"
	"fmt"
	"sync"
)

// FakeGenerator replays canned responses in order. It is used by tests in
// packages that drive the pipeline without a real model.
type FakeGenerator struct {
	mu sync.Mutex

	// Responses are returned one per call.
	Responses []string
	// Errs, when non-nil at the same index, is returned instead of the response.
	Errs []error
	// Calls records every request.
	Calls []Request
}

// Generate implements Generator.
func (f *FakeGenerator) Generate(_ context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.Calls)
	f.Calls = append(f.Calls, req)
	if i < len(f.Errs) && f.Errs[i] != nil {
		return nil, f.Errs[i]
	}
	if i >= len(f.Responses) {
		return nil, fmt.Errorf("fake generator: no response for call %d (%s)", i+1, req.Stage)
	}
	return &Response{Text: f.Responses[i], PromptTokens: len(req.Prompt) / 4, OutputTokens: len(f.Responses[i]) / 4}, nil
}

// Stages returns the stage of every recorded call.
func (f *FakeGenerator) Stages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	stages := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		stages[i] = c.Stage
	}
	return stages
}
