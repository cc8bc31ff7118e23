package llm

import (
	"fmt"
	"log"
	"sync"
)

// Usage summarises model consumption.
type Usage struct {
	Calls        int
	PromptTokens int
	OutputTokens int
}

// Budget caps the number of model calls a single run may make.
type Budget struct {
	mu       sync.Mutex
	maxCalls int
	usage    Usage
}

// NewBudget creates a budget of maxCalls calls.
func NewBudget(maxCalls int) *Budget {
	return &Budget{maxCalls: maxCalls}
}

// Reserve claims one call, failing with ErrBudgetExhausted once the cap is reached.
func (b *Budget) Reserve() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxCalls > 0 && b.usage.Calls >= b.maxCalls {
		return fmt.Errorf("%w (%d calls)", ErrBudgetExhausted, b.maxCalls)
	}
	b.usage.Calls++
	return nil
}

// Record adds token counts from a response.
func (b *Budget) Record(resp *Response) {
	if resp == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage.PromptTokens += resp.PromptTokens
	b.usage.OutputTokens += resp.OutputTokens
}

// Usage returns the consumption so far.
func (b *Budget) Usage() Usage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.usage
}

// Reset starts a new run.
func (b *Budget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.usage.Calls > 0 {
		log.Printf("[Budget] Previous run used %d calls, %d prompt tokens, %d output tokens",
			b.usage.Calls, b.usage.PromptTokens, b.usage.OutputTokens)
	}
	b.usage = Usage{}
}
