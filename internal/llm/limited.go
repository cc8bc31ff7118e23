package llm

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"
)

// Limited paces, budgets and retries calls to another Generator.
type Limited struct {
	next       Generator
	limiter    *rate.Limiter
	budget     *Budget
	maxRetries int
	retryDelay time.Duration
}

// NewLimited allows at most one call per minInterval and at most budget's calls.
func NewLimited(next Generator, minInterval time.Duration, budget *Budget) *Limited {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	if budget == nil {
		budget = NewBudget(0)
	}
	return &Limited{
		next:       next,
		limiter:    rate.NewLimiter(limit, 1),
		budget:     budget,
		maxRetries: 3,
		retryDelay: 10 * time.Second,
	}
}

// WithRetry overrides the retry policy.
func (l *Limited) WithRetry(maxRetries int, delay time.Duration) *Limited {
	l.maxRetries = maxRetries
	l.retryDelay = delay
	return l
}

// Budget returns the call budget.
func (l *Limited) Budget() *Budget {
	return l.budget
}

// Generate implements Generator.
func (l *Limited) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := l.budget.Reserve(); err != nil {
		return nil, err
	}

	delay := l.retryDelay
	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[LLM] %s: retry %d/%d in %v after: %v", req.Stage, attempt, l.maxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := l.next.Generate(ctx, req)
		if err == nil {
			l.budget.Record(resp)
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}
