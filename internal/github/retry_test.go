package github

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	gh "github.com/google/go-github/v66/github"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error should not retry", nil, false},
		{"EOF error should retry", errors.New(`Post "https://api.github.com/graphql": EOF`), true},
		{"timeout error should retry", errors.New("request timeout after 30s"), true},
		{"connection reset should retry", errors.New("read tcp: connection reset by peer"), true},
		{"git hang up should retry", errors.New("fatal: the remote end hung up unexpectedly"), true},
		{"authentication error should not retry", errors.New("HTTP 401: Bad credentials"), false},
		{"context cancel should not retry", context.Canceled, false},
		{"secondary rate limit should retry", &gh.AbuseRateLimitError{Message: "slow down"}, true},
		{"primary rate limit should not retry", &gh.RateLimitError{Message: "limit"}, false},
		{
			"server error should retry",
			&gh.ErrorResponse{Response: &http.Response{StatusCode: http.StatusBadGateway}, Message: "bad gateway"},
			true,
		},
		{
			"not found should not retry",
			&gh.ErrorResponse{Response: &http.Response{StatusCode: http.StatusNotFound}, Message: "Not Found"},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.expected {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetryWithBackoffCustom(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := retryWithBackoffCustom(context.Background(), 3, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3", calls)
		}
	})

	t.Run("permanent error fails immediately", func(t *testing.T) {
		calls := 0
		err := retryWithBackoffCustom(context.Background(), 3, time.Millisecond, func() error {
			calls++
			return errors.New("permission denied")
		})
		if err == nil || calls != 1 {
			t.Errorf("err = %v, calls = %d; want error after 1 call", err, calls)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := retryWithBackoffCustom(context.Background(), 2, time.Millisecond, func() error {
			calls++
			return errors.New("timeout")
		})
		if err == nil || calls != 3 {
			t.Errorf("err = %v, calls = %d; want error after 3 calls", err, calls)
		}
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := retryWithBackoffCustom(ctx, 5, time.Hour, func() error {
			calls++
			cancel()
			return errors.New("timeout")
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}
