package github

import (
	"context"
	"os"
	"os/exec"
	"time"
)

// CommandRunner is an interface for executing system commands
// This abstraction allows us to mock command execution in tests
type CommandRunner interface {
	// Run executes a command and returns the combined output and error
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// RunInDir executes a command in a specific directory
	RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner is the production implementation using os/exec.
// Each command is bounded by Timeout when it is positive.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner creates a runner with a per-command timeout
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

// Run executes a command using os/exec
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return r.RunInDir(ctx, "", name, args...)
}

// RunInDir executes a command in a specific directory
func (r *ExecRunner) RunInDir(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	// Never block on a credential prompt.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return out, ctx.Err()
	}
	return out, err
}

// MockCommandRunner is a test implementation that returns predefined responses
type MockCommandRunner struct {
	// RunFunc is called when Run or RunInDir is invoked
	RunFunc func(dir, name string, args ...string) ([]byte, error)

	// Calls tracks all command invocations
	Calls []MockCall
}

// MockCall represents a single command invocation
type MockCall struct {
	Name string
	Args []string
	Dir  string
}

// Run executes the mock function
func (m *MockCommandRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return m.RunInDir(ctx, "", name, args...)
}

// RunInDir executes the mock function with directory context
func (m *MockCommandRunner) RunInDir(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	m.Calls = append(m.Calls, MockCall{Name: name, Args: args, Dir: dir})

	if m.RunFunc != nil {
		return m.RunFunc(dir, name, args...)
	}

	return []byte(""), nil
}

// NewMockCommandRunner creates a new mock with default behavior
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{
		Calls: make([]MockCall, 0),
	}
}
