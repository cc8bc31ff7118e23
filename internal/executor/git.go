package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/cexll/firstfix/internal/github"
)

type gitRepo struct {
	runner github.CommandRunner
	dir    string
}

func (g *gitRepo) run(ctx context.Context, args ...string) (string, error) {
	out, err := g.runner.RunInDir(ctx, g.dir, "git", args...)
	if err != nil {
		return "", fmt.Errorf("git %s failed: %s\nOutput: %s",
			github.RedactSecrets(strings.Join(args, " ")),
			github.RedactSecrets(err.Error()),
			github.RedactSecrets(string(out)))
	}
	return string(out), nil
}

// hasChanges reports whether the working tree differs from HEAD.
func (g *gitRepo) hasChanges(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// commit creates branch and commits all changes on it.
func (g *gitRepo) commit(ctx context.Context, name, email, branch, message string) error {
	commands := [][]string{
		{"config", "user.name", name},
		{"config", "user.email", email},
		{"checkout", "-b", branch},
		{"add", "-A"},
		{"commit", "-m", message},
	}
	for _, args := range commands {
		if _, err := g.run(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

// push pushes branch to remoteURL.
func (g *gitRepo) push(ctx context.Context, remoteURL, branch string) error {
	_, err := g.run(ctx, "push", remoteURL, "HEAD:refs/heads/"+branch)
	return err
}
