package github

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	nowFunc         = time.Now
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
)

func sanitizeToken(token string) string {
	token = strings.ToLower(token)
	token = nonAlphanumeric.ReplaceAllString(token, "-")
	token = strings.Trim(token, "-")
	if token == "" {
		return "unknown"
	}
	return token
}

// AuthenticatedURL embeds credentials into an https clone URL.
func AuthenticatedURL(cloneURL, username, token string) (string, error) {
	u, err := url.Parse(cloneURL)
	if err != nil {
		return "", fmt.Errorf("invalid clone URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("unsupported clone URL scheme %q", u.Scheme)
	}
	if username == "" {
		username = "x-access-token"
	}
	u.User = url.UserPassword(username, token)
	return u.String(), nil
}

func buildCloneWorkdir(parent, repo string, number int, ts time.Time) string {
	ownerSegment := "unknown"
	repoSegment := "repo"

	if parts := strings.Split(repo, "/"); len(parts) == 2 {
		ownerSegment = sanitizeToken(parts[0])
		repoSegment = sanitizeToken(parts[1])
	} else {
		ownerSegment = sanitizeToken(repo)
	}

	if parent == "" {
		parent = os.TempDir()
	}
	dirName := fmt.Sprintf("firstfix-%s-%s-issue-%d-%d", ownerSegment, repoSegment, number, ts.UnixNano())
	return filepath.Join(parent, dirName)
}

// Clone shallow-clones remoteURL at branch into a fresh directory under parent.
// Returns: workdir path, cleanup function, error.
func Clone(ctx context.Context, runner CommandRunner, parent, repo string, number int, remoteURL, branch string) (string, func(), error) {
	dest := buildCloneWorkdir(parent, repo, number, nowFunc())

	err := retryWithBackoff(ctx, func() error {
		// A failed attempt may leave a partial checkout behind.
		_ = os.RemoveAll(dest)
		args := []string{"clone", "--depth=1", "--single-branch"}
		if branch != "" {
			args = append(args, "-b", branch)
		}
		args = append(args, remoteURL, dest)
		output, err := runner.Run(ctx, "git", args...)
		if err != nil {
			return fmt.Errorf("git clone failed: %s\nOutput: %s", RedactSecrets(err.Error()), RedactSecrets(string(output)))
		}
		return nil
	})
	if err != nil {
		_ = os.RemoveAll(dest)
		return "", nil, err
	}

	cleanup := func() {
		if err := os.RemoveAll(dest); err != nil {
			log.Printf("Warning: failed to cleanup %s: %v", dest, err)
		}
	}

	return dest, cleanup, nil
}
