package github

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
)

// Repository is the subset of repository metadata the pipeline needs.
type Repository struct {
	FullName      string
	Owner         string
	Name          string
	DefaultBranch string
	CloneURL      string
	Archived      bool
	Fork          bool
}

// Comment is an issue comment.
type Comment struct {
	Author string
	Body   string
}

// NewPullRequest describes a pull request to open.
type NewPullRequest struct {
	Head  string // "login:branch" for cross-repository PRs
	Base  string
	Title string
	Body  string
}

// Client wraps go-github with retries and token injection.
type Client struct {
	gh *gh.Client

	maxRetries       int
	retryDelay       time.Duration
	forkPollAttempts int
	forkPollInterval time.Duration
}

// tokenTransport asks the TokenSource for a token on every request so that
// installation tokens can be refreshed transparently.
type tokenTransport struct {
	source TokenSource
	base   http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.source.Token(req.Context())
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+token)
	return t.base.RoundTrip(clone)
}

// NewClient creates a GitHub REST client authenticated by tokens.
func NewClient(tokens TokenSource, baseURL string) (*Client, error) {
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &tokenTransport{source: tokens, base: http.DefaultTransport},
	}
	client := gh.NewClient(httpClient)
	if baseURL != "" {
		base, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
		}
		client.BaseURL = base
	}
	return NewClientWithGitHub(client), nil
}

// NewClientWithGitHub wraps an existing go-github client (useful for testing)
func NewClientWithGitHub(client *gh.Client) *Client {
	return &Client{
		gh:               client,
		maxRetries:       defaultMaxRetries,
		retryDelay:       defaultInitialDelay,
		forkPollAttempts: 10,
		forkPollInterval: 3 * time.Second,
	}
}

// WithRetry overrides the retry policy.
func (c *Client) WithRetry(maxRetries int, delay time.Duration) *Client {
	c.maxRetries = maxRetries
	c.retryDelay = delay
	return c
}

// WithForkPolling overrides how long EnsureFork waits for a new fork.
func (c *Client) WithForkPolling(attempts int, interval time.Duration) *Client {
	c.forkPollAttempts = attempts
	c.forkPollInterval = interval
	return c
}

func (c *Client) retry(ctx context.Context, fn func() error) error {
	return retryWithBackoffCustom(ctx, c.maxRetries, c.retryDelay, fn)
}

// SplitRepo splits "owner/repo".
func SplitRepo(fullName string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(fullName), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo format: %q (expected owner/repo)", fullName)
	}
	return parts[0], parts[1], nil
}

// SearchIssues runs an issue search, newest first.
func (c *Client) SearchIssues(ctx context.Context, query string, limit int) ([]*gh.Issue, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	opts := &gh.SearchOptions{
		Sort:        "created",
		Order:       "desc",
		ListOptions: gh.ListOptions{PerPage: limit},
	}

	var result *gh.IssuesSearchResult
	err := c.retry(ctx, func() error {
		var callErr error
		result, _, callErr = c.gh.Search.Issues(ctx, query, opts)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}
	if result.GetIncompleteResults() {
		log.Printf("[GitHub] Search results for %q are incomplete", query)
	}
	return result.Issues, nil
}

// ListComments returns the comments on an issue (first page of 100).
func (c *Client) ListComments(ctx context.Context, repo string, number int) ([]Comment, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}

	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	var raw []*gh.IssueComment
	err = c.retry(ctx, func() error {
		var callErr error
		raw, _, callErr = c.gh.Issues.ListComments(ctx, owner, name, number, opts)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("list comments for %s#%d: %w", repo, number, err)
	}

	comments := make([]Comment, 0, len(raw))
	for _, comment := range raw {
		comments = append(comments, Comment{
			Author: comment.GetUser().GetLogin(),
			Body:   comment.GetBody(),
		})
	}
	return comments, nil
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, repo string) (*Repository, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}

	var raw *gh.Repository
	err = c.retry(ctx, func() error {
		var callErr error
		raw, _, callErr = c.gh.Repositories.Get(ctx, owner, name)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", repo, err)
	}
	return toRepository(raw), nil
}

// EnsureFork forks repo into the authenticated account and waits until the
// fork is readable. GitHub creates forks asynchronously and answers 202.
func (c *Client) EnsureFork(ctx context.Context, repo, login string) (*Repository, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}

	var fork *gh.Repository
	err = c.retry(ctx, func() error {
		var callErr error
		fork, _, callErr = c.gh.Repositories.CreateFork(ctx, owner, name, &gh.RepositoryCreateForkOptions{})
		var accepted *gh.AcceptedError
		if errors.As(callErr, &accepted) {
			return nil
		}
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("fork %s: %w", repo, err)
	}

	forkName := name
	if fork != nil && fork.GetName() != "" {
		forkName = fork.GetName()
	}
	forkOwner := login
	if fork != nil && fork.GetOwner().GetLogin() != "" {
		forkOwner = fork.GetOwner().GetLogin()
	}
	forkFullName := forkOwner + "/" + forkName

	for attempt := 0; attempt < c.forkPollAttempts; attempt++ {
		raw, _, getErr := c.gh.Repositories.Get(ctx, forkOwner, forkName)
		if getErr == nil {
			log.Printf("[GitHub] Fork %s is ready", forkFullName)
			return toRepository(raw), nil
		}
		log.Printf("[GitHub] Waiting for fork %s (%d/%d): %v", forkFullName, attempt+1, c.forkPollAttempts, getErr)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.forkPollInterval):
		}
	}

	return nil, fmt.Errorf("fork %s not available after %d attempts", forkFullName, c.forkPollAttempts)
}

// CreatePullRequest opens a pull request on repo and returns its URL.
func (c *Client) CreatePullRequest(ctx context.Context, repo string, pr NewPullRequest) (string, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return "", err
	}
	if pr.Head == "" || pr.Base == "" {
		return "", fmt.Errorf("pull request head and base are required")
	}

	req := &gh.NewPullRequest{
		Title:               gh.String(pr.Title),
		Head:                gh.String(pr.Head),
		Base:                gh.String(pr.Base),
		Body:                gh.String(pr.Body),
		MaintainerCanModify: gh.Bool(true),
	}

	// Not retried: a timed-out create may have succeeded server-side.
	created, _, err := c.gh.PullRequests.Create(ctx, owner, name, req)
	if err != nil {
		return "", fmt.Errorf("create pull request on %s: %w", repo, err)
	}
	return created.GetHTMLURL(), nil
}

func toRepository(raw *gh.Repository) *Repository {
	if raw == nil {
		return nil
	}
	return &Repository{
		FullName:      raw.GetFullName(),
		Owner:         raw.GetOwner().GetLogin(),
		Name:          raw.GetName(),
		DefaultBranch: raw.GetDefaultBranch(),
		CloneURL:      raw.GetCloneURL(),
		Archived:      raw.GetArchived(),
		Fork:          raw.GetFork(),
	}
}
