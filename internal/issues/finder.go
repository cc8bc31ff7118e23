package issues

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cexll/firstfix/internal/github"
	gh "github.com/google/go-github/v66/github"
)

// ErrNoIssue is returned when no search result passes the filters.
var ErrNoIssue = errors.New("no suitable issue found")

// claimPhrases mark an issue someone already picked up.
var claimPhrases = []string{
	"i'd like to work on",
	"i would like to work on",
	"can i work on",
	"could i work on",
	"assign me",
	"assign this to me",
	"i'm working on",
	"i am working on",
	"i will work on",
	"i'll work on",
	"working on this",
}

// GitHubAPI is the subset of the GitHub client the finder needs.
type GitHubAPI interface {
	SearchIssues(ctx context.Context, query string, limit int) ([]*gh.Issue, error)
	ListComments(ctx context.Context, repo string, number int) ([]github.Comment, error)
	GetRepository(ctx context.Context, repo string) (*github.Repository, error)
}

// ProcessedSet reports issues already handled.
type ProcessedSet interface {
	Has(url string) bool
}

// Options controls the search and the filters.
type Options struct {
	Query        string
	Limit        int
	MaxBodyChars int
	SkipRepos    []string
}

// Finder picks the first qualifying issue.
type Finder struct {
	client    GitHubAPI
	processed ProcessedSet
	opts      Options
	skip      map[string]bool
}

// NewFinder creates a Finder.
func NewFinder(client GitHubAPI, processed ProcessedSet, opts Options) *Finder {
	skip := make(map[string]bool, len(opts.SkipRepos))
	for _, repo := range opts.SkipRepos {
		skip[strings.ToLower(strings.TrimSpace(repo))] = true
	}
	return &Finder{client: client, processed: processed, opts: opts, skip: skip}
}

// Find returns the newest qualifying issue, or ErrNoIssue.
func (f *Finder) Find(ctx context.Context) (*Issue, error) {
	log.Printf("[Finder] Searching: %s", f.opts.Query)
	raw, err := f.client.SearchIssues(ctx, f.opts.Query, f.opts.Limit)
	if err != nil {
		return nil, err
	}
	log.Printf("[Finder] %d candidates", len(raw))

	for _, item := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		issue, err := FromGitHub(item)
		if err != nil {
			log.Printf("[Finder] Skipping malformed search result: %v", err)
			continue
		}

		reason, err := f.reject(ctx, issue)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("[Finder] Skipping %s: %v", issue, err)
			continue
		}
		if reason != "" {
			log.Printf("[Finder] Skipping %s: %s", issue, reason)
			continue
		}

		log.Printf("[Finder] Selected %s: %s", issue, issue.Title)
		return issue, nil
	}

	return nil, ErrNoIssue
}

// reject returns a non-empty reason when the issue should not be attempted.
// Cheap checks run first; comments and repository are fetched only for
// issues that survive them.
func (f *Finder) reject(ctx context.Context, issue *Issue) (string, error) {
	if reason := f.Filter(issue); reason != "" {
		return reason, nil
	}

	if issue.CommentCount > 0 {
		comments, err := f.client.ListComments(ctx, issue.Repo, issue.Number)
		if err != nil {
			return "", fmt.Errorf("list comments: %w", err)
		}
		issue.Comments = comments
		if c, ok := claimedBy(comments); ok {
			return fmt.Sprintf("claimed by %s", c), nil
		}
	}

	repo, err := f.client.GetRepository(ctx, issue.Repo)
	if err != nil {
		return "", fmt.Errorf("get repository: %w", err)
	}
	if repo.Archived {
		return "repository is archived", nil
	}
	issue.Repository = repo
	return "", nil
}

// Filter applies the checks that need no extra API call.
func (f *Finder) Filter(issue *Issue) string {
	switch {
	case f.processed != nil && f.processed.Has(issue.Key()):
		return "already processed"
	case issue.IsPullRequest:
		return "is a pull request"
	case issue.Locked:
		return "locked"
	case len(issue.Assignees) > 0:
		return "already assigned"
	case strings.TrimSpace(issue.Body) == "":
		return "empty body"
	case f.opts.MaxBodyChars > 0 && len(issue.Body) > f.opts.MaxBodyChars:
		return fmt.Sprintf("body too long (%d chars)", len(issue.Body))
	case f.skip[strings.ToLower(issue.Repo)]:
		return "repository in skip list"
	}
	return ""
}

func claimedBy(comments []github.Comment) (string, bool) {
	for _, c := range comments {
		body := strings.ToLower(c.Body)
		body = strings.ReplaceAll(body, "\u2019", "'")
		for _, phrase := range claimPhrases {
			if strings.Contains(body, phrase) {
				if c.Author == "" {
					return "someone", true
				}
				return c.Author, true
			}
		}
	}
	return "", false
}
