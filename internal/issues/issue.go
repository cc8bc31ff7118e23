// Package issues finds a GitHub issue worth attempting.
package issues

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cexll/firstfix/internal/github"
	gh "github.com/google/go-github/v66/github"
)

// Issue is a read-only view of a GitHub issue.
type Issue struct {
	APIURL  string
	HTMLURL string
	// Repo is "owner/repo".
	Repo          string
	Number        int
	Title         string
	Body          string
	Labels        []string
	Assignees     []string
	CommentCount  int
	Comments      []github.Comment
	Locked        bool
	IsPullRequest bool
	CreatedAt     time.Time

	// Repository is filled in by the finder once the repository was checked.
	Repository *github.Repository
}

// Key identifies the issue in the processed-issues log.
func (i *Issue) Key() string {
	if i.HTMLURL != "" {
		return i.HTMLURL
	}
	return i.APIURL
}

// String returns "owner/repo#n".
func (i *Issue) String() string {
	return fmt.Sprintf("%s#%d", i.Repo, i.Number)
}

// RepoFromURL derives "owner/repo" from an issue's repository_url
// (https://api.github.com/repos/owner/repo) or html url.
func RepoFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid repository URL %q: %w", raw, err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) >= 4 && segments[len(segments)-2] == "issues" {
		segments = segments[:len(segments)-2]
	}
	if len(segments) < 2 || segments[len(segments)-1] == "" || segments[len(segments)-2] == "" {
		return "", fmt.Errorf("cannot derive repository from %q", raw)
	}
	return segments[len(segments)-2] + "/" + segments[len(segments)-1], nil
}

// FromGitHub converts a search result item.
func FromGitHub(raw *gh.Issue) (*Issue, error) {
	if raw == nil {
		return nil, fmt.Errorf("nil issue")
	}

	source := raw.GetRepositoryURL()
	if source == "" {
		source = raw.GetHTMLURL()
	}
	repo, err := RepoFromURL(source)
	if err != nil {
		return nil, err
	}

	issue := &Issue{
		APIURL:        raw.GetURL(),
		HTMLURL:       raw.GetHTMLURL(),
		Repo:          repo,
		Number:        raw.GetNumber(),
		Title:         raw.GetTitle(),
		Body:          raw.GetBody(),
		CommentCount:  raw.GetComments(),
		Locked:        raw.GetLocked(),
		IsPullRequest: raw.IsPullRequest(),
		CreatedAt:     raw.GetCreatedAt().Time,
	}
	for _, label := range raw.Labels {
		issue.Labels = append(issue.Labels, label.GetName())
	}
	for _, user := range raw.Assignees {
		issue.Assignees = append(issue.Assignees, user.GetLogin())
	}
	if len(issue.Assignees) == 0 && raw.GetAssignee() != nil {
		issue.Assignees = append(issue.Assignees, raw.GetAssignee().GetLogin())
	}
	return issue, nil
}
