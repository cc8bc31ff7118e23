package testing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v66/github"
)

// Fixture is the state served by the fake GitHub API. Tests fill it before
// use and inspect the recorded requests afterwards.
type Fixture struct {
	mu sync.Mutex

	// SearchItems is returned verbatim by GET /search/issues.
	SearchItems []map[string]any
	// Comments keyed by "owner/repo#number".
	Comments map[string][]map[string]any
	// Repos keyed by "owner/repo".
	Repos map[string]map[string]any
	// ForkOwner is the login that receives forks.
	ForkOwner string
	// InstallationToken is issued by POST /app/installations/{id}/access_tokens.
	InstallationToken string

	// SearchQueries records every search query.
	SearchQueries []string
	// Forks records "owner/repo" of every fork request.
	Forks []string
	// Pulls records every created pull request body keyed by target repo.
	Pulls []CreatedPull
	// AuthHeaders records Authorization headers seen.
	AuthHeaders []string
}

// CreatedPull is a pull request creation request received by the fake.
type CreatedPull struct {
	Repo  string
	Title string
	Head  string
	Base  string
	Body  string
}

var (
	reComments = regexp.MustCompile(`^/repos/([^/]+)/([^/]+)/issues/(\d+)/comments$`)
	reRepo     = regexp.MustCompile(`^/repos/([^/]+)/([^/]+)$`)
	reForks    = regexp.MustCompile(`^/repos/([^/]+)/([^/]+)/forks$`)
	rePulls    = regexp.MustCompile(`^/repos/([^/]+)/([^/]+)/pulls$`)
	reToken    = regexp.MustCompile(`^/app/installations/(\d+)/access_tokens$`)
)

// IssueJSON builds a search result item in the shape GitHub returns.
func IssueJSON(repo string, number int, title, body string) map[string]any {
	return map[string]any{
		"number":         number,
		"title":          title,
		"body":           body,
		"state":          "open",
		"html_url":       fmt.Sprintf("https://github.com/%s/issues/%d", repo, number),
		"url":            fmt.Sprintf("https://api.github.com/repos/%s/issues/%d", repo, number),
		"repository_url": "https://api.github.com/repos/" + repo,
		"labels":         []map[string]any{{"name": "good first issue"}},
		"comments":       0,
		"locked":         false,
		"assignees":      []map[string]any{},
	}
}

// RepoJSON builds a repository payload.
func RepoJSON(fullName, defaultBranch string) map[string]any {
	owner, name, _ := strings.Cut(fullName, "/")
	return map[string]any{
		"name":           name,
		"full_name":      fullName,
		"owner":          map[string]any{"login": owner},
		"default_branch": defaultBranch,
		"clone_url":      "https://github.com/" + fullName + ".git",
		"archived":       false,
	}
}

// NewMockGitHubClient returns a go-github client backed by a local httptest
// server serving fx. The returned cleanup function must be called to close
// the server.
func NewMockGitHubClient(fx *Fixture) (*gh.Client, *httptest.Server, func()) {
	if fx.Comments == nil {
		fx.Comments = map[string][]map[string]any{}
	}
	if fx.Repos == nil {
		fx.Repos = map[string]map[string]any{}
	}

	srv := httptest.NewServer(http.HandlerFunc(fx.serve))

	client := gh.NewClient(srv.Client())
	base, _ := url.Parse(srv.URL + "/")
	client.BaseURL = base
	client.UploadURL = base

	return client, srv, srv.Close
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (fx *Fixture) serve(w http.ResponseWriter, r *http.Request) {
	fx.mu.Lock()
	defer fx.mu.Unlock()

	fx.AuthHeaders = append(fx.AuthHeaders, r.Header.Get("Authorization"))
	path := strings.TrimSuffix(r.URL.Path, "/")

	switch {
	case r.Method == http.MethodGet && path == "/search/issues":
		fx.SearchQueries = append(fx.SearchQueries, r.URL.Query().Get("q"))
		items := fx.SearchItems
		if items == nil {
			items = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"total_count":        len(items),
			"incomplete_results": false,
			"items":              items,
		})

	case r.Method == http.MethodGet && reComments.MatchString(path):
		m := reComments.FindStringSubmatch(path)
		comments := fx.Comments[m[1]+"/"+m[2]+"#"+m[3]]
		if comments == nil {
			comments = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, comments)

	case r.Method == http.MethodPost && reForks.MatchString(path):
		m := reForks.FindStringSubmatch(path)
		fx.Forks = append(fx.Forks, m[1]+"/"+m[2])
		fork := RepoJSON(fx.ForkOwner+"/"+m[2], "main")
		fork["fork"] = true
		if upstream, ok := fx.Repos[m[1]+"/"+m[2]]; ok {
			fork["default_branch"] = upstream["default_branch"]
		}
		fx.Repos[fx.ForkOwner+"/"+m[2]] = fork
		writeJSON(w, http.StatusAccepted, fork)

	case r.Method == http.MethodPost && rePulls.MatchString(path):
		m := rePulls.FindStringSubmatch(path)
		var req struct {
			Title string `json:"title"`
			Head  string `json:"head"`
			Base  string `json:"base"`
			Body  string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fx.Pulls = append(fx.Pulls, CreatedPull{
			Repo: m[1] + "/" + m[2], Title: req.Title, Head: req.Head, Base: req.Base, Body: req.Body,
		})
		number := len(fx.Pulls)
		writeJSON(w, http.StatusCreated, map[string]any{
			"number":   number,
			"html_url": fmt.Sprintf("https://github.com/%s/%s/pull/%d", m[1], m[2], number),
		})

	case r.Method == http.MethodPost && reToken.MatchString(path):
		writeJSON(w, http.StatusCreated, map[string]any{
			"token":      fx.InstallationToken,
			"expires_at": time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		})

	case r.Method == http.MethodGet && reRepo.MatchString(path):
		m := reRepo.FindStringSubmatch(path)
		repo, ok := fx.Repos[m[1]+"/"+m[2]]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
			return
		}
		writeJSON(w, http.StatusOK, repo)

	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	}
}

// Snapshot returns copies of the recorded requests.
func (fx *Fixture) Snapshot() (queries, forks []string, pulls []CreatedPull) {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return append([]string(nil), fx.SearchQueries...), append([]string(nil), fx.Forks...), append([]CreatedPull(nil), fx.Pulls...)
}
