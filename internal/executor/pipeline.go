// Package executor runs the end-to-end pipeline for a single issue.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cexll/firstfix/internal/agent"
	"github.com/cexll/firstfix/internal/github"
	"github.com/cexll/firstfix/internal/github/branch"
	"github.com/cexll/firstfix/internal/issues"
	"github.com/cexll/firstfix/internal/llm"
	"github.com/cexll/firstfix/internal/prompt"
	"github.com/cexll/firstfix/internal/repocontext"
	"github.com/cexll/firstfix/internal/state"
)

// Status is the final state of a run.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
	StatusDryRun   Status = "dry_run"
	StatusPROpened Status = "pr_opened"
)

// GitHubAPI is the subset of the GitHub client the pipeline needs.
type GitHubAPI interface {
	GetRepository(ctx context.Context, repo string) (*github.Repository, error)
	EnsureFork(ctx context.Context, repo, login string) (*github.Repository, error)
	CreatePullRequest(ctx context.Context, repo string, pr github.NewPullRequest) (string, error)
}

// IssueFinder selects the issue to work on.
type IssueFinder interface {
	Find(ctx context.Context) (*issues.Issue, error)
}

// Stages runs the model-driven steps.
type Stages interface {
	Classify(ctx context.Context, issue *issues.Issue, rc *repocontext.RepoContext) (*agent.Classification, error)
	Plan(ctx context.Context, issue *issues.Issue, rc *repocontext.RepoContext) (*agent.Plan, error)
	Implement(ctx context.Context, issue *issues.Issue, rc *repocontext.RepoContext, plan *agent.Plan, feedback string, attempt int) (*agent.Implementation, error)
	Critique(ctx context.Context, issue *issues.Issue, plan *agent.Plan, impl *agent.Implementation) (*agent.Critique, error)
}

// Validator checks written files.
type Validator interface {
	Validate(ctx context.Context, root string, paths []string) error
}

// ProcessedLog records handled issues.
type ProcessedLog interface {
	Add(url string, outcome state.Outcome, detail, pullRequest string) (bool, error)
}

// RunRecorder receives the progress of one run.
type RunRecorder interface {
	Log(level, message string)
	Issue(url, repo string, number int, title string)
}

type nopRecorder struct{}

func (nopRecorder) Log(string, string)                {}
func (nopRecorder) Issue(string, string, int, string) {}

// CloneFunc clones a repository; github.Clone is the production implementation.
type CloneFunc func(ctx context.Context, runner github.CommandRunner, parent, repo string, number int, remoteURL, branch string) (string, func(), error)

// Deps are the collaborators of a Pipeline.
type Deps struct {
	GitHub    GitHubAPI
	Finder    IssueFinder
	Agent     Stages
	Prompts   *prompt.Builder
	Validator Validator
	Processed ProcessedLog
	Runner    github.CommandRunner
	Tokens    github.TokenSource
	// Budget is reset at the start of every run; optional.
	Budget *llm.Budget
}

// Options configure a Pipeline.
type Options struct {
	Username    string
	AuthorEmail string
	// PushDirect pushes branches to the upstream repository instead of a fork.
	PushDirect           bool
	DryRun               bool
	MaxImplementAttempts int
	WorkDir              string
	Context              repocontext.Options
	Model                string
}

// Result describes a finished run.
type Result struct {
	Status         Status
	Issue          *issues.Issue
	Reason         string
	Classification *agent.Classification
	Files          []string
	Attempts       int
	Branch         string
	PRURL          string
	Usage          llm.Usage
}

// Pipeline processes at most one issue per run.
type Pipeline struct {
	deps  Deps
	opts  Options
	clone CloneFunc
}

// New creates a Pipeline.
func New(deps Deps, opts Options) *Pipeline {
	if opts.MaxImplementAttempts < 1 {
		opts.MaxImplementAttempts = 1
	}
	return &Pipeline{deps: deps, opts: opts, clone: github.Clone}
}

// WithCloneFunc overrides how repositories are cloned (tests).
func (p *Pipeline) WithCloneFunc(fn CloneFunc) *Pipeline {
	p.clone = fn
	return p
}

// RunOnce runs the pipeline without a recorder.
func (p *Pipeline) RunOnce(ctx context.Context) (*Result, error) {
	return p.Run(ctx, nil)
}

// Run finds one issue and tries to resolve it. A run that ends in a skip
// returns a Result with StatusSkipped and a nil error. Every selected issue
// is recorded in the processed log unless ctx was cancelled.
func (p *Pipeline) Run(ctx context.Context, rec RunRecorder) (*Result, error) {
	if rec == nil {
		rec = nopRecorder{}
	}
	if p.deps.Budget != nil {
		p.deps.Budget.Reset()
	}

	rec.Log("info", "Searching for issues")
	issue, err := p.deps.Finder.Find(ctx)
	if errors.Is(err, issues.ErrNoIssue) {
		log.Printf("[Pipeline] No suitable issue found")
		rec.Log("info", "No suitable issue found")
		return &Result{Status: StatusIdle}, nil
	}
	if err != nil {
		rec.Log("error", "Issue search failed: "+err.Error())
		return &Result{Status: StatusFailed, Reason: err.Error()}, stageErr(StageFind, err)
	}

	log.Printf("[Pipeline] Processing %s (%s)", issue, issue.HTMLURL)
	rec.Issue(issue.Key(), issue.Repo, issue.Number, issue.Title)
	rec.Log("info", fmt.Sprintf("Selected %s: %s", issue, issue.Title))

	result := &Result{Issue: issue}
	runErr := p.process(ctx, issue, result, rec)
	if p.deps.Budget != nil {
		result.Usage = p.deps.Budget.Usage()
	}

	outcome := state.OutcomeFailed
	switch {
	case runErr == nil && p.opts.DryRun:
		result.Status = StatusDryRun
		outcome = state.OutcomeDryRun
	case runErr == nil:
		result.Status = StatusPROpened
		outcome = state.OutcomePROpened
	case IsSkip(runErr):
		var skip *SkipError
		errors.As(runErr, &skip)
		result.Status = StatusSkipped
		result.Reason = skip.Reason
		outcome = state.OutcomeSkipped
		log.Printf("[Pipeline] Skipped %s at %s: %s", issue, skip.Stage, skip.Reason)
		rec.Log("info", "Skipped: "+skip.Reason)
	default:
		result.Status = StatusFailed
		result.Reason = github.RedactSecrets(runErr.Error())
		log.Printf("[Pipeline] Failed %s: %s", issue, result.Reason)
		rec.Log("error", "Failed: "+result.Reason)
	}

	if ctx.Err() != nil {
		// Cancelled runs are retried next time.
		return result, ctx.Err()
	}

	if _, err := p.deps.Processed.Add(issue.Key(), outcome, result.Reason, result.PRURL); err != nil {
		log.Printf("[Pipeline] Warning: failed to record %s: %v", issue, err)
		return result, errors.Join(skipless(runErr), stageErr(StageRecord, err))
	}

	return result, skipless(runErr)
}

func skipless(err error) error {
	if IsSkip(err) {
		return nil
	}
	return err
}

func (p *Pipeline) process(ctx context.Context, issue *issues.Issue, result *Result, rec RunRecorder) error {
	upstream := issue.Repository
	if upstream == nil {
		var err error
		upstream, err = p.deps.GitHub.GetRepository(ctx, issue.Repo)
		if err != nil {
			return stageErr(StageRepo, err)
		}
	}
	baseBranch := upstream.DefaultBranch
	if baseBranch == "" {
		baseBranch = "main"
	}

	token, err := p.deps.Tokens.Token(ctx)
	if err != nil {
		return stageErr(StageRepo, fmt.Errorf("get token: %w", err))
	}

	// Push target: upstream when the bot may push there, a fork otherwise.
	pushRepo := upstream
	fork := false
	if !p.opts.DryRun && !p.canPushUpstream(upstream) {
		rec.Log("info", "Forking "+issue.Repo)
		pushRepo, err = p.deps.GitHub.EnsureFork(ctx, issue.Repo, p.opts.Username)
		if err != nil {
			return stageErr(StageRepo, err)
		}
		fork = true
	}

	cloneURL, err := github.AuthenticatedURL(cloneURLOf(upstream, issue.Repo), "", token)
	if err != nil {
		return stageErr(StageClone, err)
	}
	rec.Log("info", fmt.Sprintf("Cloning %s@%s", issue.Repo, baseBranch))
	workdir, cleanup, err := p.clone(ctx, p.deps.Runner, p.opts.WorkDir, issue.Repo, issue.Number, cloneURL, baseBranch)
	if err != nil {
		return stageErr(StageClone, err)
	}
	defer cleanup()

	rc, err := repocontext.Build(workdir, p.opts.Context)
	if err != nil {
		return stageErr(StageContext, err)
	}
	rec.Log("info", fmt.Sprintf("Collected %d files (%d chars)", len(rc.Files), rc.Chars))

	classification, err := p.deps.Agent.Classify(ctx, issue, rc)
	if err != nil {
		return stageErr(StageClassify, err)
	}
	result.Classification = classification
	rec.Log("info", fmt.Sprintf("Classified as %s (feasible=%v)", classification.Category, classification.Feasible))
	if !classification.Feasible {
		reason := classification.Reason
		if reason == "" {
			reason = "classified as not feasible"
		}
		return &SkipError{Stage: StageClassify, Reason: reason}
	}

	plan, err := p.deps.Agent.Plan(ctx, issue, rc)
	if err != nil {
		return stageErr(StagePlan, err)
	}
	if plan.Empty() {
		return &SkipError{Stage: StagePlan, Reason: "plan selected no existing files"}
	}
	rec.Log("info", "Plan: "+strings.Join(plan.Files, ", "))

	impl, critique, err := p.implement(ctx, issue, rc, plan, result, rec)
	if err != nil {
		return err
	}
	result.Files = impl.Paths()

	if err := writeChanges(workdir, impl.Changes); err != nil {
		return stageErr(StageWrite, err)
	}
	if err := p.deps.Validator.Validate(ctx, workdir, result.Files); err != nil {
		return stageErr(StageValidate, err)
	}
	rec.Log("info", "Validated "+strings.Join(result.Files, ", "))

	git := &gitRepo{runner: p.deps.Runner, dir: workdir}
	changed, err := git.hasChanges(ctx)
	if err != nil {
		return stageErr(StageCommit, err)
	}
	if !changed {
		return &SkipError{Stage: StageCommit, Reason: "changes produced no diff"}
	}

	result.Branch = branch.GenerateBranchName(issue.Number, issue.Title)
	if err := git.commit(ctx, p.opts.Username, p.opts.AuthorEmail, result.Branch, prompt.CommitMessage(issue)); err != nil {
		return stageErr(StageCommit, err)
	}
	rec.Log("info", "Committed on "+result.Branch)

	if p.opts.DryRun {
		log.Printf("[Pipeline] Dry run: not pushing %s or opening a pull request", result.Branch)
		rec.Log("info", "Dry run: push and pull request skipped")
		return nil
	}

	pushURL, err := github.AuthenticatedURL(cloneURLOf(pushRepo, pushRepo.FullName), "", token)
	if err != nil {
		return stageErr(StagePush, err)
	}
	if err := git.push(ctx, pushURL, result.Branch); err != nil {
		return stageErr(StagePush, err)
	}
	rec.Log("info", "Pushed "+result.Branch+" to "+pushRepo.FullName)

	head := result.Branch
	if fork {
		head = pushRepo.Owner + ":" + result.Branch
	}
	body, err := p.deps.Prompts.PullRequestBody(issue, prompt.PullRequestInput{
		Category:  classification.Category,
		Rationale: plan.Rationale,
		Summary:   impl.Summary,
		Files:     result.Files,
		Critique:  critiqueNotes(critique),
		Model:     p.opts.Model,
	})
	if err != nil {
		return stageErr(StagePR, err)
	}
	prURL, err := p.deps.GitHub.CreatePullRequest(ctx, issue.Repo, github.NewPullRequest{
		Head:  head,
		Base:  baseBranch,
		Title: prompt.PullRequestTitle(issue),
		Body:  body,
	})
	if err != nil {
		return stageErr(StagePR, err)
	}
	result.PRURL = prURL
	log.Printf("[Pipeline] Opened %s", prURL)
	rec.Log("success", "Opened "+prURL)
	return nil
}

// implement runs implement → critique, retrying with the critic's feedback
// while attempts remain.
func (p *Pipeline) implement(ctx context.Context, issue *issues.Issue, rc *repocontext.RepoContext, plan *agent.Plan, result *Result, rec RunRecorder) (*agent.Implementation, *agent.Critique, error) {
	feedback := ""
	for attempt := 1; attempt <= p.opts.MaxImplementAttempts; attempt++ {
		result.Attempts = attempt
		last := attempt == p.opts.MaxImplementAttempts

		impl, err := p.deps.Agent.Implement(ctx, issue, rc, plan, feedback, attempt)
		if errors.Is(err, agent.ErrNoChanges) && !last {
			rec.Log("info", fmt.Sprintf("Attempt %d produced no usable changes", attempt))
			feedback = "The previous response contained no usable file changes. Return complete file contents in the required format."
			continue
		}
		if err != nil {
			return nil, nil, stageErr(StageImplement, err)
		}

		critique, err := p.deps.Agent.Critique(ctx, issue, plan, impl)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, llm.ErrBudgetExhausted) {
				return nil, nil, stageErr(StageCritique, err)
			}
			log.Printf("[Pipeline] Warning: critique failed, continuing without review: %v", err)
			return impl, nil, nil
		}
		if critique.Approved {
			rec.Log("info", fmt.Sprintf("Attempt %d approved by critic", attempt))
			return impl, critique, nil
		}

		rec.Log("info", fmt.Sprintf("Attempt %d rejected: %s", attempt, critique.FeedbackText()))
		if last {
			reason := "critic rejected the change"
			if fb := critique.FeedbackText(); fb != "" {
				reason += ": " + fb
			}
			return nil, nil, &SkipError{Stage: StageCritique, Reason: reason}
		}
		feedback = critique.FeedbackText()
	}
	// Unreachable: the last attempt always returns.
	return nil, nil, stageErr(StageImplement, agent.ErrNoChanges)
}

func (p *Pipeline) canPushUpstream(upstream *github.Repository) bool {
	return p.opts.PushDirect || strings.EqualFold(upstream.Owner, p.opts.Username)
}

func cloneURLOf(repo *github.Repository, fullName string) string {
	if repo != nil && repo.CloneURL != "" {
		return repo.CloneURL
	}
	return "https://github.com/" + fullName + ".git"
}

func critiqueNotes(c *agent.Critique) string {
	if c == nil || c.Unparsed {
		return ""
	}
	return c.FeedbackText()
}
