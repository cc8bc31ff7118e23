package main

import (
	"context"
	"fmt"
	"log"

	"github.com/cexll/firstfix/internal/agent"
	"github.com/cexll/firstfix/internal/config"
	"github.com/cexll/firstfix/internal/executor"
	"github.com/cexll/firstfix/internal/github"
	"github.com/cexll/firstfix/internal/issues"
	"github.com/cexll/firstfix/internal/llm"
	"github.com/cexll/firstfix/internal/prompt"
	"github.com/cexll/firstfix/internal/repocontext"
	"github.com/cexll/firstfix/internal/state"
	"github.com/cexll/firstfix/internal/validate"
)

// app is the wired pipeline plus the pieces serve mode exposes.
type app struct {
	cfg       *config.Config
	pipeline  *executor.Pipeline
	processed *state.ProcessedIssues
}

func tokenSource(cfg *config.Config) github.TokenSource {
	if cfg.UsesGitHubApp() {
		return &github.AppAuth{
			AppID:          cfg.GitHubAppID,
			PrivateKey:     cfg.GitHubPrivateKey,
			InstallationID: cfg.GitHubInstallationID,
			BaseURL:        cfg.GitHubAPIURL,
		}
	}
	return github.StaticToken(cfg.GitHubToken)
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	auth := "personal access token"
	if cfg.UsesGitHubApp() {
		auth = "GitHub App " + cfg.GitHubAppID
	}
	log.Printf("GitHub user: %s (%s)", cfg.GitHubUsername, auth)
	log.Printf("Search query: %s", cfg.SearchQuery)
	log.Printf("Gemini model: %s, call budget %d, min interval %v", cfg.GeminiModel, cfg.LLMMaxCalls, cfg.LLMMinInterval)
	log.Printf("State file: %s", cfg.StateFile)
	if cfg.DryRun {
		log.Printf("Dry run: changes will be committed locally only")
	}

	tokens := tokenSource(cfg)
	client, err := github.NewClient(tokens, cfg.GitHubAPIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	processed, err := state.Open(cfg.StateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}

	gen, err := newGenerator(ctx, llm.GeminiConfig{
		APIKey:          cfg.GeminiAPIKey,
		Model:           cfg.GeminiModel,
		Temperature:     cfg.LLMTemperature,
		MaxOutputTokens: cfg.LLMMaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	budget := llm.NewBudget(cfg.LLMMaxCalls)
	limited := llm.NewLimited(gen, cfg.LLMMinInterval, budget)

	prompts, err := prompt.NewBuilder(cfg.PromptTemplateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}

	runner := newRunner(cfg.GitTimeout)
	finder := issues.NewFinder(client, processed, issues.Options{
		Query:        cfg.SearchQuery,
		Limit:        cfg.SearchLimit,
		MaxBodyChars: cfg.MaxIssueBodyChars,
		SkipRepos:    cfg.SkipRepos,
	})

	pipeline := executor.New(executor.Deps{
		GitHub:    client,
		Finder:    finder,
		Agent:     agent.New(limited, prompts, 0),
		Prompts:   prompts,
		Validator: validate.New(runner),
		Processed: processed,
		Runner:    runner,
		Tokens:    tokens,
		Budget:    budget,
	}, executor.Options{
		Username:    cfg.GitHubUsername,
		AuthorEmail: cfg.GitAuthorEmail,
		// App installations push to the repositories they are installed on.
		PushDirect:           cfg.UsesGitHubApp(),
		DryRun:               cfg.DryRun,
		MaxImplementAttempts: cfg.MaxImplementAttempts,
		WorkDir:              cfg.WorkDir,
		Context: repocontext.Options{
			MaxTotalChars: cfg.ContextMaxChars,
			MaxFileBytes:  cfg.ContextMaxFileBytes,
		},
		Model: cfg.GeminiModel,
	})

	return &app{cfg: cfg, pipeline: pipeline, processed: processed}, nil
}
