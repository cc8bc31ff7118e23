package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultSearchQuery matches open "good first issue" tickets.
const DefaultSearchQuery = `is:issue is:open label:"good first issue" language:python`

// DefaultStateFile is where the processed issues log lives by default.
const DefaultStateFile = "processed_issues.json"

// Config holds all configuration for the firstfix bot
type Config struct {
	// GitHub authentication: either a personal access token or a GitHub App installation
	GitHubToken          string
	GitHubAppID          string
	GitHubPrivateKey     string
	GitHubInstallationID int64
	GitHubAPIURL         string

	// Bot identity
	GitHubUsername string
	GitAuthorEmail string

	// Issue discovery
	SearchQuery       string
	SearchLimit       int
	MaxIssueBodyChars int
	SkipRepos         []string

	// Gemini settings
	GeminiAPIKey       string
	GeminiModel        string
	LLMTemperature     float64
	LLMMaxOutputTokens int
	LLMMinInterval     time.Duration
	LLMMaxCalls        int

	// Context settings
	ContextMaxChars     int
	ContextMaxFileBytes int64

	// PromptTemplateDir optionally overrides the built-in prompt templates
	PromptTemplateDir string

	// Pipeline settings
	MaxImplementAttempts int
	StateFile            string
	WorkDir              string
	GitTimeout           time.Duration
	DryRun               bool

	// Serve mode
	Port         int
	PollInterval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	token := os.Getenv("GH_PAT")
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}

	username := strings.TrimSpace(os.Getenv("GITHUB_USERNAME"))

	cfg := &Config{
		GitHubToken:          token,
		GitHubAppID:          os.Getenv("GITHUB_APP_ID"),
		GitHubPrivateKey:     normalizePrivateKey(os.Getenv("GITHUB_PRIVATE_KEY")),
		GitHubInstallationID: int64(getEnvInt("GITHUB_INSTALLATION_ID", 0)),
		GitHubAPIURL:         getEnv("GITHUB_API_URL", "https://api.github.com/"),
		GitHubUsername:       username,
		GitAuthorEmail:       getEnv("GIT_AUTHOR_EMAIL", defaultAuthorEmail(username)),
		SearchQuery:          getEnv("SEARCH_QUERY", DefaultSearchQuery),
		SearchLimit:          getEnvInt("SEARCH_LIMIT", 30),
		MaxIssueBodyChars:    getEnvInt("MAX_ISSUE_BODY_CHARS", 6000),
		SkipRepos:            splitList(os.Getenv("SKIP_REPOS")),
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiModel:          getEnv("GEMINI_MODEL", "gemini-2.5-pro"),
		LLMTemperature:       getEnvFloat("LLM_TEMPERATURE", 0.2),
		LLMMaxOutputTokens:   getEnvInt("LLM_MAX_OUTPUT_TOKENS", 8192),
		LLMMinInterval:       time.Duration(getEnvInt("LLM_MIN_INTERVAL_SECONDS", 5)) * time.Second,
		LLMMaxCalls:          getEnvInt("LLM_MAX_CALLS", 8),
		ContextMaxChars:      getEnvInt("CONTEXT_MAX_CHARS", 300000),
		ContextMaxFileBytes:  int64(getEnvInt("CONTEXT_MAX_FILE_BYTES", 100000)),
		MaxImplementAttempts: getEnvInt("MAX_IMPLEMENT_ATTEMPTS", 2),
		StateFile:            StateFileFromEnv(),
		WorkDir:              getEnv("WORK_DIR", os.TempDir()),
		PromptTemplateDir:    os.Getenv("PROMPT_TEMPLATE_DIR"),
		GitTimeout:           time.Duration(getEnvInt("GIT_TIMEOUT_SECONDS", 300)) * time.Second,
		DryRun:               getEnvBool("DRY_RUN", false),
		Port:                 getEnvInt("PORT", 8000),
		PollInterval:         time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 3600)) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// StateFileFromEnv returns STATE_FILE or the default. It needs no other
// configuration, so read-only commands can use it without credentials.
func StateFileFromEnv() string {
	return getEnv("STATE_FILE", DefaultStateFile)
}

// UsesGitHubApp reports whether GitHub App credentials are configured.
// App mode wins when a PAT is also present.
func (c *Config) UsesGitHubApp() bool {
	return c.GitHubAppID != "" || c.GitHubPrivateKey != "" || c.GitHubInstallationID != 0
}

func defaultAuthorEmail(username string) string {
	if username == "" {
		return ""
	}
	return username + "@users.noreply.github.com"
}

func normalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimPrefix(trimmed, "\"")
		trimmed = strings.TrimSuffix(trimmed, "\"")
	}
	if strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'") {
		trimmed = strings.TrimPrefix(trimmed, "'")
		trimmed = strings.TrimSuffix(trimmed, "'")
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}

	return trimmed
}

// validate checks that all required configuration is present
func (c *Config) validate() error {
	if err := c.validateGitHubCredentials(); err != nil {
		return err
	}

	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}

	c.applyDefaults()
	return c.validateLimits()
}

func (c *Config) validateGitHubCredentials() error {
	if c.GitHubUsername == "" {
		return fmt.Errorf("GITHUB_USERNAME is required")
	}

	if c.UsesGitHubApp() {
		if c.GitHubAppID == "" {
			return fmt.Errorf("GITHUB_APP_ID is required when using GitHub App authentication")
		}
		if c.GitHubPrivateKey == "" {
			return fmt.Errorf("GITHUB_PRIVATE_KEY is required when using GitHub App authentication")
		}
		if c.GitHubInstallationID <= 0 {
			return fmt.Errorf("GITHUB_INSTALLATION_ID is required when using GitHub App authentication")
		}
		if c.GitHubToken != "" {
			log.Printf("Warning: both GH_PAT and GitHub App credentials set, using GitHub App")
		}
		return nil
	}

	if c.GitHubToken == "" {
		return fmt.Errorf("GH_PAT (or GITHUB_TOKEN) is required")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.SearchQuery == "" {
		c.SearchQuery = DefaultSearchQuery
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 30
	}
	if c.MaxIssueBodyChars <= 0 {
		c.MaxIssueBodyChars = 6000
	}
	if c.LLMMaxOutputTokens <= 0 {
		c.LLMMaxOutputTokens = 8192
	}
	if c.LLMMinInterval < 0 {
		c.LLMMinInterval = 0
	}
	if c.ContextMaxChars <= 0 {
		c.ContextMaxChars = 300000
	}
	if c.ContextMaxFileBytes <= 0 {
		c.ContextMaxFileBytes = 100000
	}
	if c.GitTimeout <= 0 {
		c.GitTimeout = 5 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Hour
	}
	if !strings.HasSuffix(c.GitHubAPIURL, "/") {
		c.GitHubAPIURL += "/"
	}
}

func (c *Config) validateLimits() error {
	if c.LLMMaxCalls <= 0 {
		return fmt.Errorf("LLM_MAX_CALLS must be greater than 0")
	}
	if c.MaxImplementAttempts <= 0 {
		return fmt.Errorf("MAX_IMPLEMENT_ATTEMPTS must be greater than 0")
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("LLM_TEMPERATURE must be between 0 and 2")
	}
	if c.StateFile == "" {
		return fmt.Errorf("STATE_FILE must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

// getEnv gets environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets environment variable as int with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
