package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v66/github"
)

// TokenSource supplies the token used for GitHub API calls and git pushes.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a personal access token.
type StaticToken string

// Token returns the personal access token
func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("github token is empty")
	}
	return string(s), nil
}

// AppAuth holds GitHub App authentication configuration
type AppAuth struct {
	AppID          string
	PrivateKey     string
	InstallationID int64
	// BaseURL overrides the API endpoint (GHES or tests); empty means api.github.com.
	BaseURL string

	mu     sync.Mutex
	cached *InstallationToken
	now    func() time.Time
}

// InstallationToken represents a GitHub App installation access token
type InstallationToken struct {
	Token     string
	ExpiresAt time.Time
}

func (a *AppAuth) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

// GenerateJWT creates a JWT token for GitHub App authentication
func (a *AppAuth) GenerateJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(a.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("failed to parse private key: %w", err)
	}

	appID, err := strconv.ParseInt(a.AppID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid app ID: %w", err)
	}

	// Backdate iat to tolerate clock drift against GitHub.
	now := a.clock()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
		Issuer:    strconv.FormatInt(appID, 10),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signedToken, nil
}

// Token returns a cached installation token, refreshing it one minute before expiry.
func (a *AppAuth) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cached != nil && a.clock().Before(a.cached.ExpiresAt.Add(-time.Minute)) {
		return a.cached.Token, nil
	}

	tok, err := a.fetchInstallationToken(ctx)
	if err != nil {
		return "", err
	}
	a.cached = tok
	return tok.Token, nil
}

func (a *AppAuth) fetchInstallationToken(ctx context.Context) (*InstallationToken, error) {
	jwtToken, err := a.GenerateJWT()
	if err != nil {
		return nil, err
	}

	client := gh.NewClient(nil).WithAuthToken(jwtToken)
	if a.BaseURL != "" {
		base, err := url.Parse(a.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
		}
		client.BaseURL = base
	}

	var tok *gh.InstallationToken
	err = retryWithBackoff(ctx, func() error {
		var callErr error
		tok, _, callErr = client.Apps.CreateInstallationToken(ctx, a.InstallationID, nil)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get installation token: %w", err)
	}

	return &InstallationToken{
		Token:     tok.GetToken(),
		ExpiresAt: tok.GetExpiresAt().Time,
	}, nil
}
