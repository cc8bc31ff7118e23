package llm

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	// BaseURL overrides the API endpoint (tests).
	BaseURL string
}

// GeminiClient implements Generator over the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
	config GeminiConfig
}

func ptr[T any](v T) *T {
	return &v
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-pro"
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiClient{client: client, model: cfg.Model, config: cfg}, nil
}

// Model returns the configured model name.
func (g *GeminiClient) Model() string {
	return g.model
}

// Generate sends one prompt and returns the concatenated text parts.
func (g *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	config := &genai.GenerateContentConfig{
		Temperature: ptr(float32(g.config.Temperature)),
	}
	if g.config.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(g.config.MaxOutputTokens)
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, fmt.Errorf("gemini %s: %w", req.Stage, err)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("gemini %s: prompt blocked: %s", req.Stage, resp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("gemini %s: no candidates returned", req.Stage)
	}

	out := &Response{Text: resp.Text()}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if out.Text == "" {
		return nil, fmt.Errorf("gemini %s: empty response (finish reason %s)", req.Stage, resp.Candidates[0].FinishReason)
	}

	log.Printf("[Gemini] %s: %d prompt tokens, %d output tokens", req.Stage, out.PromptTokens, out.OutputTokens)
	return out, nil
}
