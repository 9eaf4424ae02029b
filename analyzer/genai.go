package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KingHippopotamus/pmax-helper/config"
	"google.golang.org/genai"
)

// GenAIProvider talks to the Gemini API directly with an API key.
type GenAIProvider struct {
	client *genai.Client
	model  string
}

func NewGenAIProvider(ctx context.Context, cfg config.GeminiConfig) (*GenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("analyzer: GEMINI_API_KEY is required for the genai provider")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer: create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GenAIProvider{client: client, model: model}, nil
}

func (p *GenAIProvider) Name() string { return "gemini-api" }

func (p *GenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	})
	if err != nil {
		return "", fmt.Errorf("analyzer: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("analyzer: empty response from gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("analyzer: empty response from gemini")
	}
	return b.String(), nil
}
