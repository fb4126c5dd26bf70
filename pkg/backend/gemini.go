package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Gemini generates text with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini makes a Gemini generator. endpoint overrides the API base URL when set.
func NewGemini(ctx context.Context, apiKey, endpoint, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if endpoint != "" {
		cfg.HTTPOptions.BaseURL = endpoint
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate sends the subject with the instruction as system instruction.
// API errors are converted to *StatusError so Classify sees the HTTP status.
func (g *Gemini) Generate(ctx context.Context, p Prompt) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if strings.TrimSpace(p.Instruction) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.Instruction, genai.RoleUser)
	}
	if p.MaxOutput > 0 {
		cfg.MaxOutputTokens = int32(p.MaxOutput) //nolint:gosec // budget comes from config, far below int32 range
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(p.Subject), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Code: apiErr.Code, Body: apiErr.Message}
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}
