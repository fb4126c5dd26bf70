package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAI calls an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	Endpoint string // full URL, e.g. https://api.openai.com/v1/chat/completions
	Model    string
	APIKey   string
	Client   *http.Client // nil uses http.DefaultClient, the orchestrator bounds the call
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// Generate sends the instruction as the system message and the subject as the user message.
func (c *OpenAI) Generate(ctx context.Context, p Prompt) (string, error) {
	msgs := make([]chatMessage, 0, 2)
	if strings.TrimSpace(p.Instruction) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: p.Instruction})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: p.Subject})

	body, err := json.Marshal(chatRequest{Model: c.Model, Messages: msgs, MaxTokens: p.MaxOutput})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request %s: %w", c.Endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, Body: truncateBody(data)}
	}

	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if cr.Error != nil {
		// some gateways report quota errors with status 200
		if cr.Error.Type == "insufficient_quota" || strings.Contains(strings.ToLower(cr.Error.Message), "quota") {
			return "", fmt.Errorf("%s: %w", cr.Error.Message, ErrQuota)
		}
		return "", &StatusError{Code: http.StatusBadGateway, Body: cr.Error.Message}
	}
	if len(cr.Choices) == 0 {
		return "", nil
	}
	return cr.Choices[0].Message.Content, nil
}
