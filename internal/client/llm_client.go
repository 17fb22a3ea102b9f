package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

// LLMClient calls an OpenAI-compatible chat-completions endpoint used to
// phrase assistant replies. The query engine never depends on it for
// correctness; callers fall back to template text when it fails.
type LLMClient struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewLLMClient(endpoint, apiKey, model string) *LLMClient {
	return &LLMClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *LLMClient) Configured() bool {
	return c.endpoint != "" && c.apiKey != ""
}

func (c *LLMClient) Complete(ctx context.Context, system string, messages []ChatMessage) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("assistant endpoint is not configured")
	}

	all := make([]ChatMessage, 0, len(messages)+1)
	if system != "" {
		all = append(all, ChatMessage{Role: "system", Content: system})
	}
	all = append(all, messages...)

	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    all,
		Temperature: 0.7,
		MaxTokens:   2048,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assistant endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("assistant endpoint returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
