package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"ms-bookworks/internal/config"
	"ms-bookworks/internal/logger"
)

// TextClient calls a chat-completions style text generation API.
type TextClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *logger.Logger
}

func NewTextClient(cfg config.TextGenConfig, client *http.Client, log *logger.Logger) *TextClient {
	if client == nil {
		client = &http.Client{}
	}
	return &TextClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  client,
		logger:  log,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *TextClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal text request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create text request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("text generation service error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read text response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("text generation service returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode text response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("text generation error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("text generation returned no choices")
	}

	text := StripMarkup(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("text generation returned empty content")
	}
	return text, nil
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// StripMarkup removes markup tags and collapses whitespace so only plain
// prose reaches the compositing engine.
func StripMarkup(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = strings.NewReplacer("**", "", "__", "", " ", " ").Replace(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
