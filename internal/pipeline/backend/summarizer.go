package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline"
)

const summaryPrompt = "Summarize the following transcript in a few sentences. Reply with the summary only."

// SummarizerConfig holds the chat-completions endpoint configuration.
type SummarizerConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultSummarizerConfig returns defaults for an OpenAI-compatible endpoint.
func DefaultSummarizerConfig() SummarizerConfig {
	return SummarizerConfig{
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Timeout: 120 * time.Second,
	}
}

// ChatSummarizer implements pipeline.SummarizationBackend against any
// OpenAI-compatible chat completions endpoint (hosted API or a local
// server exposing the same protocol).
type ChatSummarizer struct {
	cfg        SummarizerConfig
	httpClient *http.Client
}

var _ pipeline.SummarizationBackend = (*ChatSummarizer)(nil)

// NewChatSummarizer creates a summarizer for the configured endpoint.
// An empty API key is accepted for local endpoints that skip auth.
func NewChatSummarizer(cfg SummarizerConfig) *ChatSummarizer {
	defaults := DefaultSummarizerConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}

	return &ChatSummarizer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
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
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize condenses the full transcript into a short summary. Empty
// input returns an empty summary without calling the endpoint.
func (s *ChatSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	payload, err := json.Marshal(chatRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: summaryPrompt},
			{Role: "user", Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode summary request: %w", err)
	}

	endpoint := strings.TrimSuffix(s.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &pipeline.BackendUnavailableError{Backend: "summarizer", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", &pipeline.BackendUnavailableError{Backend: "summarizer", Err: apiErr}
		}
		return "", fmt.Errorf("summarization rejected: %w", apiErr)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode summary response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("summary response contained no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
