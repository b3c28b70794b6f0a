// Package backend provides the concrete speech-to-text and
// summarization adapters behind the pipeline interfaces.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline"
)

// DefaultWhisperTimeout is the default HTTP request timeout per window.
const DefaultWhisperTimeout = 5 * time.Minute

// WhisperClient implements pipeline.TranscriptionBackend against a
// whisper-asr-webservice instance. It is safe for sequential reuse
// across all windows of a run; the remote model session is loaded once
// server-side and shared across calls.
type WhisperClient struct {
	baseURL    string
	language   string
	httpClient *http.Client
	rateDelay  time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

var _ pipeline.TranscriptionBackend = (*WhisperClient)(nil)

// WhisperOption configures the WhisperClient.
type WhisperOption func(*WhisperClient)

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) WhisperOption {
	return func(c *WhisperClient) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) WhisperOption {
	return func(c *WhisperClient) {
		c.httpClient = client
	}
}

// WithLanguage pins the recognition language instead of auto-detection.
func WithLanguage(lang string) WhisperOption {
	return func(c *WhisperClient) {
		c.language = lang
	}
}

// WithRateLimitDelay enforces a minimum delay between consecutive
// requests. Quota compliance is the backend's responsibility, not the
// runner's.
func WithRateLimitDelay(d time.Duration) WhisperOption {
	return func(c *WhisperClient) {
		c.rateDelay = d
	}
}

// NewWhisperClient creates a client for the whisper-asr-webservice at baseURL.
func NewWhisperClient(baseURL string, opts ...WhisperOption) *WhisperClient {
	c := &WhisperClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultWhisperTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Transcribe sends one audio window for recognition and returns its
// text. A silent window yields empty text, never an error.
func (c *WhisperClient) Transcribe(ctx context.Context, windowPath string) (string, error) {
	if err := c.throttle(ctx); err != nil {
		return "", err
	}

	file, err := os.Open(windowPath)
	if err != nil {
		return "", &pipeline.RecognitionError{Reason: "unreadable audio window", Err: err}
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio_file", filepath.Base(windowPath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy audio data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	reqURL, err := c.buildURL()
	if err != nil {
		return "", fmt.Errorf("build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &pipeline.BackendUnavailableError{Backend: "whisper", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", &pipeline.BackendUnavailableError{Backend: "whisper", Err: apiErr}
		}
		return "", &pipeline.RecognitionError{Reason: "rejected audio window", Err: apiErr}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &pipeline.BackendUnavailableError{Backend: "whisper", Err: err}
	}

	// An empty body means the service recognized nothing (silence).
	if len(bytes.TrimSpace(data)) == 0 {
		return "", nil
	}

	var parsed whisperResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &pipeline.RecognitionError{Reason: "malformed service response", Err: err}
	}

	return strings.TrimSpace(parsed.Text), nil
}

// throttle blocks until the configured minimum inter-call delay since
// the previous request has elapsed.
func (c *WhisperClient) throttle(ctx context.Context) error {
	if c.rateDelay <= 0 {
		return nil
	}

	c.mu.Lock()
	now := time.Now()
	next := c.lastCall.Add(c.rateDelay)
	wait := next.Sub(now)
	if wait <= 0 {
		c.lastCall = now
		c.mu.Unlock()
		return nil
	}
	// Reserve the slot before sleeping so concurrent callers queue up
	// behind each other instead of all waking at once.
	c.lastCall = next
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

func (c *WhisperClient) buildURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}

	if u.Path == "" || u.Path == "/" {
		u.Path = "/asr"
	}

	q := u.Query()
	q.Set("output", "json")
	if c.language != "" && c.language != "auto" {
		q.Set("language", c.language)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// whisperResponse is the JSON payload from the whisper-asr-webservice.
type whisperResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}
