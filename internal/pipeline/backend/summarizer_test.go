package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline"
)

func TestSummarize(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "  A short recap.  "}}]}`))
	}))
	defer server.Close()

	s := NewChatSummarizer(SummarizerConfig{
		BaseURL: server.URL,
		APIKey:  "sk-test",
		Model:   "gpt-4o-mini",
	})

	summary, err := s.Summarize(context.Background(), "window one\nwindow two")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "A short recap." {
		t.Errorf("summary = %q, want trimmed content", summary)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Content != "window one\nwindow two" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestSummarizeEmptyInputSkipsEndpoint(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	s := NewChatSummarizer(SummarizerConfig{BaseURL: server.URL})

	for _, input := range []string{"", "   ", "\n\t"} {
		summary, err := s.Summarize(context.Background(), input)
		if err != nil {
			t.Fatalf("Summarize(%q): %v", input, err)
		}
		if summary != "" {
			t.Errorf("Summarize(%q) = %q, want empty", input, summary)
		}
	}
	if called {
		t.Error("endpoint was called for empty input")
	}
}

func TestSummarizeNoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer server.Close()

	s := NewChatSummarizer(SummarizerConfig{BaseURL: server.URL})
	if _, err := s.Summarize(context.Background(), "text"); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "" {
		t.Errorf("authorization = %q, want none for local endpoints", gotAuth)
	}
}

func TestSummarizeErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
	}{
		{"server error", http.StatusServiceUnavailable, true},
		{"rate limited", http.StatusTooManyRequests, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			s := NewChatSummarizer(SummarizerConfig{BaseURL: server.URL})
			_, err := s.Summarize(context.Background(), "text")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := pipeline.IsRetryable(err); got != tt.wantRetryable {
				t.Errorf("IsRetryable = %v, want %v (err: %v)", got, tt.wantRetryable, err)
			}
		})
	}
}

func TestSummarizeConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	s := NewChatSummarizer(SummarizerConfig{BaseURL: url})
	_, err := s.Summarize(context.Background(), "text")

	var unavailable *pipeline.BackendUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %T, want BackendUnavailableError", err)
	}
	if unavailable.Backend != "summarizer" {
		t.Errorf("Backend = %q, want summarizer", unavailable.Backend)
	}
}

func TestSummarizeEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	s := NewChatSummarizer(SummarizerConfig{BaseURL: server.URL})
	if _, err := s.Summarize(context.Background(), "text"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestSummarizerConfigDefaults(t *testing.T) {
	s := NewChatSummarizer(SummarizerConfig{})

	if s.cfg.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("BaseURL = %q", s.cfg.BaseURL)
	}
	if s.cfg.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q", s.cfg.Model)
	}
	if s.cfg.Timeout == 0 {
		t.Error("Timeout not defaulted")
	}
}
