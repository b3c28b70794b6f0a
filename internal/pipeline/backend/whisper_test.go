package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline"
)

func windowFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "window-000000.wav")
	if err := os.WriteFile(path, []byte("RIFF fake window"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestWhisperTranscribe(t *testing.T) {
	var gotPath, gotQuery, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotContentType = r.Header.Get("Content-Type")

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("audio_file"); err != nil {
			t.Errorf("audio_file part missing: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "  hello from the window  ", "language": "en"}`))
	}))
	defer server.Close()

	client := NewWhisperClient(server.URL, WithLanguage("en"))

	text, err := client.Transcribe(context.Background(), windowFixture(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello from the window" {
		t.Errorf("text = %q, want trimmed transcript", text)
	}
	if gotPath != "/asr" {
		t.Errorf("path = %q, want /asr", gotPath)
	}
	if gotQuery == "" || !strings.Contains(gotQuery, "output=json") || !strings.Contains(gotQuery, "language=en") {
		t.Errorf("query = %q, want output=json and language=en", gotQuery)
	}
	if gotContentType == "" || !strings.Contains(gotContentType, "multipart/form-data") {
		t.Errorf("content type = %q", gotContentType)
	}
}

func TestWhisperAutoLanguageOmitsParam(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"text": "ok"}`))
	}))
	defer server.Close()

	client := NewWhisperClient(server.URL, WithLanguage("auto"))
	if _, err := client.Transcribe(context.Background(), windowFixture(t)); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(gotQuery, "language=") {
		t.Errorf("query = %q, auto must not pin a language", gotQuery)
	}
}

func TestWhisperEmptyBodyMeansSilence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewWhisperClient(server.URL)
	text, err := client.Transcribe(context.Background(), windowFixture(t))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty for silent window", text)
	}
}

func TestWhisperErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
	}{
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"rate limited", http.StatusTooManyRequests, true},
		{"bad request", http.StatusBadRequest, false},
		{"unprocessable", http.StatusUnprocessableEntity, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			client := NewWhisperClient(server.URL)
			_, err := client.Transcribe(context.Background(), windowFixture(t))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := pipeline.IsRetryable(err); got != tt.wantRetryable {
				t.Errorf("IsRetryable = %v, want %v (err: %v)", got, tt.wantRetryable, err)
			}
		})
	}
}

func TestWhisperConnectionRefusedIsRetryable(t *testing.T) {
	// A started then closed server guarantees a free port that refuses
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewWhisperClient(url)
	_, err := client.Transcribe(context.Background(), windowFixture(t))
	if err == nil {
		t.Fatal("expected error")
	}

	var unavailable *pipeline.BackendUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %T, want BackendUnavailableError", err)
	}
	if unavailable.Backend != "whisper" {
		t.Errorf("Backend = %q, want whisper", unavailable.Backend)
	}
}

func TestWhisperUnreadableWindow(t *testing.T) {
	client := NewWhisperClient("http://localhost:9")

	_, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "gone.wav"))
	var rerr *pipeline.RecognitionError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want RecognitionError", err)
	}
}

func TestWhisperMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := NewWhisperClient(server.URL)
	_, err := client.Transcribe(context.Background(), windowFixture(t))
	var rerr *pipeline.RecognitionError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want RecognitionError", err)
	}
	if pipeline.IsRetryable(err) {
		t.Error("malformed response must not be retryable")
	}
}

func TestWhisperRateLimitDelaysConsecutiveCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": "ok"}`))
	}))
	defer server.Close()

	const delay = 60 * time.Millisecond
	client := NewWhisperClient(server.URL, WithRateLimitDelay(delay))
	win := windowFixture(t)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.Transcribe(context.Background(), win); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	// Three calls means at least two enforced gaps
	if elapsed := time.Since(start); elapsed < 2*delay {
		t.Errorf("3 calls took %v, want at least %v", elapsed, 2*delay)
	}
}

func TestWhisperRateLimitFirstCallImmediate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": "ok"}`))
	}))
	defer server.Close()

	// A fresh client has no previous call to space out from
	client := NewWhisperClient(server.URL, WithRateLimitDelay(time.Second))

	start := time.Now()
	if _, err := client.Transcribe(context.Background(), windowFixture(t)); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed >= time.Second {
		t.Errorf("first call waited %v, want no delay", elapsed)
	}
}

func TestWhisperThrottleHonorsCancellation(t *testing.T) {
	client := NewWhisperClient("http://localhost:9", WithRateLimitDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	win := windowFixture(t)

	// First call sets lastCall, second would wait an hour
	client.throttle(ctx)

	cancel()
	_, err := client.Transcribe(ctx, win)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

