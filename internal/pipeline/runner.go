package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/logging"
)

// failureTimeout bounds the status write that records a failure, which
// must go through even when the run's own context is already cancelled.
const failureTimeout = 5 * time.Second

// Runner drives one file through segmentation, per-window recognition,
// persistence, and summarization. It is the single writer of status
// transitions: no other component sets status directly.
type Runner struct {
	repo          Repository
	segmenter     AudioSegmenter
	transcriber   TranscriptionBackend
	summarizer    SummarizationBackend
	logger        logging.Logger
	retryAttempts int
	retryBackoff  time.Duration
}

// RunnerOption configures the Runner.
type RunnerOption func(*Runner)

// WithRetryAttempts sets how many times a transient backend failure is
// retried before the window degrades to empty text.
func WithRetryAttempts(n int) RunnerOption {
	return func(r *Runner) {
		r.retryAttempts = n
	}
}

// WithRetryBackoff sets the initial delay for exponential backoff
// between retries.
func WithRetryBackoff(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.retryBackoff = d
	}
}

// NewRunner creates a runner over the given collaborators. Backends are
// caller-supplied so their model/client lifecycle (load once, reuse
// across files, dispose on shutdown) stays with the caller.
func NewRunner(repo Repository, segmenter AudioSegmenter, transcriber TranscriptionBackend, summarizer SummarizationBackend, logger logging.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		repo:          repo,
		segmenter:     segmenter,
		transcriber:   transcriber,
		summarizer:    summarizer,
		logger:        logger,
		retryAttempts: DefaultRetryAttempts,
		retryBackoff:  time.Duration(DefaultRetryBackoffMs) * time.Millisecond,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Process runs the full pipeline for one file. It first claims the
// file; if the file is no longer pending the call is a no-op, which
// makes concurrent dispatch of the same id safe. Once claimed, the file
// always leaves in one of the terminal states: the runner never returns
// with a file it owns still in_progress.
func (r *Runner) Process(ctx context.Context, fileID string) (err error) {
	claimed, claimErr := r.repo.ClaimPending(ctx, fileID)
	if claimErr != nil {
		return &PersistenceError{Op: "claim", Err: claimErr}
	}
	if !claimed {
		r.logger.Debug("file not pending, skipping", logging.String("file_id", fileID))
		return nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline panic: %v", rec)
			r.fail(fileID, err)
		}
	}()

	start := time.Now()
	if runErr := r.run(ctx, fileID); runErr != nil {
		r.logger.Error("file processing failed", runErr,
			logging.String("file_id", fileID),
		)
		r.fail(fileID, runErr)
		return runErr
	}

	if statusErr := r.repo.SetStatus(ctx, fileID, StatusDone); statusErr != nil {
		perr := &PersistenceError{Op: "finalize status", Err: statusErr}
		r.fail(fileID, perr)
		return perr
	}

	r.logger.Info("file processing complete",
		logging.String("file_id", fileID),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// run executes steps 3-5 of the state machine: resolve the audio
// handle, transcribe window by window with per-window persistence, then
// summarize the accumulated text.
func (r *Runner) run(ctx context.Context, fileID string) error {
	rec, err := r.repo.GetFile(ctx, fileID)
	if err != nil {
		return &PersistenceError{Op: "load file record", Err: err}
	}

	if _, err := os.Stat(rec.Path); err != nil {
		return &MissingResourceError{Path: rec.Path, Err: err}
	}

	seq, err := r.segmenter.Segment(ctx, rec.Path)
	if err != nil {
		return err
	}
	defer seq.Close()

	var transcript strings.Builder
	windows := 0
	degraded := 0

	for {
		win, err := seq.Next(ctx)
		if err != nil {
			return fmt.Errorf("segment audio: %w", err)
		}
		if win == nil {
			break
		}

		text, winErr := r.transcribeWindow(ctx, win.Path())
		if closeErr := win.Close(); closeErr != nil {
			r.logger.Error("failed to release window buffer", closeErr,
				logging.String("file_id", fileID),
				logging.Int64("offset_ms", win.StartMs()),
			)
		}

		if winErr != nil {
			// A window the backend cannot recognize, or one that
			// exhausted its retries, degrades to an empty segment.
			// Cancellation aborts the whole run instead.
			if ctx.Err() != nil {
				return winErr
			}
			r.logger.Error("window degraded to empty text", winErr,
				logging.String("file_id", fileID),
				logging.Int64("offset_ms", win.StartMs()),
			)
			text = ""
			degraded++
		}

		if err := r.repo.AppendSegment(ctx, fileID, win.StartMs(), text); err != nil {
			return &PersistenceError{Op: "append segment", Err: err}
		}

		if text != "" {
			transcript.WriteString(text)
			transcript.WriteString("\n")
		}
		windows++
	}

	summary, err := r.summarize(ctx, strings.TrimSpace(transcript.String()))
	if err != nil {
		return err
	}

	if err := r.repo.SetSummary(ctx, fileID, summary); err != nil {
		return &PersistenceError{Op: "store summary", Err: err}
	}

	r.logger.Info("transcription finished",
		logging.String("file_id", fileID),
		logging.Int("windows", windows),
		logging.Int("degraded", degraded),
	)
	return nil
}

// transcribeWindow calls the transcription backend with bounded retry
// and exponential backoff on transient failures.
func (r *Runner) transcribeWindow(ctx context.Context, windowPath string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.retryAttempts; attempt++ {
		if attempt > 0 {
			delay := r.retryBackoff * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		text, err := r.transcriber.Transcribe(ctx, windowPath)
		if err == nil {
			return text, nil
		}
		if !IsRetryable(err) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("transcription failed after %d retries: %w", r.retryAttempts, lastErr)
}

// summarize calls the summarization backend under the same retry
// policy. Unlike a window, summarization failure is fatal for the file.
func (r *Runner) summarize(ctx context.Context, text string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.retryAttempts; attempt++ {
		if attempt > 0 {
			delay := r.retryBackoff * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		summary, err := r.summarizer.Summarize(ctx, text)
		if err == nil {
			return summary, nil
		}
		if !IsRetryable(err) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("summarization failed after %d retries: %w", r.retryAttempts, lastErr)
}

// fail records the failed transition with its diagnostic. It runs on
// its own context so a cancelled run can still reach a terminal state.
func (r *Runner) fail(fileID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), failureTimeout)
	defer cancel()

	if err := r.repo.MarkFailed(ctx, fileID, cause.Error()); err != nil {
		r.logger.Error("failed to record failure, file may remain in progress", err,
			logging.String("file_id", fileID),
		)
	}
}
