// Package segment loads an audio file, normalizes its level, and splits
// it into fixed-duration windows via ffmpeg/ffprobe subprocesses.
package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline"
)

// loudnormFilter brings every source to the same reference loudness so
// recognition accuracy is not volume-dependent.
const loudnormFilter = "loudnorm=I=-16:TP=-1.5:LRA=11"

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command and captures stdout/stderr and exit code.
func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// Segmenter implements pipeline.AudioSegmenter with ffmpeg tooling.
type Segmenter struct {
	ffmpegPath  string
	ffprobePath string
	windowMs    int64
	allowed     map[string]bool
	runner      commandRunner
	mkdirTemp   func(dir, pattern string) (string, error)
	stat        func(name string) (os.FileInfo, error)
}

var _ pipeline.AudioSegmenter = (*Segmenter)(nil)

// New constructs a segmenter producing windows of windowMs duration,
// accepting only the given container formats.
func New(windowMs int, allowedFormats []string) *Segmenter {
	allowed := make(map[string]bool, len(allowedFormats))
	for _, f := range allowedFormats {
		allowed[strings.ToLower(strings.TrimPrefix(f, "."))] = true
	}

	return &Segmenter{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		windowMs:    int64(windowMs),
		allowed:     allowed,
		runner:      &execRunner{},
		mkdirTemp:   os.MkdirTemp,
		stat:        os.Stat,
	}
}

// probeFormat is the ffprobe -show_format JSON payload.
type probeFormat struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Segment probes and normalizes the source file, then returns a lazy
// window sequence. The file is rejected before any window is produced
// if its format is outside the allow-list or it cannot be read.
func (s *Segmenter) Segment(ctx context.Context, path string) (pipeline.WindowSeq, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !s.allowed[ext] {
		return nil, &pipeline.UnsupportedFormatError{Path: path, Format: ext}
	}

	info, err := s.stat(path)
	if err != nil {
		return nil, &pipeline.MissingResourceError{Path: path, Err: err}
	}
	if info.Size() == 0 {
		return nil, &pipeline.MissingResourceError{Path: path, Err: errors.New("empty file")}
	}

	totalMs, err := s.probe(ctx, path)
	if err != nil {
		return nil, err
	}
	if totalMs <= 0 {
		return nil, &pipeline.MissingResourceError{Path: path, Err: errors.New("zero audio duration")}
	}

	dir, err := s.mkdirTemp("", "spoken-segment-*")
	if err != nil {
		return nil, fmt.Errorf("create window directory: %w", err)
	}

	normalized := filepath.Join(dir, "normalized.wav")
	if err := s.normalize(ctx, path, normalized); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	return &windowSeq{
		seg:     s,
		dir:     dir,
		source:  normalized,
		totalMs: totalMs,
		nextMs:  0,
	}, nil
}

// probe reads container format and duration, enforcing the allow-list
// against what the file actually contains rather than its extension.
func (s *Segmenter) probe(ctx context.Context, path string) (int64, error) {
	res, err := s.runner.Run(ctx, s.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	)
	if err != nil {
		return 0, &pipeline.UnsupportedFormatError{Path: path, Format: strings.TrimSpace(res.Stderr)}
	}

	var pf probeFormat
	if err := json.Unmarshal([]byte(res.Stdout), &pf); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}

	if !s.formatAllowed(pf.Format.FormatName) {
		return 0, &pipeline.UnsupportedFormatError{Path: path, Format: pf.Format.FormatName}
	}

	dur, err := decimal.NewFromString(strings.TrimSpace(pf.Format.Duration))
	if err != nil {
		return 0, &pipeline.MissingResourceError{Path: path, Err: fmt.Errorf("no audio duration: %w", err)}
	}

	return dur.Mul(decimal.NewFromInt(1000)).IntPart(), nil
}

// formatAllowed matches ffprobe's comma-separated format names (e.g.
// "mov,mp4,m4a,3gp,3g2,mj2") against the allow-list.
func (s *Segmenter) formatAllowed(formatName string) bool {
	for _, name := range strings.Split(formatName, ",") {
		if s.allowed[strings.ToLower(strings.TrimSpace(name))] {
			return true
		}
	}
	return false
}

// normalize decodes the source once into a level-normalized mono 16 kHz
// WAV that every window is cut from.
func (s *Segmenter) normalize(ctx context.Context, src, dst string) error {
	res, err := s.runner.Run(ctx, s.ffmpegPath,
		"-y",
		"-i", src,
		"-af", loudnormFilter,
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		dst,
	)
	if err != nil {
		return &pipeline.UnsupportedFormatError{Path: src, Format: strings.TrimSpace(res.Stderr)}
	}
	return nil
}

// windowSeq cuts windows out of the normalized source on demand.
type windowSeq struct {
	seg     *Segmenter
	dir     string
	source  string
	totalMs int64
	nextMs  int64
	idx     int
}

// Next exports the next window to a self-contained WAV file. Returns
// nil once the sequence is exhausted.
func (w *windowSeq) Next(ctx context.Context) (pipeline.Window, error) {
	if w.nextMs >= w.totalMs {
		return nil, nil
	}

	lengthMs := w.seg.windowMs
	if remaining := w.totalMs - w.nextMs; remaining < lengthMs {
		lengthMs = remaining
	}

	out := filepath.Join(w.dir, fmt.Sprintf("window-%06d.wav", w.idx))
	res, err := w.seg.runner.Run(ctx, w.seg.ffmpegPath,
		"-y",
		"-i", w.source,
		"-ss", msToSeconds(w.nextMs),
		"-t", msToSeconds(lengthMs),
		"-c:a", "pcm_s16le",
		out,
	)
	if err != nil {
		return nil, fmt.Errorf("export window at %dms: %s: %w", w.nextMs, strings.TrimSpace(res.Stderr), err)
	}

	win := &window{startMs: w.nextMs, path: out}
	w.nextMs += lengthMs
	w.idx++
	return win, nil
}

// Close removes the normalized source and any windows not yet released.
func (w *windowSeq) Close() error {
	return os.RemoveAll(w.dir)
}

// window is one exported audio slice.
type window struct {
	startMs int64
	path    string
}

func (w *window) StartMs() int64 { return w.startMs }
func (w *window) Path() string   { return w.path }

// Close removes the window's temporary file immediately so temp buffers
// never accumulate across windows.
func (w *window) Close() error {
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// msToSeconds renders a millisecond offset as a decimal seconds string
// for ffmpeg without floating point drift.
func msToSeconds(ms int64) string {
	return decimal.NewFromInt(ms).Div(decimal.NewFromInt(1000)).String()
}
