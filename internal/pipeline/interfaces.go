// Package pipeline defines the transcription pipeline: the job runner
// state machine, the interfaces its collaborators implement, and the
// error taxonomy shared by all of them.
package pipeline

import (
	"context"
	"time"
)

// FileRecord is one uploaded audio file tracked by the durable store.
type FileRecord struct {
	ID        string
	Name      string
	Path      string
	Hash      string
	Status    Status
	Summary   string
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SegmentRecord is the persisted transcript for one window, tagged with
// its start offset from the beginning of the file.
type SegmentRecord struct {
	ID        string
	FileID    string
	StartMs   int64
	Text      string
	CreatedAt time.Time
}

// Repository is the persistence façade the runner writes through. All
// writes are immediately durable so status reflects true progress even
// if the process terminates unexpectedly.
type Repository interface {
	// ClaimPending atomically moves the file from pending to
	// in_progress. Exactly one of N racing claimants wins; the rest
	// observe claimed == false.
	ClaimPending(ctx context.Context, fileID string) (claimed bool, err error)
	ListPending(ctx context.Context) ([]string, error)
	GetFile(ctx context.Context, fileID string) (FileRecord, error)
	SetStatus(ctx context.Context, fileID string, status Status) error
	// MarkFailed transitions to failed and records the operator-facing
	// diagnostic on the file record.
	MarkFailed(ctx context.Context, fileID string, reason string) error
	// AppendSegment persists one window's transcript. A duplicate
	// offset from a retried run overwrites the earlier text, so a file
	// never carries two conflicting segments for the same offset.
	AppendSegment(ctx context.Context, fileID string, startMs int64, text string) error
	SetSummary(ctx context.Context, fileID string, text string) error
	ListSegments(ctx context.Context, fileID string) ([]SegmentRecord, error)
}

// TranscriptionBackend converts one exported audio window to text. A
// silent window yields empty text, never an error.
type TranscriptionBackend interface {
	Transcribe(ctx context.Context, windowPath string) (string, error)
}

// SummarizationBackend condenses the concatenated transcript. Empty
// input yields an empty summary without an error.
type SummarizationBackend interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// AudioSegmenter loads, normalizes and splits a source file into
// fixed-duration windows.
type AudioSegmenter interface {
	Segment(ctx context.Context, path string) (WindowSeq, error)
}

// WindowSeq lazily yields windows in ascending offset order. Windows
// are contiguous and non-overlapping; the last one may be shorter.
type WindowSeq interface {
	// Next returns the next window, or nil once the sequence is
	// exhausted. The caller owns the returned window and must Close it.
	Next(ctx context.Context) (Window, error)
	// Close releases everything the sequence still holds.
	Close() error
}

// Window is one self-contained audio slice, exportable to a stateless
// backend with no streaming state carried across windows.
type Window interface {
	// StartMs is the window's offset from the start of the file.
	StartMs() int64
	// Path points at the exported audio buffer on disk.
	Path() string
	// Close releases the window-scoped temporary resource.
	Close() error
}
