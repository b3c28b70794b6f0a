// Package ingest registers local audio files with the pipeline: it
// stands in for the upload boundary, copying the binary into the media
// directory and creating the pending file record.
package ingest

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"lukechampine.com/blake3"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline"
	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/logging"
	"github.com/Rashinban1988/spokenmaterial/internal/pipeline/store"
)

// Service copies audio into the media directory and registers it.
type Service struct {
	repo     *store.SQLiteRepository
	mediaDir string
	maxBytes int64
	logger   logging.Logger
}

// New creates an ingest service storing media under mediaDir and
// rejecting files larger than maxSizeMB.
func New(repo *store.SQLiteRepository, mediaDir string, maxSizeMB int, logger logging.Logger) *Service {
	return &Service{
		repo:     repo,
		mediaDir: mediaDir,
		maxBytes: int64(maxSizeMB) * 1024 * 1024,
		logger:   logger,
	}
}

// Register ingests the file at srcPath. Files are deduplicated on their
// blake3 content hash: re-registering identical content returns the
// existing record with created == false and copies nothing.
func (s *Service) Register(ctx context.Context, srcPath string) (pipeline.FileRecord, bool, error) {
	info, err := os.Stat(srcPath)
	if err != nil {
		return pipeline.FileRecord{}, false, &pipeline.MissingResourceError{Path: srcPath, Err: err}
	}
	if info.Size() == 0 {
		return pipeline.FileRecord{}, false, &pipeline.MissingResourceError{Path: srcPath, Err: fmt.Errorf("empty file")}
	}
	if s.maxBytes > 0 && info.Size() > s.maxBytes {
		return pipeline.FileRecord{}, false, fmt.Errorf("file too large: %d bytes (limit %d)", info.Size(), s.maxBytes)
	}

	hash, err := hashFile(srcPath)
	if err != nil {
		return pipeline.FileRecord{}, false, err
	}

	if err := os.MkdirAll(s.mediaDir, 0755); err != nil {
		return pipeline.FileRecord{}, false, fmt.Errorf("create media directory: %w", err)
	}

	destPath := filepath.Join(s.mediaDir, hash+filepath.Ext(srcPath))
	if err := copyFile(srcPath, destPath); err != nil {
		return pipeline.FileRecord{}, false, err
	}

	rec, created, err := s.repo.CreateFile(ctx, filepath.Base(srcPath), destPath, hash)
	if err != nil {
		return pipeline.FileRecord{}, false, err
	}

	if created {
		s.logger.Info("file registered",
			logging.String("file_id", rec.ID),
			logging.String("name", rec.Name),
			logging.Int64("size", info.Size()),
		)
	} else {
		s.logger.Info("duplicate content, reusing existing record",
			logging.String("file_id", rec.ID),
			logging.String("name", rec.Name),
		)
	}

	return rec, created, nil
}

// hashFile computes the hex blake3 hash of the file's content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file content: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy media file: %w", err)
	}
	return out.Close()
}
