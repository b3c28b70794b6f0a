// Package store persists uploaded files and transcript segments in
// SQLite. It is the durable state the dispatcher and runner converge
// on; every write is committed before the call returns.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Rashinban1988/spokenmaterial/internal/pipeline"
)

// ErrNotFound indicates the requested file record does not exist.
var ErrNotFound = errors.New("file not found")

const schema = `
create table if not exists uploaded_files (
	id          text primary key,
	name        text not null,
	path        text not null,
	blake3_hash text not null unique,
	status      text not null default 'pending',
	summary     text not null default '',
	last_error  text not null default '',
	created_at  datetime not null,
	updated_at  datetime not null
);

create table if not exists transcript_segments (
	id         text not null,
	file_id    text not null references uploaded_files(id),
	start_ms   integer not null,
	text       text not null,
	created_at datetime not null,
	primary key (file_id, start_ms)
);
`

// SQLiteRepository implements pipeline.Repository on top of SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

var _ pipeline.Repository = (*SQLiteRepository)(nil)

// Open opens (creating if needed) the database at path and initializes
// the schema. WAL mode keeps concurrent worker writes from blocking
// reads.
func Open(path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=10000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// New wraps an existing database handle and initializes the schema.
func New(db *sql.DB) (*SQLiteRepository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Close closes the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// CreateFile registers an uploaded file in pending state. Files are
// deduplicated on their blake3 content hash: registering the same
// content twice returns the existing record with created == false.
func (r *SQLiteRepository) CreateFile(ctx context.Context, name, path, hash string) (pipeline.FileRecord, bool, error) {
	now := time.Now().UTC()
	rec := pipeline.FileRecord{
		ID:        uuid.NewString(),
		Name:      name,
		Path:      path,
		Hash:      hash,
		Status:    pipeline.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := r.db.ExecContext(ctx, `
		insert into uploaded_files (id, name, path, blake3_hash, status, created_at, updated_at)
		values (?, ?, ?, ?, ?, ?, ?)
		on conflict (blake3_hash) do nothing`,
		rec.ID, rec.Name, rec.Path, rec.Hash, rec.Status, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return pipeline.FileRecord{}, false, fmt.Errorf("create file record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return pipeline.FileRecord{}, false, fmt.Errorf("create file record: %w", err)
	}
	if n == 0 {
		existing, err := r.getFileWhere(ctx, "blake3_hash = ?", hash)
		if err != nil {
			return pipeline.FileRecord{}, false, err
		}
		return existing, false, nil
	}

	return rec, true, nil
}

// ClaimPending performs the race-safe claim: a conditional update that
// only succeeds while the row is still pending, so N racing dispatchers
// produce exactly one in_progress transition.
func (r *SQLiteRepository) ClaimPending(ctx context.Context, fileID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		update uploaded_files
		set status = ?, updated_at = ?
		where id = ? and status = ?`,
		pipeline.StatusInProgress, time.Now().UTC(), fileID, pipeline.StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("claim file: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim file: %w", err)
	}
	return n == 1, nil
}

// ListPending returns the ids of all pending files, oldest first.
func (r *SQLiteRepository) ListPending(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		select id from uploaded_files
		where status = ?
		order by created_at, id`,
		pipeline.StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending files: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list pending files: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetFile returns the record for fileID, or ErrNotFound.
func (r *SQLiteRepository) GetFile(ctx context.Context, fileID string) (pipeline.FileRecord, error) {
	return r.getFileWhere(ctx, "id = ?", fileID)
}

func (r *SQLiteRepository) getFileWhere(ctx context.Context, where string, arg any) (pipeline.FileRecord, error) {
	var rec pipeline.FileRecord
	err := r.db.QueryRowContext(ctx, `
		select id, name, path, blake3_hash, status, summary, last_error, created_at, updated_at
		from uploaded_files where `+where,
		arg,
	).Scan(&rec.ID, &rec.Name, &rec.Path, &rec.Hash, &rec.Status, &rec.Summary, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.FileRecord{}, ErrNotFound
	}
	if err != nil {
		return pipeline.FileRecord{}, fmt.Errorf("get file record: %w", err)
	}
	return rec, nil
}

// ListFiles returns all file records, newest first.
func (r *SQLiteRepository) ListFiles(ctx context.Context) ([]pipeline.FileRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		select id, name, path, blake3_hash, status, summary, last_error, created_at, updated_at
		from uploaded_files
		order by created_at desc, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var recs []pipeline.FileRecord
	for rows.Next() {
		var rec pipeline.FileRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Path, &rec.Hash, &rec.Status, &rec.Summary, &rec.LastError, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list files: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// SetStatus updates the file's status. Invalid values and illegal
// status edges are rejected before touching the row.
func (r *SQLiteRepository) SetStatus(ctx context.Context, fileID string, status pipeline.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}

	cur, err := r.GetFile(ctx, fileID)
	if err != nil {
		return err
	}
	if !pipeline.CanTransition(cur.Status, status) {
		return fmt.Errorf("illegal status transition %s -> %s", cur.Status, status)
	}

	res, err := r.db.ExecContext(ctx, `
		update uploaded_files set status = ?, last_error = '', updated_at = ? where id = ?`,
		status, time.Now().UTC(), fileID,
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkFailed transitions the file to failed and records the diagnostic.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, fileID string, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		update uploaded_files set status = ?, last_error = ?, updated_at = ? where id = ?`,
		pipeline.StatusFailed, reason, time.Now().UTC(), fileID,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendSegment persists one window's transcript. A retried run hitting
// an offset that already exists overwrites the stale text, keeping one
// row per (file, offset).
func (r *SQLiteRepository) AppendSegment(ctx context.Context, fileID string, startMs int64, text string) error {
	_, err := r.db.ExecContext(ctx, `
		insert into transcript_segments (id, file_id, start_ms, text, created_at)
		values (?, ?, ?, ?, ?)
		on conflict (file_id, start_ms) do update set text = excluded.text`,
		uuid.NewString(), fileID, startMs, text, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append segment: %w", err)
	}
	return nil
}

// SetSummary stores the whole-file summary on the file record.
func (r *SQLiteRepository) SetSummary(ctx context.Context, fileID string, text string) error {
	res, err := r.db.ExecContext(ctx, `
		update uploaded_files set summary = ?, updated_at = ? where id = ?`,
		text, time.Now().UTC(), fileID,
	)
	if err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSegments returns the file's segments ordered by start offset.
func (r *SQLiteRepository) ListSegments(ctx context.Context, fileID string) ([]pipeline.SegmentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		select id, file_id, start_ms, text, created_at
		from transcript_segments
		where file_id = ?
		order by start_ms`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var segs []pipeline.SegmentRecord
	for rows.Next() {
		var seg pipeline.SegmentRecord
		if err := rows.Scan(&seg.ID, &seg.FileID, &seg.StartMs, &seg.Text, &seg.CreatedAt); err != nil {
			return nil, fmt.Errorf("list segments: %w", err)
		}
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// Requeue moves all failed files back to pending, the one manual
// recovery transition. Returns the number of files re-queued.
func (r *SQLiteRepository) Requeue(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		update uploaded_files set status = ?, last_error = '', updated_at = ? where status = ?`,
		pipeline.StatusPending, time.Now().UTC(), pipeline.StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("requeue failed files: %w", err)
	}
	return res.RowsAffected()
}

// SweepStale resets in_progress files untouched for longer than
// olderThan back to pending. This is the out-of-band safeguard for runs
// abandoned by process termination; it must not run while workers that
// could still own those files are alive.
func (r *SQLiteRepository) SweepStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := r.db.ExecContext(ctx, `
		update uploaded_files set status = ?, updated_at = ?
		where status = ? and updated_at < ?`,
		pipeline.StatusPending, time.Now().UTC(), pipeline.StatusInProgress, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("sweep stale files: %w", err)
	}
	return res.RowsAffected()
}
