package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"reframe/internal/config"
	"reframe/internal/ffmpeg"
	"reframe/internal/services"
	"reframe/internal/transcode"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump when the schema changes;
// users clear the database file after a mismatch.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages job-record persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "jobs.db"))
}

// OpenPath opens the store at an explicit database path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Create inserts a pending record for a freshly submitted request and
// returns it with a generated job ID.
func (s *Store) Create(ctx context.Context, req ffmpeg.Request) (*Record, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	now := time.Now().UTC()
	record := &Record{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      transcode.StatusPending,
		InputPath:   req.InputPath,
		OutputPath:  req.OutputPath,
		Format:      strings.ToLower(strings.TrimSpace(req.Format)),
		RequestJSON: string(payload),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (
            id, created_at, updated_at, status,
            input_path, output_path, format, request_json,
            progress_percent, progress_fps, time_remaining, failure_reason
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0, NULL, NULL)`,
		record.ID,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		string(record.Status),
		record.InputPath,
		record.OutputPath,
		record.Format,
		record.RequestJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return record, nil
}

// SetStatus moves a record to a new lifecycle status.
func (s *Store) SetStatus(ctx context.Context, id string, status transcode.Status) error {
	return s.update(ctx, id,
		"UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?",
		string(status), now(), id)
}

// UpdateProgress stores the latest normalized progress event for a job.
func (s *Store) UpdateProgress(ctx context.Context, id string, event transcode.ProgressEvent) error {
	return s.update(ctx, id,
		"UPDATE jobs SET progress_percent = ?, progress_fps = ?, time_remaining = ?, updated_at = ? WHERE id = ?",
		event.Percent, event.CurrentFPS, event.TimeRemaining, now(), id)
}

// SetOutcome records a job's terminal outcome.
func (s *Store) SetOutcome(ctx context.Context, id string, outcome transcode.Outcome) error {
	return s.update(ctx, id,
		"UPDATE jobs SET status = ?, failure_reason = ?, updated_at = ? WHERE id = ?",
		string(outcome.Status), nullableString(outcome.Reason), now(), id)
}

func (s *Store) update(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "queue", "update", "job "+id, nil)
	}
	return nil
}

// GetByID fetches one record.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM jobs WHERE id = ?", id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "queue", "get", "job "+id, nil)
	}
	return record, err
}

// List returns records newest first.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" FROM jobs ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

const selectColumns = `SELECT id, created_at, updated_at, status,
    input_path, output_path, format, request_json,
    progress_percent, progress_fps, time_remaining, failure_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var createdAt, updatedAt, status string
	var timeRemaining, failureReason sql.NullString
	err := row.Scan(
		&record.ID, &createdAt, &updatedAt, &status,
		&record.InputPath, &record.OutputPath, &record.Format, &record.RequestJSON,
		&record.Percent, &record.CurrentFPS, &timeRemaining, &failureReason,
	)
	if err != nil {
		return nil, err
	}
	record.Status = transcode.Status(status)
	if ts, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		record.CreatedAt = ts
	}
	if ts, parseErr := time.Parse(time.RFC3339Nano, updatedAt); parseErr == nil {
		record.UpdatedAt = ts
	}
	record.TimeRemaining = timeRemaining.String
	record.FailureReason = failureReason.String
	return &record, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
