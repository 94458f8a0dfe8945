// Package store is the persistence layer from spec §4.8: a single `jobs`
// table keyed on job_id, indexed on author/channel_id/stage/archived, over
// an embedded single-file SQLite database (spec §6, "DB/DATA.db").
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/relayforge/mediaforge/job"
	"github.com/relayforge/mediaforge/log"
	_ "modernc.org/sqlite"
)

// Store wraps a connection pool to the jobs database. Writers are
// serialized behind the pool per spec §5 ("the persistence store is
// serialized behind a connection pool (capacity >= 5); all writers are the
// coordinator").
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite file at path and caps the
// pool at 5 connections, mirroring the original implementation's
// SqlitePoolOptions::max_connections(5).
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: creating %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(5)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// InitSchema creates the jobs table and its indexes if they don't already
// exist. SQLite doesn't support batched DDL through database/sql, so each
// index is a separate statement, same as the original schema setup.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			job_id        INTEGER PRIMARY KEY,
			author        INTEGER NOT NULL,
			channel_id    INTEGER NOT NULL,
			response_id   INTEGER NOT NULL DEFAULT 0,
			requested_at  INTEGER NOT NULL,
			job_type      INTEGER NOT NULL,
			preset_type   INTEGER NOT NULL,
			preset_concat INTEGER,
			link          TEXT NOT NULL,
			directory     TEXT NOT NULL,
			stage         INTEGER NOT NULL,
			archived      INTEGER DEFAULT 0,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("store: creating jobs table: %w", err)
	}

	for _, idx := range []string{
		"CREATE INDEX IF NOT EXISTS idx_jobs_author   ON jobs(author)",
		"CREATE INDEX IF NOT EXISTS idx_jobs_channel   ON jobs(channel_id)",
		"CREATE INDEX IF NOT EXISTS idx_jobs_stage     ON jobs(stage)",
		"CREATE INDEX IF NOT EXISTS idx_jobs_archived  ON jobs(archived)",
	} {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("store: creating index (%s): %w", idx, err)
		}
	}
	return nil
}

func presetToColumns(p job.Preset) (presetType int, presetConcat sql.NullInt64) {
	presetType = int(p.Kind)
	if p.ConcatID != nil {
		presetConcat = sql.NullInt64{Int64: int64(*p.ConcatID), Valid: true}
	}
	return
}

func columnsToPreset(presetType int64, presetConcat sql.NullInt64) job.Preset {
	p := job.Preset{Kind: job.PresetKind(presetType)}
	if presetConcat.Valid {
		id := int(presetConcat.Int64)
		p.ConcatID = &id
	}
	return p
}

// InsertJob persists a newly-admitted job row.
func (s *Store) InsertJob(ctx context.Context, j job.Job) error {
	presetType, presetConcat := presetToColumns(j.Preset)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (
			job_id, author, channel_id, response_id, requested_at,
			job_type, preset_type, preset_concat, link, directory, stage
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.JobID, j.Author, j.ChannelID, j.ResponseID, j.RequestedAt,
		int(j.Type), presetType, presetConcat, j.Torrent.Value(), j.Directory, int(j.Stage))
	if err != nil {
		return fmt.Errorf("store: inserting job %d: %w", j.JobID, err)
	}
	return nil
}

func (s *Store) UpdateResponseID(ctx context.Context, jobID, responseID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET response_id = ? WHERE job_id = ?`, responseID, jobID)
	if err != nil {
		return fmt.Errorf("store: updating response_id for job %d: %w", jobID, err)
	}
	return nil
}

func (s *Store) UpdateStage(ctx context.Context, jobID int64, stage job.Stage) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET stage = ? WHERE job_id = ?`, int(stage), jobID)
	if err != nil {
		return fmt.Errorf("store: updating stage for job %d: %w", jobID, err)
	}
	return nil
}

func (s *Store) ArchiveJob(ctx context.Context, jobID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET archived = 1 WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("store: archiving job %d: %w", jobID, err)
	}
	return nil
}

const selectColumns = `
	job_id, author, channel_id, response_id, requested_at,
	job_type, preset_type, preset_concat, link, directory, stage, archived
`

func scanJob(row interface{ Scan(...any) error }) (job.Job, error) {
	var (
		j                          job.Job
		jobType, stage, archived   int64
		presetType                 int64
		presetConcat               sql.NullInt64
		link                       string
	)
	if err := row.Scan(&j.JobID, &j.Author, &j.ChannelID, &j.ResponseID, &j.RequestedAt,
		&jobType, &presetType, &presetConcat, &link, &j.Directory, &stage, &archived); err != nil {
		return job.Job{}, err
	}
	j.Type = job.Type(jobType)
	j.Preset = columnsToPreset(presetType, presetConcat)
	j.Torrent = job.TorrentRefFromStored(link)
	j.Stage = job.Stage(stage)
	j.Archived = archived != 0
	return j, nil
}

// GetJob returns one job by id, or (Job{}, false, nil) if it doesn't exist.
func (s *Store) GetJob(ctx context.Context, jobID int64) (job.Job, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM jobs WHERE job_id = ?`, jobID)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return job.Job{}, false, nil
	}
	if err != nil {
		return job.Job{}, false, fmt.Errorf("store: getting job %d: %w", jobID, err)
	}
	return j, true, nil
}

// GetActiveJobs returns non-archived jobs ordered by requested_at ASC, the
// queue's natural FIFO order (spec §4.8).
func (s *Store) GetActiveJobs(ctx context.Context) ([]job.Job, error) {
	return s.queryJobs(ctx, `SELECT `+selectColumns+` FROM jobs WHERE archived = 0 ORDER BY requested_at ASC`)
}

// GetJobsByAuthor returns a given author's jobs ordered by requested_at
// DESC (most recent first).
func (s *Store) GetJobsByAuthor(ctx context.Context, author int64) ([]job.Job, error) {
	return s.queryJobs(ctx, `SELECT `+selectColumns+` FROM jobs WHERE author = ? ORDER BY requested_at DESC`, author)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]job.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: querying jobs: %w", err)
	}
	defer rows.Close()

	var out []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scanning job row: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// LogAndIgnore logs a persistence error without propagating it, matching
// spec §7's "persistence errors are logged; the in-memory state machine
// remains authoritative for the current process lifetime."
func LogAndIgnore(requestID string, op string, err error) {
	if err == nil {
		return
	}
	log.LogError(requestID, "persistence operation failed, in-memory state remains authoritative", err, "op", op)
}
