// Package runlog persists an audit trail of deletion runs in an embedded
// SQLite database. Every run writes one row to the runs table and one row
// per deleted workspace to the deletions table, so there is a durable
// record of what an unattended run did even after the intake sheet rows
// are archived.
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/wsreaper/wsreaper/internal/reaper"
)

const walJournalSizeLimit = 67108864 // 64 MiB WAL journal size limit

// Store records run outcomes in SQLite with WAL mode.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates a Store, opening the database at dbPath and applying
// migrations. Parent directories are created as needed. Use ":memory:"
// for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("runlog: creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("runlog: open sqlite: %w", err)
	}

	// SQLite allows one writer; a single pooled connection also keeps
	// ":memory:" databases from splitting across connections.
	db.SetMaxOpenConns(1)

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("runlog: set pragma %q: %w", p, err)
		}
	}

	return nil
}

// RecordRun writes the run summary and its deletions in one transaction
// and returns the new run's ID.
func (s *Store) RecordRun(ctx context.Context, startedAt, finishedAt time.Time, dryRun bool, summary *reaper.Summary) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("runlog: begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, finished_at, dry_run, processed_rows,
			successful_deletions, skipped, healed, error_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		startedAt.UTC().Format(time.RFC3339),
		finishedAt.UTC().Format(time.RFC3339),
		boolToInt(dryRun),
		summary.ProcessedRows,
		summary.SuccessfulDeletions,
		summary.Skipped,
		summary.Healed,
		len(summary.Errors),
	)
	if err != nil {
		return 0, fmt.Errorf("runlog: insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("runlog: run ID: %w", err)
	}

	for _, d := range summary.Deletions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO deletions (run_id, row_id, workspace_id, workspace_name, deleted_at)
			 VALUES (?, ?, ?, ?, ?)`,
			runID, d.RowID, d.WorkspaceID, d.WorkspaceName,
			finishedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return 0, fmt.Errorf("runlog: insert deletion: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("runlog: commit: %w", err)
	}

	return runID, nil
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID                  int64
	StartedAt           time.Time
	FinishedAt          time.Time
	DryRun              bool
	ProcessedRows       int
	SuccessfulDeletions int
	Skipped             int
	Healed              int
	ErrorCount          int
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, dry_run, processed_rows,
			successful_deletions, skipped, healed, error_count
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord

	for rows.Next() {
		var (
			rec                   RunRecord
			startedAt, finishedAt string
			dryRun                int
		)

		if err := rows.Scan(&rec.ID, &startedAt, &finishedAt, &dryRun,
			&rec.ProcessedRows, &rec.SuccessfulDeletions, &rec.Skipped,
			&rec.Healed, &rec.ErrorCount); err != nil {
			return nil, fmt.Errorf("runlog: scan run: %w", err)
		}

		rec.DryRun = dryRun != 0
		rec.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runlog: iterating runs: %w", err)
	}

	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
