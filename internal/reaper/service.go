package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wsreaper/wsreaper/internal/enumerate"
	"github.com/wsreaper/wsreaper/internal/smartsheet"
)

// API is the slice of the Smartsheet client the workflow needs.
// *smartsheet.Client satisfies it; tests use fakes.
type API interface {
	ListSheets(ctx context.Context) ([]smartsheet.ObjectRef, error)
	GetSheet(ctx context.Context, sheetID int64) (*smartsheet.Sheet, error)
	ListWorkspaces(ctx context.Context) ([]smartsheet.Workspace, error)
	GetWorkspaceChildren(ctx context.Context, workspaceID int64) (*smartsheet.ChildSet, error)
	GetFolderChildren(ctx context.Context, folderID int64) (*smartsheet.ChildSet, error)
	DeleteWorkspace(ctx context.Context, workspaceID int64) error
	DeleteFolder(ctx context.Context, folderID int64) error
	UpdateRowCell(ctx context.Context, sheetID, rowID, columnID int64, value string) error
}

// Config is the per-run workflow configuration.
type Config struct {
	IntakeSheetID int64
	Columns       ColumnMap
	Timezone      string
	DryRun        bool
}

// RowError records one row's failure in the run summary. Per-row failures
// never abort the batch.
type RowError struct {
	RowIndex int    `json:"row_index"`
	RowID    int64  `json:"row_id"`
	Error    string `json:"error"`
}

// Deletion records one workspace the run deleted, for the audit trail.
type Deletion struct {
	RowID         int64  `json:"row_id"`
	WorkspaceID   int64  `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
}

// Summary is the run result. Healed counts rows whose workspace was
// already gone (deleted by a previous run that crashed before the status
// update) and whose status cell this run repaired.
type Summary struct {
	ProcessedRows       int        `json:"processed_rows"`
	SuccessfulDeletions int        `json:"successful_deletions"`
	Skipped             int        `json:"skipped"`
	Healed              int        `json:"healed"`
	Errors              []RowError `json:"errors"`
	Deletions           []Deletion `json:"deletions"`
}

// Service runs the deletion workflow. One Service is built per run; it is
// sequential and single-threaded throughout: one row at a time, one
// workspace at a time.
type Service struct {
	api    API
	enum   *enumerate.Enumerator
	cfg    Config
	logger *slog.Logger

	sheetIndex []sheetRef
}

// New creates the workflow service.
func New(api API, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		api:    api,
		enum:   enumerate.New(api, logger),
		cfg:    cfg,
		logger: logger,
	}
}

// Run processes every row of the intake sheet once and returns the
// summary. Setup failures (fetching the sheet, resolving today's date)
// abort with an error before any row is touched; after that, row failures
// are recorded and the batch continues.
func (s *Service) Run(ctx context.Context) (*Summary, error) {
	s.sheetIndex = nil

	today, err := Today(s.cfg.Timezone)
	if err != nil {
		return nil, err
	}

	sheet, err := s.api.GetSheet(ctx, s.cfg.IntakeSheetID)
	if err != nil {
		return nil, fmt.Errorf("reaper: fetching intake sheet %d: %w", s.cfg.IntakeSheetID, err)
	}

	s.logger.Info("processing intake sheet",
		slog.String("name", sheet.Name),
		slog.Int("rows", len(sheet.Rows)),
		slog.String("today", today),
		slog.Bool("dry_run", s.cfg.DryRun),
	)

	summary := &Summary{}

	for i := range sheet.Rows {
		s.processRow(ctx, i, &sheet.Rows[i], today, summary)
	}

	s.logger.Info("run complete",
		slog.Int("processed", summary.ProcessedRows),
		slog.Int("deleted", summary.SuccessfulDeletions),
		slog.Int("skipped", summary.Skipped),
		slog.Int("healed", summary.Healed),
		slog.Int("errors", len(summary.Errors)),
	)

	return summary, nil
}

// processRow runs the per-row pipeline: idempotence check, deletion
// predicate, workspace resolution, children-first deletion, status update.
func (s *Service) processRow(ctx context.Context, index int, raw *smartsheet.Row, today string, summary *Summary) {
	summary.ProcessedRows++

	row := extractIntakeRow(raw, s.cfg.Columns)

	logger := s.logger.With(
		slog.Int64("row_id", row.RowID),
		slog.Int("row_number", row.RowNumber),
	)

	// A row is eligible at most once ever. The status check comes before
	// anything else so reprocessed rows cost zero API calls.
	if row.DeletionStatus == StatusDeleted {
		logger.Debug("row already deleted, skipping")
		summary.Skipped++

		return
	}

	if row.DeletionDate == "" || row.EMNotificationDate == "" {
		logger.Debug("row missing date fields, skipping")
		summary.Skipped++

		return
	}

	if !ShouldDelete(row.EMNotificationDate, row.DeletionDate, today) {
		logger.Debug("row not due for deletion",
			slog.String("deletion_date", row.DeletionDate),
			slog.String("em_notification_date", row.EMNotificationDate),
		)
		summary.Skipped++

		return
	}

	if row.FolderURL == "" {
		logger.Warn("row due for deletion but missing folder URL, skipping")
		summary.Skipped++

		return
	}

	logger.Info("row due for deletion", slog.String("folder_url", stripQuery(row.FolderURL)))

	ws, err := s.workspaceFromFolderURL(ctx, row.FolderURL)
	if errors.Is(err, ErrLookupMiss) {
		// The workspace (and the sheet the URL points into) no longer
		// exists. On a row already due for deletion that is the signature
		// of a previous run crashing between the workspace delete and the
		// status update; repair the status instead of reporting an error.
		s.healRow(ctx, logger, index, &row, summary)

		return
	}

	if err != nil {
		s.recordError(logger, summary, index, row.RowID, err)

		return
	}

	manifest, err := s.enum.Enumerate(ctx, ws.ID)
	if err != nil {
		// A partial manifest is still usable: the workspace delete removes
		// whatever enumeration could not reach.
		logger.Warn("enumeration incomplete, proceeding with partial manifest",
			slog.String("error", err.Error()),
		)
	}

	if s.cfg.DryRun {
		logger.Info("dry-run: would delete workspace",
			slog.Int64("workspace_id", ws.ID),
			slog.String("workspace_name", ws.Name),
			slog.Int("content_objects", manifest.Total()),
		)
		summary.Skipped++

		return
	}

	if err := s.deleteWorkspace(ctx, logger, ws.ID, manifest); err != nil {
		if errors.Is(err, smartsheet.ErrNotFound) {
			s.healRow(ctx, logger, index, &row, summary)

			return
		}

		s.recordError(logger, summary, index, row.RowID, err)

		return
	}

	summary.SuccessfulDeletions++
	summary.Deletions = append(summary.Deletions, Deletion{
		RowID:         row.RowID,
		WorkspaceID:   ws.ID,
		WorkspaceName: ws.Name,
	})

	if err := s.markDeleted(ctx, row.RowID); err != nil {
		// The workspace is gone; the next run's lookup-miss path repairs
		// the status cell. Log loudly but keep the deletion counted.
		logger.Error("workspace deleted but status update failed",
			slog.Int64("workspace_id", ws.ID),
			slog.String("error", err.Error()),
		)

		return
	}

	logger.Info("workspace deleted and row marked",
		slog.Int64("workspace_id", ws.ID),
	)
}

// deleteWorkspace removes a workspace's folders children-first, then the
// workspace itself. The manifest records folders in top-down discovery
// order, so reverse iteration deletes the deepest folders first.
func (s *Service) deleteWorkspace(ctx context.Context, logger *slog.Logger, workspaceID int64, manifest *enumerate.Manifest) error {
	for i := len(manifest.Folders) - 1; i >= 0; i-- {
		folder := manifest.Folders[i]

		err := s.api.DeleteFolder(ctx, folder.ID)
		if errors.Is(err, smartsheet.ErrNotFound) {
			// Already gone. Fine, the goal is absence.
			continue
		}

		if err != nil {
			return fmt.Errorf("reaper: deleting folder %d: %w", folder.ID, err)
		}

		logger.Debug("deleted folder",
			slog.Int64("folder_id", folder.ID),
			slog.String("name", folder.Name),
		)
	}

	if err := s.api.DeleteWorkspace(ctx, workspaceID); err != nil {
		return err
	}

	return nil
}

// healRow repairs a row pointing at an already-deleted workspace by
// marking it Deleted, closing the crash window between workspace deletion
// and status update.
func (s *Service) healRow(ctx context.Context, logger *slog.Logger, index int, row *IntakeRow, summary *Summary) {
	if s.cfg.DryRun {
		logger.Info("dry-run: would mark row deleted (workspace already gone)")
		summary.Skipped++

		return
	}

	if err := s.markDeleted(ctx, row.RowID); err != nil {
		logger.Error("failed to heal row status", slog.String("error", err.Error()))
		summary.Errors = append(summary.Errors, RowError{
			RowIndex: index,
			RowID:    row.RowID,
			Error:    fmt.Sprintf("healing status update failed: %v", err),
		})
		summary.Skipped++

		return
	}

	logger.Info("workspace already gone, row marked deleted")
	summary.Healed++
}

// markDeleted writes the status cell.
func (s *Service) markDeleted(ctx context.Context, rowID int64) error {
	return s.api.UpdateRowCell(ctx, s.cfg.IntakeSheetID, rowID, s.cfg.Columns.DeletionStatus, StatusDeleted)
}

// recordError adds a row failure to the summary and counts the row as
// skipped. Only setup failures abort a run.
func (s *Service) recordError(logger *slog.Logger, summary *Summary, index int, rowID int64, err error) {
	logger.Error("row processing failed", slog.String("error", err.Error()))

	summary.Errors = append(summary.Errors, RowError{
		RowIndex: index,
		RowID:    rowID,
		Error:    err.Error(),
	})
	summary.Skipped++
}

// Enumerate builds the content manifest for one workspace. Exposed for the
// inspect command.
func (s *Service) Enumerate(ctx context.Context, workspaceID int64) (*enumerate.Manifest, error) {
	return s.enum.Enumerate(ctx, workspaceID)
}
