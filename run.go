package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wsreaper/wsreaper/internal/config"
	"github.com/wsreaper/wsreaper/internal/reaper"
	"github.com/wsreaper/wsreaper/internal/runlog"
	"github.com/wsreaper/wsreaper/internal/smartsheet"
)

// errRunHadErrors signals that the run completed but some rows failed.
// main() maps it to a non-zero exit without the generic error banner, since
// per-row failures were already reported in the summary.
var errRunHadErrors = errors.New("run completed with row errors")

func newRunCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the intake sheet and delete due workspaces",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runRun(dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")

	return cmd
}

func runRun(dryRun bool) error {
	logger := buildLogger()
	ctx := context.Background()

	if err := config.ValidateRun(resolvedCfg); err != nil {
		return err
	}

	mgr, err := newTokenManager(resolvedCfg, logger)
	if err != nil {
		return err
	}

	client, err := mgr.Connect(ctx, resolvedCfg.App.BaseURL, defaultHTTPClient())
	if err != nil {
		if errors.Is(err, smartsheet.ErrNotAuthorized) {
			return fmt.Errorf("not logged in; run 'wsreaper login' first")
		}

		return err
	}

	svc := reaper.New(client, reaper.Config{
		IntakeSheetID: resolvedCfg.Sheet.IntakeSheetID,
		Columns: reaper.ColumnMap{
			FolderURL:      resolvedCfg.Sheet.FolderURLColumn,
			DeletionDate:   resolvedCfg.Sheet.DeletionDateColumn,
			EMNotification: resolvedCfg.Sheet.EMNotificationColumn,
			DeletionStatus: resolvedCfg.Sheet.DeletionStatusColumn,
		},
		Timezone: resolvedCfg.App.Timezone,
		DryRun:   dryRun,
	}, logger)

	startedAt := time.Now()

	summary, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	recordRun(ctx, logger, startedAt, time.Now(), dryRun, summary)

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}
	} else {
		printSummaryText(summary, dryRun)
	}

	if len(summary.Errors) > 0 {
		return errRunHadErrors
	}

	return nil
}

// recordRun writes the run to the audit database. Auditing is best-effort:
// a broken database must never turn a successful deletion run into a
// failure, so problems are logged and swallowed.
func recordRun(ctx context.Context, logger *slog.Logger, startedAt, finishedAt time.Time, dryRun bool, summary *reaper.Summary) {
	store, err := runlog.Open(ctx, resolvedCfg.App.Database, logger)
	if err != nil {
		logger.Warn("audit database unavailable", slog.String("error", err.Error()))

		return
	}
	defer store.Close()

	if _, err := store.RecordRun(ctx, startedAt, finishedAt, dryRun, summary); err != nil {
		logger.Warn("recording run failed", slog.String("error", err.Error()))
	}
}

func printSummaryText(summary *reaper.Summary, dryRun bool) {
	if dryRun {
		fmt.Println("Dry run: nothing was deleted.")
	}

	fmt.Printf("Processed rows:   %d\n", summary.ProcessedRows)
	fmt.Printf("Deleted:          %d\n", summary.SuccessfulDeletions)
	fmt.Printf("Skipped:          %d\n", summary.Skipped)
	fmt.Printf("Healed:           %d\n", summary.Healed)
	fmt.Printf("Errors:           %d\n", len(summary.Errors))

	for _, d := range summary.Deletions {
		fmt.Printf("  deleted workspace %d (%s) for row %d\n", d.WorkspaceID, d.WorkspaceName, d.RowID)
	}

	for _, e := range summary.Errors {
		fmt.Printf("  row %d (ID %d): %s\n", e.RowIndex+1, e.RowID, e.Error)
	}
}
