package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wsreaper/wsreaper/internal/runlog"
)

const defaultHistoryLimit = 20

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the audit database",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runHistory(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "maximum number of runs to show")

	return cmd
}

func runHistory(limit int) error {
	logger := buildLogger()
	ctx := context.Background()

	store, err := runlog.Open(ctx, resolvedCfg.App.Database, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Println("No runs recorded.")

		return nil
	}

	headers := []string{"RUN", "STARTED", "MODE", "ROWS", "DELETED", "SKIPPED", "HEALED", "ERRORS"}
	rows := make([][]string, 0, len(records))

	for _, r := range records {
		mode := "live"
		if r.DryRun {
			mode = "dry-run"
		}

		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			formatTime(r.StartedAt.Local()),
			mode,
			strconv.Itoa(r.ProcessedRows),
			strconv.Itoa(r.SuccessfulDeletions),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Healed),
			strconv.Itoa(r.ErrorCount),
		})
	}

	printTable(os.Stdout, headers, rows)

	return nil
}
