package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wsreaper/wsreaper/internal/enumerate"
	"github.com/wsreaper/wsreaper/internal/reaper"
	"github.com/wsreaper/wsreaper/internal/smartsheet"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <workspace-id-or-url>",
		Short: "Enumerate a workspace's contents without deleting anything",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
}

func runInspect(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

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

	svc := reaper.New(client, reaper.Config{Timezone: resolvedCfg.App.Timezone}, logger)

	workspaceID, err := resolveWorkspaceArg(ctx, svc, args[0])
	if err != nil {
		return err
	}

	manifest, err := svc.Enumerate(ctx, workspaceID)
	if manifest == nil {
		return err
	}

	if err != nil {
		logger.Warn("enumeration incomplete", "error", err.Error())
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(manifest)
	}

	printManifestText(workspaceID, manifest)

	return nil
}

// resolveWorkspaceArg accepts either a numeric workspace ID or a workspace
// permalink URL.
func resolveWorkspaceArg(ctx context.Context, svc *reaper.Service, arg string) (int64, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}

	id, err := svc.FindWorkspaceByURL(ctx, arg)
	if err != nil {
		return 0, fmt.Errorf("resolving workspace %q: %w", arg, err)
	}

	return id, nil
}

func printManifestText(workspaceID int64, manifest *enumerate.Manifest) {
	fmt.Printf("Workspace %d: %d objects\n", workspaceID, manifest.Total())

	sections := []struct {
		name    string
		entries []enumerate.Entry
	}{
		{"Sheets", manifest.Sheets},
		{"Folders", manifest.Folders},
		{"Reports", manifest.Reports},
		{"Dashboards", manifest.Dashboards},
	}

	for _, sec := range sections {
		if len(sec.entries) == 0 {
			continue
		}

		fmt.Printf("\n%s:\n", sec.name)

		for _, e := range sec.entries {
			fmt.Printf("  %d  %s\n", e.ID, e.Name)
		}
	}

	if len(manifest.Skipped) > 0 {
		fmt.Printf("\nSkipped:\n")

		for _, sk := range manifest.Skipped {
			fmt.Printf("  %d  %s (%s)\n", sk.ID, sk.Name, sk.Reason)
		}
	}
}
