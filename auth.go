package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/wsreaper/wsreaper/internal/config"
	"github.com/wsreaper/wsreaper/internal/smartsheet"
	"github.com/wsreaper/wsreaper/internal/tokenstore"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Smartsheet in a browser",
		RunE:  runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved token pair",
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Display the authenticated user",
		RunE:  runWhoami,
	}
}

func runLogin(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	if err := config.ValidateLogin(resolvedCfg); err != nil {
		return err
	}

	mgr, err := newTokenManager(resolvedCfg, logger)
	if err != nil {
		return err
	}

	logger.Info("login started")

	if err := mgr.LoginWithBrowser(ctx, resolvedCfg.OAuth.RedirectURI, openBrowser); err != nil {
		return err
	}

	logger.Info("login successful")
	statusf("Login successful.\n")

	return nil
}

// openBrowser launches the platform's URL opener. Login still works when
// this fails because the authorization URL is also printed to stderr.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "linux":
		return exec.Command("xdg-open", url).Start()
	default:
		return fmt.Errorf("no browser opener for %s", runtime.GOOS)
	}
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	store, err := newTokenStore(resolvedCfg)
	if err != nil {
		return err
	}

	fileStore, ok := store.(*tokenstore.FileStore)
	if !ok {
		// Secrets Manager credentials are shared by scheduled runs; deleting
		// them from a workstation would break automation, so require the
		// secret to be removed through AWS directly.
		return errors.New("logout only supports file-based token storage; delete the AWS secret to revoke")
	}

	if err := fileStore.Remove(); err != nil {
		return err
	}

	logger.Info("logout successful")
	statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func runWhoami(_ *cobra.Command, _ []string) error {
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

	user, err := client.GetCurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("fetching current user: %w", err)
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(whoamiOutput{
			ID:        user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		})
	}

	fmt.Printf("User:  %s %s (%s)\n", user.FirstName, user.LastName, user.Email)
	fmt.Printf("ID:    %d\n", user.ID)

	return nil
}
