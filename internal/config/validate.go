package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// validLogLevels are the accepted values for app.log_level.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the format of all configuration values and returns all
// errors found. It accumulates every error rather than stopping at the
// first, so users see a complete report and can fix all issues in one pass.
// Presence of the fields a specific command needs is checked separately by
// ValidateLogin and ValidateRun.
func Validate(cfg *Config) error {
	var errs []error

	if !validLogLevels[cfg.App.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be debug, info, warn, or error, got %q", cfg.App.LogLevel))
	}

	if cfg.App.Timezone != "" {
		if _, err := time.LoadLocation(cfg.App.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("timezone: %w", err))
		}
	}

	if cfg.App.BaseURL == "" {
		errs = append(errs, errors.New("base_url: must not be empty"))
	} else if _, err := url.Parse(cfg.App.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("base_url: %w", err))
	}

	if cfg.OAuth.TokenFile == "" && cfg.OAuth.AWSSecretName == "" {
		errs = append(errs, errors.New("oauth: one of token_file or aws_secret_name must be set"))
	}

	return errors.Join(errs...)
}

// ValidateLogin checks the fields the interactive login flow needs on top
// of Validate.
func ValidateLogin(cfg *Config) error {
	var errs []error

	if cfg.OAuth.ClientID == "" {
		errs = append(errs, errors.New("oauth: client_id is required for login"))
	}

	if cfg.OAuth.ClientSecret == "" {
		errs = append(errs, errors.New("oauth: client_secret is required for login"))
	}

	if cfg.OAuth.RedirectURI == "" {
		errs = append(errs, errors.New("oauth: redirect_uri is required for login"))
	} else if _, err := url.Parse(cfg.OAuth.RedirectURI); err != nil {
		errs = append(errs, fmt.Errorf("oauth: redirect_uri: %w", err))
	}

	return errors.Join(errs...)
}

// ValidateRun checks the fields the deletion workflow needs on top of
// Validate. These are checked before any API call so a misconfigured
// scheduled run fails immediately rather than partway through the sheet.
func ValidateRun(cfg *Config) error {
	var errs []error

	if cfg.OAuth.ClientID == "" {
		errs = append(errs, errors.New("oauth: client_id is required"))
	}

	if cfg.OAuth.ClientSecret == "" {
		errs = append(errs, errors.New("oauth: client_secret is required"))
	}

	if cfg.Sheet.IntakeSheetID == 0 {
		errs = append(errs, errors.New("sheet: intake_sheet_id is required"))
	}

	columns := []struct {
		name string
		id   int64
	}{
		{"folder_url_column", cfg.Sheet.FolderURLColumn},
		{"deletion_date_column", cfg.Sheet.DeletionDateColumn},
		{"em_notification_column", cfg.Sheet.EMNotificationColumn},
		{"deletion_status_column", cfg.Sheet.DeletionStatusColumn},
	}
	for _, col := range columns {
		if col.id == 0 {
			errs = append(errs, fmt.Errorf("sheet: %s is required", col.name))
		}
	}

	return errors.Join(errs...)
}
