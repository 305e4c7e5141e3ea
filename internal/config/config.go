// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for wsreaper. It supports a three-layer
// override chain (defaults -> config file -> environment variables); CLI
// flags that override individual fields are applied by the command layer.
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	OAuth OAuthConfig `toml:"oauth"`
	Sheet SheetConfig `toml:"sheet"`
	App   AppConfig   `toml:"app"`
}

// OAuthConfig identifies the registered Smartsheet app and says where the
// token pair is persisted. Exactly one of token_file or aws_secret_name is
// used: when aws_secret_name is set the pair lives in AWS Secrets Manager,
// otherwise in a local JSON file.
type OAuthConfig struct {
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	RedirectURI   string `toml:"redirect_uri"`
	TokenFile     string `toml:"token_file"`
	AWSSecretName string `toml:"aws_secret_name"`
}

// SheetConfig names the intake sheet and the four columns the deletion
// workflow reads and writes. Column IDs are stable Smartsheet identifiers,
// not positions, so reordering columns in the UI does not break runs.
type SheetConfig struct {
	IntakeSheetID        int64 `toml:"intake_sheet_id"`
	FolderURLColumn      int64 `toml:"folder_url_column"`
	DeletionDateColumn   int64 `toml:"deletion_date_column"`
	EMNotificationColumn int64 `toml:"em_notification_column"`
	DeletionStatusColumn int64 `toml:"deletion_status_column"`
}

// AppConfig controls runtime behavior: logging, the timezone date
// comparisons are evaluated in, the API base URL, and the audit database.
type AppConfig struct {
	LogLevel string `toml:"log_level"`
	Timezone string `toml:"timezone"`
	BaseURL  string `toml:"base_url"`
	Database string `toml:"database"`
}
