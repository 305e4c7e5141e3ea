package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsreaper/wsreaper/internal/smartsheet"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

const validConfig = `
[oauth]
client_id = "cid"
client_secret = "secret"
token_file = "/tmp/token.json"

[sheet]
intake_sheet_id = 100
folder_url_column = 1
deletion_date_column = 2
em_notification_column = 3
deletion_status_column = 4

[app]
log_level = "debug"
timezone = "America/New_York"
`

func TestLoad(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cid", cfg.OAuth.ClientID)
	assert.Equal(t, "secret", cfg.OAuth.ClientSecret)
	assert.Equal(t, "/tmp/token.json", cfg.OAuth.TokenFile)
	assert.Equal(t, int64(100), cfg.Sheet.IntakeSheetID)
	assert.Equal(t, int64(3), cfg.Sheet.EMNotificationColumn)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "America/New_York", cfg.App.Timezone)

	// Fields the file omits keep their defaults.
	assert.Equal(t, defaultRedirectURI, cfg.OAuth.RedirectURI)
	assert.Equal(t, smartsheet.DefaultBaseURL, cfg.App.BaseURL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := writeConfig(t, "[oauth\nclient_id = ")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_UnknownKeySuggestion(t *testing.T) {
	path := writeConfig(t, `
[oauth]
client_idd = "cid"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown config key "oauth.client_idd"`)
	assert.Contains(t, err.Error(), `did you mean "oauth.client_id"?`)
}

func TestLoad_UnknownKeyNoSuggestion(t *testing.T) {
	path := writeConfig(t, `
[oauth]
completely_unrelated_setting = true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
		require.NoError(t, err)

		assert.Equal(t, defaultLogLevel, cfg.App.LogLevel)
		assert.Equal(t, defaultTimezone, cfg.App.Timezone)
		assert.Empty(t, cfg.OAuth.ClientID)
	})

	t.Run("existing file is parsed", func(t *testing.T) {
		path := writeConfig(t, validConfig)

		cfg, err := LoadOrDefault(path)
		require.NoError(t, err)
		assert.Equal(t, "cid", cfg.OAuth.ClientID)
	})
}

func TestDefaultConfig_PacificTimezone(t *testing.T) {
	// Deletion dates are entered by Pacific-time operators; the default
	// zone must match or rows become due a calendar day early.
	assert.Equal(t, "America/Los_Angeles", DefaultConfig().App.Timezone)
}

func TestResolve_EnvOverrides(t *testing.T) {
	path := writeConfig(t, validConfig)

	t.Setenv(EnvClientID, "env-cid")
	t.Setenv(EnvClientSecret, "env-secret")
	t.Setenv(EnvAWSSecret, "prod/wsreaper/token")
	t.Setenv(EnvBaseURL, "https://api.smartsheetgov.com/2.0")

	cfg, err := Resolve(path)
	require.NoError(t, err)

	assert.Equal(t, "env-cid", cfg.OAuth.ClientID)
	assert.Equal(t, "env-secret", cfg.OAuth.ClientSecret)
	assert.Equal(t, "prod/wsreaper/token", cfg.OAuth.AWSSecretName)
	assert.Equal(t, "https://api.smartsheetgov.com/2.0", cfg.App.BaseURL)

	// File values without env counterparts survive.
	assert.Equal(t, int64(100), cfg.Sheet.IntakeSheetID)
}

func TestResolve_ConfigPathPrecedence(t *testing.T) {
	flagPath := writeConfig(t, `
[oauth]
client_id = "from-flag"
token_file = "/tmp/t.json"
`)
	envPath := writeConfig(t, `
[oauth]
client_id = "from-env"
token_file = "/tmp/t.json"
`)

	t.Setenv(EnvConfig, envPath)

	t.Run("flag beats env", func(t *testing.T) {
		cfg, err := Resolve(flagPath)
		require.NoError(t, err)
		assert.Equal(t, "from-flag", cfg.OAuth.ClientID)
	})

	t.Run("env used when no flag", func(t *testing.T) {
		cfg, err := Resolve("")
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.OAuth.ClientID)
	})
}

func TestResolve_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
[app]
log_level = "loud"
`)

	_, err := Resolve(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation")
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(_ *Config) {}, ""},
		{
			"bad log level",
			func(c *Config) { c.App.LogLevel = "loud" },
			"log_level",
		},
		{
			"bad timezone",
			func(c *Config) { c.App.Timezone = "Mars/Olympus_Mons" },
			"timezone",
		},
		{
			"empty base URL",
			func(c *Config) { c.App.BaseURL = "" },
			"base_url",
		},
		{
			"no token storage",
			func(c *Config) { c.OAuth.TokenFile = ""; c.OAuth.AWSSecretName = "" },
			"one of token_file or aws_secret_name",
		},
		{
			"aws secret alone is enough",
			func(c *Config) { c.OAuth.TokenFile = ""; c.OAuth.AWSSecretName = "prod/secret" },
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_AccumulatesAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.App.LogLevel = "loud"
	cfg.App.BaseURL = ""

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "base_url")
}

func TestValidateLogin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OAuth.ClientID = "cid"
	cfg.OAuth.ClientSecret = "secret"
	assert.NoError(t, ValidateLogin(cfg))

	cfg.OAuth.ClientSecret = ""
	err := ValidateLogin(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_secret is required for login")

	cfg.OAuth.ClientID = ""
	err = ValidateLogin(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_id is required for login")

	cfg = DefaultConfig()
	cfg.OAuth.ClientID = "cid"
	cfg.OAuth.ClientSecret = "secret"
	cfg.OAuth.RedirectURI = ""
	err = ValidateLogin(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect_uri is required")
}

func TestValidateRun(t *testing.T) {
	complete := func() *Config {
		cfg := DefaultConfig()
		cfg.OAuth.ClientID = "cid"
		cfg.OAuth.ClientSecret = "secret"
		cfg.Sheet = SheetConfig{
			IntakeSheetID:        100,
			FolderURLColumn:      1,
			DeletionDateColumn:   2,
			EMNotificationColumn: 3,
			DeletionStatusColumn: 4,
		}

		return cfg
	}

	assert.NoError(t, ValidateRun(complete()))

	t.Run("missing sheet ID", func(t *testing.T) {
		cfg := complete()
		cfg.Sheet.IntakeSheetID = 0

		err := ValidateRun(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "intake_sheet_id is required")
	})

	t.Run("missing columns reported individually", func(t *testing.T) {
		cfg := complete()
		cfg.Sheet.DeletionDateColumn = 0
		cfg.Sheet.DeletionStatusColumn = 0

		err := ValidateRun(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "deletion_date_column is required")
		assert.Contains(t, err.Error(), "deletion_status_column is required")
		assert.NotContains(t, err.Error(), "folder_url_column")
	})

	t.Run("missing client identity", func(t *testing.T) {
		cfg := complete()
		cfg.OAuth.ClientID = ""

		err := ValidateRun(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "client_id is required")
	})
}

func TestLinuxDirs(t *testing.T) {
	t.Run("XDG overrides respected", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/xdg/conf")
		t.Setenv("XDG_DATA_HOME", "/xdg/data")

		assert.Equal(t, filepath.Join("/xdg/conf", appName), linuxConfigDir("/home/u"))
		assert.Equal(t, filepath.Join("/xdg/data", appName), linuxDataDir("/home/u"))
	})

	t.Run("defaults under home", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("XDG_DATA_HOME", "")

		assert.Equal(t, filepath.Join("/home/u", ".config", appName), linuxConfigDir("/home/u"))
		assert.Equal(t, filepath.Join("/home/u", ".local", "share", appName), linuxDataDir("/home/u"))
	})
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 1, levenshtein("abc", "abd"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 3, levenshtein("abc", ""))

	assert.Equal(t, "app.log_level", closestMatch("app.loglevel", knownKeysList))
	assert.Equal(t, "", closestMatch("totally.different", knownKeysList))
}
