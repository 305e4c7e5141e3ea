package config

import "os"

// Environment variable names for overrides. The client secret in particular
// is commonly injected through the environment in CI and scheduled jobs
// instead of living in the config file.
const (
	EnvConfig       = "WSREAPER_CONFIG"
	EnvClientID     = "WSREAPER_CLIENT_ID"
	EnvClientSecret = "WSREAPER_CLIENT_SECRET"
	EnvAWSSecret    = "WSREAPER_AWS_SECRET_NAME"
	EnvBaseURL      = "WSREAPER_BASE_URL"
)

// EnvOverrides holds values derived from environment variables.
// These are read by ReadEnvOverrides and applied on top of the config file.
type EnvOverrides struct {
	ConfigPath    string // WSREAPER_CONFIG: override config file path
	ClientID      string // WSREAPER_CLIENT_ID: OAuth client ID
	ClientSecret  string // WSREAPER_CLIENT_SECRET: OAuth client secret
	AWSSecretName string // WSREAPER_AWS_SECRET_NAME: Secrets Manager secret
	BaseURL       string // WSREAPER_BASE_URL: API base URL override
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:    os.Getenv(EnvConfig),
		ClientID:      os.Getenv(EnvClientID),
		ClientSecret:  os.Getenv(EnvClientSecret),
		AWSSecretName: os.Getenv(EnvAWSSecret),
		BaseURL:       os.Getenv(EnvBaseURL),
	}
}
