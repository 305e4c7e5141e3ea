package config

import "github.com/wsreaper/wsreaper/internal/smartsheet"

// Default values for configuration options. These are the "layer 0" of the
// override chain and work without a config file except for the fields the
// deletion workflow cannot guess (client identity, sheet and column IDs).
const (
	defaultRedirectURI = "http://localhost:8710/callback"
	defaultLogLevel    = "info"

	// defaultTimezone is the zone "today" is computed in for date
	// comparisons. Deletion dates on the intake sheet are entered by
	// Pacific-time operators, so the default must stay Pacific: a UTC
	// default would roll the date over up to 8 hours early and delete
	// workspaces a calendar day ahead of schedule.
	defaultTimezone = "America/Los_Angeles"
)

// DefaultConfig returns a Config populated with all default values.
// It is used both as the starting point for TOML decoding (so unset fields
// retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		OAuth: OAuthConfig{
			RedirectURI: defaultRedirectURI,
			TokenFile:   DefaultTokenPath(),
		},
		App: AppConfig{
			LogLevel: defaultLogLevel,
			Timezone: defaultTimezone,
			BaseURL:  smartsheet.DefaultBaseURL,
			Database: DefaultDatabasePath(),
		},
	}
}
