// Package config provides configuration loading and defaults for codehint.
package config

import "time"

// DefaultConfigDir is the default location for codehint configuration and
// state.
const DefaultConfigDir = "~/.config/codehint"

// DefaultDBName is the filename for the SQLite database.
const DefaultDBName = "codehint.db"

// DefaultProfilesDir is the directory name for YAML profile files.
const DefaultProfilesDir = "profiles"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// EnvPrefix prefixes environment overrides, e.g. CODEHINT_LOG_LEVEL.
const EnvPrefix = "CODEHINT"

// DefaultProfile is the learning profile used when none is configured.
const DefaultProfile = "default"

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendYAML   = "yaml"
	BackendMemory = "memory"
)

// DefaultStorage keeps profiles in SQLite under the config directory.
var DefaultStorage = Storage{
	Backend: BackendSQLite,
}

// DefaultAnalysis holds the scheduler defaults.
var DefaultAnalysis = Analysis{
	Debounce: 5000 * time.Millisecond,
	Workers:  4,
	Extensions: []string{
		".java", ".kt", ".scala", ".groovy", ".js", ".ts", ".py", ".cpp", ".c", ".h", ".go",
	},
}

// DefaultAnalyzer leaves both optional passes off.
var DefaultAnalyzer = Analyzer{
	Placeholder: false,
	SecretScan:  false,
}

// DefaultLog logs warnings and above in console format.
var DefaultLog = Log{
	Level:  "warn",
	Format: "console",
}

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color: true,
	Width: 100,
}

// DefaultAlerts notifies on HIGH and CRITICAL findings while watching.
var DefaultAlerts = Alerts{
	MinPriority: "HIGH",
	Notify:      false,
}
