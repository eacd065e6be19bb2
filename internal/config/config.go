package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level codehint configuration.
type Config struct {
	Profile  string   `mapstructure:"profile"`
	Storage  Storage  `mapstructure:"storage"`
	Analysis Analysis `mapstructure:"analysis"`
	Analyzer Analyzer `mapstructure:"analyzer"`
	Log      Log      `mapstructure:"log"`
	Output   Output   `mapstructure:"output"`
	Metrics  Metrics  `mapstructure:"metrics"`
	Alerts   Alerts   `mapstructure:"alerts"`
}

// Storage selects where learning profiles live.
type Storage struct {
	Backend string `mapstructure:"backend"`
	// Path is the database file (sqlite) or profile directory (yaml). Empty
	// means a default under the config directory.
	Path string `mapstructure:"path"`
}

// Analysis configures the file-watch scheduler.
type Analysis struct {
	Debounce   time.Duration `mapstructure:"debounce"`
	Workers    int           `mapstructure:"workers"`
	Extensions []string      `mapstructure:"extensions"`
}

// Analyzer toggles optional analyzer passes.
type Analyzer struct {
	Placeholder bool `mapstructure:"placeholder"`
	SecretScan  bool `mapstructure:"secret_scan"`
}

// Log configures the zap logger.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Output defines output preferences.
type Output struct {
	Color bool `mapstructure:"color"`
	Width int  `mapstructure:"width"`
}

// Metrics configures the Prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `mapstructure:"addr"`
}

// Alerts configures watch-mode alerts.
type Alerts struct {
	MinPriority string `mapstructure:"min_priority"`
	Notify      bool   `mapstructure:"notify"`
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", DefaultProfile)
	v.SetDefault("storage.backend", DefaultStorage.Backend)
	v.SetDefault("storage.path", "")
	v.SetDefault("analysis.debounce", DefaultAnalysis.Debounce)
	v.SetDefault("analysis.workers", DefaultAnalysis.Workers)
	v.SetDefault("analysis.extensions", DefaultAnalysis.Extensions)
	v.SetDefault("analyzer.placeholder", DefaultAnalyzer.Placeholder)
	v.SetDefault("analyzer.secret_scan", DefaultAnalyzer.SecretScan)
	v.SetDefault("log.level", DefaultLog.Level)
	v.SetDefault("log.format", DefaultLog.Format)
	v.SetDefault("output.color", DefaultOutput.Color)
	v.SetDefault("output.width", DefaultOutput.Width)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("alerts.min_priority", DefaultAlerts.MinPriority)
	v.SetDefault("alerts.notify", DefaultAlerts.Notify)
}

// Load reads configuration from the given path (or the default location),
// applies CODEHINT_* environment overrides and returns a validated Config
// with all defaults applied.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		v.AddConfigPath(ConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// A missing config file is not an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Storage.Path = expandPath(cfg.Storage.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendYAML, BackendMemory:
	default:
		return fmt.Errorf("%w: storage.backend %q (want sqlite, yaml or memory)", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Profile == "" {
		return fmt.Errorf("%w: profile is empty", ErrInvalidConfig)
	}
	if c.Analysis.Debounce < 0 {
		return fmt.Errorf("%w: analysis.debounce %v is negative", ErrInvalidConfig, c.Analysis.Debounce)
	}
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("%w: analysis.workers must be at least 1, got %d", ErrInvalidConfig, c.Analysis.Workers)
	}
	if c.Output.Width < 40 {
		return fmt.Errorf("%w: output.width must be at least 40, got %d", ErrInvalidConfig, c.Output.Width)
	}
	return nil
}

// StoragePath returns the configured storage location or the backend's
// default under the config directory. The memory backend has no path.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	switch c.Storage.Backend {
	case BackendSQLite:
		return DBPath()
	case BackendYAML:
		return filepath.Join(ConfigDir(), DefaultProfilesDir)
	}
	return ""
}

// DBPath returns the full path to the default SQLite database.
func DBPath() string {
	return filepath.Join(ConfigDir(), DefaultDBName)
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
