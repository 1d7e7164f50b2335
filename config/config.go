// Package config holds the foundation engine configuration.
//
// Configuration is layered: built-in defaults, then an optional TOML file,
// then FOUNDATION_* environment variables. The scoring section is tunable at
// runtime through the file watcher (see watcher.go); everything else is read
// once at startup.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/evlocate/foundation/errors"
)

// Config represents the engine configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Contracts ContractsConfig `mapstructure:"contracts"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Retention RetentionConfig `mapstructure:"retention"`
	Sources   SourcesConfig   `mapstructure:"sources"`
}

// DatabaseConfig configures the SQLite metadata store
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP/WebSocket surface
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ContractsConfig locates the declarative contract definitions
type ContractsConfig struct {
	Path string `mapstructure:"path"` // TOML file with one [sources.<id>] table per contract
}

// ScoringConfig tunes the quality-score weighting.
// The defaults reproduce the published quality bands (one structural error
// costs 0.3, a warning 0.1, clamped to [0,1]); they are configuration, not
// contract, and may be recalibrated against real data.
type ScoringConfig struct {
	ErrorWeight       float64 `mapstructure:"error_weight"`
	WarningWeight     float64 `mapstructure:"warning_weight"`
	NearBoundFraction float64 `mapstructure:"near_bound_fraction"` // outer fraction of a numeric range treated as near-bound
}

// RetentionConfig configures the metadata retention sweep
type RetentionConfig struct {
	MaxAgeHours          int `mapstructure:"max_age_hours"`          // 0 disables the sweep
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"` // how often aged records are purged
}

// SourcesConfig configures outbound fetch behavior for the bundled clients
type SourcesConfig struct {
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"` // per-source polite rate limit
}

// MaxAge returns the retention cutoff as a duration, 0 when disabled
func (r RetentionConfig) MaxAge() time.Duration {
	return time.Duration(r.MaxAgeHours) * time.Hour
}

// SweepInterval returns the sweep cadence as a duration
func (r RetentionConfig) SweepInterval() time.Duration {
	return time.Duration(r.SweepIntervalSeconds) * time.Second
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "foundation.db")

	v.SetDefault("server.port", 8710)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("contracts.path", "contracts.toml")

	v.SetDefault("scoring.error_weight", 0.3)
	v.SetDefault("scoring.warning_weight", 0.1)
	v.SetDefault("scoring.near_bound_fraction", 0.10)

	v.SetDefault("retention.max_age_hours", 24*30) // keep a month of history
	v.SetDefault("retention.sweep_interval_seconds", 3600)

	v.SetDefault("sources.timeout_seconds", 30)
	v.SetDefault("sources.requests_per_minute", 30)
}

// Load reads configuration from defaults, config file, and environment
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("FOUNDATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	v.SetConfigName("foundation")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.foundation")
	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine - defaults plus env carry the day
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config file %s", configPath)
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &config, nil
}
