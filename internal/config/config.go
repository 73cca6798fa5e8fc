package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Log        LogConfig        `mapstructure:"log"`
}

// AppConfig holds application configuration
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	HTTP HTTPServerConfig `mapstructure:"http"`
}

// HTTPServerConfig holds HTTP server configuration
type HTTPServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StoreConfig holds remote store configuration
type StoreConfig struct {
	// Backend selects the row store implementation: rest, postgres or memory
	Backend string `mapstructure:"backend"`
	// Table is the remote table holding telemetry rows
	Table string `mapstructure:"table"`
	// FetchLimit caps the rows fetched per snapshot; 0 fetches all rows
	FetchLimit   int             `mapstructure:"fetch_limit"`
	MaxRetries   int             `mapstructure:"max_retries"`
	RetryBackoff time.Duration   `mapstructure:"retry_backoff"`
	REST         RESTStoreConfig `mapstructure:"rest"`
	Postgres     PostgresConfig  `mapstructure:"postgres"`
	// SamplePath optionally seeds the memory backend from a CSV file
	SamplePath string `mapstructure:"sample_path"`
}

// RESTStoreConfig holds REST store configuration. URL and APIKey carry no
// defaults, deployments must supply them.
type RESTStoreConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// CacheConfig holds snapshot cache configuration
type CacheConfig struct {
	// TTL bounds snapshot staleness; zero or negative disables caching
	TTL time.Duration `mapstructure:"ttl"`
}

// ThresholdsConfig holds the event derivation thresholds
type ThresholdsConfig struct {
	EngineOverheatC      float64            `mapstructure:"engine_overheat_c"`
	HarshAccelG          float64            `mapstructure:"harsh_accel_g"`
	EyeClosedSec         float64            `mapstructure:"eye_closed_sec"`
	DefaultSpeedLimitKmh float64            `mapstructure:"default_speed_limit_kmh"`
	SpeedLimitsKmh       map[string]float64 `mapstructure:"speed_limits_kmh"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables.
// If configPath is provided, it will be used to load the configuration from that specific file.
// Otherwise, it will look for config.yaml in standard locations.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set up environment variables
	v.SetEnvPrefix("TELEMATICS")
	v.AutomaticEnv()

	// Enable environment variable binding
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	setDefaults(v)

	// If a config path is provided, use that
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Otherwise look for config.yaml in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	// Read the config file if it exists
	err := v.ReadInConfig()
	if err != nil {
		// If we have a specific config path and it doesn't exist, return error
		if configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// For default config paths, it's okay if no config file is found
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Unmarshal the config into the Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the selected store backend has everything it needs.
// Credentials are never defaulted, so they are checked here.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "rest":
		if c.Store.REST.URL == "" {
			return fmt.Errorf("store.rest.url is required for the rest backend")
		}
		if c.Store.REST.APIKey == "" {
			return fmt.Errorf("store.rest.api_key is required for the rest backend")
		}
	case "postgres":
		if c.Store.Postgres.Password == "" {
			return fmt.Errorf("store.postgres.password is required for the postgres backend")
		}
	case "memory":
		// Nothing required, runs on generated or CSV sample data
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	if c.Store.Table == "" {
		return fmt.Errorf("store.table must not be empty")
	}
	if c.Store.FetchLimit < 0 {
		return fmt.Errorf("store.fetch_limit must not be negative")
	}
	if c.Store.MaxRetries < 0 {
		return fmt.Errorf("store.max_retries must not be negative")
	}

	return nil
}

// setDefaults sets default values for the configuration
func setDefaults(v *viper.Viper) {
	// Set default values for the config
	v.SetDefault("app.name", "telematics-dashboard")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.version", "0.1.0")

	// Server defaults
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", 30*time.Second)
	v.SetDefault("server.http.write_timeout", 30*time.Second)

	// Store defaults. Credentials default to empty on purpose, deployments
	// must supply them; registering the keys keeps env binding working.
	v.SetDefault("store.backend", "rest")
	v.SetDefault("store.table", "telematics")
	v.SetDefault("store.fetch_limit", 500)
	v.SetDefault("store.max_retries", 3)
	v.SetDefault("store.retry_backoff", 200*time.Millisecond)
	v.SetDefault("store.rest.url", "")
	v.SetDefault("store.rest.api_key", "")
	v.SetDefault("store.rest.timeout", 10*time.Second)
	v.SetDefault("store.postgres.host", "localhost")
	v.SetDefault("store.postgres.port", 5432)
	v.SetDefault("store.postgres.user", "postgres")
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.dbname", "telematics")
	v.SetDefault("store.postgres.sslmode", "disable")
	v.SetDefault("store.sample_path", "")

	// Cache defaults
	v.SetDefault("cache.ttl", time.Minute)

	// Threshold defaults
	v.SetDefault("thresholds.engine_overheat_c", 120.0)
	v.SetDefault("thresholds.harsh_accel_g", 2.5)
	v.SetDefault("thresholds.eye_closed_sec", 2.5)
	v.SetDefault("thresholds.default_speed_limit_kmh", 100.0)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "json")
}
