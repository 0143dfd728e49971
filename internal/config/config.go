package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	// Deployment profile. Values: "lite" (embedded storage, single-node)
	// or "standard" (Postgres+Redis, HA).
	Profile DeploymentProfile `mapstructure:"profile"`

	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Matching   MatchingConfig   `mapstructure:"matching"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Log        LogConfig        `mapstructure:"log"`
	Cache      CacheConfig      `mapstructure:"cache"`
	App        AppConfig        `mapstructure:"app"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	RateLimit  RateLimitConfig  `mapstructure:"rateLimit"`
	Auth       AuthConfig       `mapstructure:"auth"`
}

// APIKeyConfig describes one static API-key credential, loaded at startup
// into middleware.AuthConfig. Stands in for a real identity provider,
// mirroring the teacher's own static-credential Bearer path.
type APIKeyConfig struct {
	Key    string   `mapstructure:"key"`
	UserID string   `mapstructure:"user_id"`
	Email  string   `mapstructure:"email"`
	Roles  []string `mapstructure:"roles"`
}

// AuthConfig holds the static API-key directory cmd/server loads into
// middleware.AuthConfig at startup.
type AuthConfig struct {
	APIKeys []APIKeyConfig `mapstructure:"api_keys"`
}

// DeploymentProfile represents the deployment profile type.
type DeploymentProfile string

const (
	// ProfileLite is single-node deployment with embedded storage (SQLite).
	// No external dependencies. Use case: development, small deployments.
	ProfileLite DeploymentProfile = "lite"

	// ProfileStandard is HA-ready deployment with external storage
	// (Postgres required, Redis optional). Use case: production.
	ProfileStandard DeploymentProfile = "standard"
)

// StorageConfig holds storage backend configuration.
type StorageConfig struct {
	// Backend determines storage implementation: "filesystem" (Lite,
	// backed by modernc.org/sqlite) or "postgres" (Standard).
	Backend        StorageBackend `mapstructure:"backend"`
	FilesystemPath string         `mapstructure:"filesystem_path"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port                    int           `mapstructure:"port"`
	Host                    string        `mapstructure:"host"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	IdleTimeout             time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout"`
	URL             string        `mapstructure:"url"`
}

// RedisConfig holds Redis connection settings. They are loaded with the
// rest of the config; no component in this repository connects to Redis.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// MatchingWeights holds the per-factor weights matching.Engine scores
// candidates with; they must sum to 1.
type MatchingWeights struct {
	Distance    float64 `mapstructure:"distance"`
	Time        float64 `mapstructure:"time"`
	Category    float64 `mapstructure:"category"`
	Capacity    float64 `mapstructure:"capacity"`
	Reliability float64 `mapstructure:"reliability"`
}

// MatchingConfig configures internal/matching.Engine.
type MatchingConfig struct {
	MaxRadiusMiles     float64         `mapstructure:"max_radius_miles"`
	TopRecommendations int             `mapstructure:"top_recommendations"`
	Weights            MatchingWeights `mapstructure:"weights"`
}

// ComplianceConfig configures internal/compliance.Engine's thresholds.
type ComplianceConfig struct {
	MaxRefrigerationWindow time.Duration `mapstructure:"max_refrigeration_window"`
	MinExpirationBuffer    time.Duration `mapstructure:"min_expiration_buffer"`
	MaxDistanceMiles       float64       `mapstructure:"max_distance_miles"`
	BlockedKeywords        []string      `mapstructure:"blocked_keywords"`
}

// ProviderConfig is the timeout/cache pair shared by every provider
// adapter (geocoding, enrichment, notification).
type ProviderConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// ProvidersConfig configures internal/providers' three adapter kinds.
type ProvidersConfig struct {
	Location     ProviderConfig `mapstructure:"location"`
	Enrichment   ProviderConfig `mapstructure:"enrichment"`
	Notification ProviderConfig `mapstructure:"notification"`
}

// AuditConfig configures internal/audit.Log retention.
type AuditConfig struct {
	RetentionDays int `mapstructure:"retention_days"`
}

// LogConfig holds logging-related configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// CacheConfig holds in-process cache settings. They are loaded with the
// rest of the config; no component in this repository reads them.
type CacheConfig struct {
	DefaultTTL      time.Duration `mapstructure:"default_ttl"`
	MaxTTL          time.Duration `mapstructure:"max_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxKeys         int           `mapstructure:"max_keys"`
	EnableMetrics   bool          `mapstructure:"enable_metrics"`
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Name          string        `mapstructure:"name"`
	Version       string        `mapstructure:"version"`
	Environment   string        `mapstructure:"environment"`
	Debug         bool          `mapstructure:"debug"`
	Timezone      string        `mapstructure:"timezone"`
	MaxWorkers    int           `mapstructure:"max_workers"`
	WorkerTimeout time.Duration `mapstructure:"worker_timeout"`
}

// MetricsConfig holds metrics-related configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// RateLimitConfig configures internal/api/middleware.RateLimitMiddleware.
type RateLimitConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	PerMinute int  `mapstructure:"per_minute"`
	Burst     int  `mapstructure:"burst"`
}

// StorageBackend represents the storage implementation.
type StorageBackend string

const (
	// StorageBackendFilesystem uses embedded storage (SQLite). Used by
	// the Lite profile.
	StorageBackendFilesystem StorageBackend = "filesystem"

	// StorageBackendPostgres uses PostgreSQL external storage. Used by
	// the Standard profile.
	StorageBackendPostgres StorageBackend = "postgres"
)

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
		viper.SetConfigType("yaml")

		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigFromEnv loads configuration from environment variables only.
func LoadConfigFromEnv() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("profile", "standard")
	viper.SetDefault("storage.backend", "postgres")
	viper.SetDefault("storage.filesystem_path", "/data/control-plane.db")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.graceful_shutdown_timeout", "30s")

	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "control_plane")
	viper.SetDefault("database.username", "dev")
	viper.SetDefault("database.password", "dev")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_connections", 25)
	viper.SetDefault("database.min_connections", 5)
	viper.SetDefault("database.max_conn_lifetime", "1h")
	viper.SetDefault("database.max_conn_idle_time", "30m")
	viper.SetDefault("database.connect_timeout", "10s")
	viper.SetDefault("database.query_timeout", "30s")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 5)
	viper.SetDefault("redis.dial_timeout", "5s")
	viper.SetDefault("redis.read_timeout", "3s")
	viper.SetDefault("redis.write_timeout", "3s")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.min_retry_backoff", "100ms")
	viper.SetDefault("redis.max_retry_backoff", "500ms")

	viper.SetDefault("matching.max_radius_miles", 50)
	viper.SetDefault("matching.top_recommendations", 5)
	viper.SetDefault("matching.weights.distance", 0.30)
	viper.SetDefault("matching.weights.time", 0.25)
	viper.SetDefault("matching.weights.category", 0.20)
	viper.SetDefault("matching.weights.capacity", 0.15)
	viper.SetDefault("matching.weights.reliability", 0.10)

	viper.SetDefault("compliance.max_refrigeration_window", "2h")
	viper.SetDefault("compliance.min_expiration_buffer", "24h")
	viper.SetDefault("compliance.max_distance_miles", 100)
	viper.SetDefault("compliance.blocked_keywords", []string{})

	viper.SetDefault("providers.location.timeout", "5s")
	viper.SetDefault("providers.location.cache_ttl", "24h")
	viper.SetDefault("providers.enrichment.timeout", "5s")
	viper.SetDefault("providers.enrichment.cache_ttl", "1h")
	viper.SetDefault("providers.notification.timeout", "5s")
	viper.SetDefault("providers.notification.cache_ttl", "0s")

	viper.SetDefault("audit.retention_days", 730)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file_path", "")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 28)
	viper.SetDefault("log.compress", true)

	viper.SetDefault("cache.default_ttl", "1h")
	viper.SetDefault("cache.max_ttl", "24h")
	viper.SetDefault("cache.cleanup_interval", "10m")
	viper.SetDefault("cache.max_keys", 10000)
	viper.SetDefault("cache.enable_metrics", true)

	viper.SetDefault("app.name", "control-plane")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.timezone", "UTC")
	viper.SetDefault("app.max_workers", 10)
	viper.SetDefault("app.worker_timeout", "5m")

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.port", 8080)

	viper.SetDefault("rateLimit.enabled", true)
	viper.SetDefault("rateLimit.per_minute", 120)
	viper.SetDefault("rateLimit.burst", 30)

	viper.SetDefault("auth.api_keys", []map[string]any{})
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.validateProfile(); err != nil {
		return fmt.Errorf("profile validation failed: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if c.Profile == ProfileStandard {
		if c.Database.Driver == "" {
			return fmt.Errorf("database driver cannot be empty (required for standard profile)")
		}
		if c.Database.Host == "" {
			return fmt.Errorf("database host cannot be empty (required for standard profile)")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name cannot be empty (required for standard profile)")
		}
	}

	if err := c.validateMatchingWeights(); err != nil {
		return fmt.Errorf("matching weights validation failed: %w", err)
	}

	if c.Log.Level == "" {
		return fmt.Errorf("log level cannot be empty")
	}

	if c.App.Name == "" {
		return fmt.Errorf("app name cannot be empty")
	}

	return nil
}

// validateMatchingWeights checks that matching.Weights sums to 1, allowing
// for floating-point rounding slack.
func (c *Config) validateMatchingWeights() error {
	w := c.Matching.Weights
	sum := w.Distance + w.Time + w.Category + w.Capacity + w.Reliability
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("matching weights must sum to 1 (got %.4f)", sum)
	}
	return nil
}

// validateProfile validates deployment profile configuration.
func (c *Config) validateProfile() error {
	if c.Profile != ProfileLite && c.Profile != ProfileStandard {
		return fmt.Errorf("invalid deployment profile: %s (must be 'lite' or 'standard')", c.Profile)
	}

	if c.Storage.Backend != StorageBackendFilesystem && c.Storage.Backend != StorageBackendPostgres {
		return fmt.Errorf("invalid storage backend: %s (must be 'filesystem' or 'postgres')", c.Storage.Backend)
	}

	switch c.Profile {
	case ProfileLite:
		if c.Storage.Backend != StorageBackendFilesystem {
			return fmt.Errorf("lite profile requires storage.backend='filesystem' (got '%s')", c.Storage.Backend)
		}
		if c.Storage.FilesystemPath == "" {
			return fmt.Errorf("lite profile requires storage.filesystem_path")
		}
	case ProfileStandard:
		if c.Storage.Backend != StorageBackendPostgres {
			return fmt.Errorf("standard profile requires storage.backend='postgres' (got '%s')", c.Storage.Backend)
		}
	}

	return nil
}

// GetDatabaseURL constructs the database URL from configuration.
func (c *Config) GetDatabaseURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}

	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("%s://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.Driver,
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		sslMode,
	)
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDebug returns true if debug mode is enabled.
func (c *Config) IsDebug() bool {
	return c.App.Debug || c.IsDevelopment()
}

// IsLiteProfile returns true if running in the Lite deployment profile.
func (c *Config) IsLiteProfile() bool {
	return c.Profile == ProfileLite
}

// IsStandardProfile returns true if running in the Standard deployment profile.
func (c *Config) IsStandardProfile() bool {
	return c.Profile == ProfileStandard
}

// RequiresPostgres returns true if Postgres is required for this profile.
func (c *Config) RequiresPostgres() bool {
	return c.Profile == ProfileStandard
}

// UsesEmbeddedStorage returns true if using embedded SQLite storage.
func (c *Config) UsesEmbeddedStorage() bool {
	return c.Storage.Backend == StorageBackendFilesystem
}

// UsesPostgresStorage returns true if using PostgreSQL storage.
func (c *Config) UsesPostgresStorage() bool {
	return c.Storage.Backend == StorageBackendPostgres
}

// GetProfileName returns the human-readable profile name.
func (c *Config) GetProfileName() string {
	switch c.Profile {
	case ProfileLite:
		return "Lite"
	case ProfileStandard:
		return "Standard"
	default:
		return string(c.Profile)
	}
}
