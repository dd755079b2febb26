package config

import (
	"errors"
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultServiceName  = "search-analytics"
	defaultServicePort  = 8094
	defaultVersion      = "0.1.0"
	defaultBufferSize   = 1000
	defaultFlushThresh  = 500
	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"
	defaultDBHost       = "localhost"
	defaultDBPort       = 5432
	defaultDBName       = "search_analytics"
	defaultDBUser       = "postgres"
	defaultDBSSLMode    = "disable"
	defaultRedisAddress = "localhost:6379"

	defaultFlushIntervalS = 1

	defaultDDoSWindow        = 60 * time.Second
	defaultDDoSMaxRequests   = 100
	defaultDDoSBlockDuration = 5 * time.Minute

	defaultQueryTimeout = 5 * time.Second
)

// ErrMissingJWTSecret is returned when no JWT secret is configured.
var ErrMissingJWTSecret = errors.New("service.jwt_secret is required")

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	DDoS      DDoSConfig      `yaml:"ddos"`
	Geo       GeoConfig       `yaml:"geo"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name           string        `yaml:"name"`
	Version        string        `yaml:"version"`
	Port           int           `env:"SEARCH_ANALYTICS_PORT"   yaml:"port"`
	Debug          bool          `env:"APP_DEBUG"               yaml:"debug"`
	JWTSecret      string        `env:"SEARCH_ANALYTICS_SECRET" yaml:"jwt_secret"`
	BufferSize     int           `yaml:"buffer_size"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	FlushThreshold int           `yaml:"flush_threshold"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_SEARCH_ANALYTICS_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_SEARCH_ANALYTICS_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_SEARCH_ANALYTICS_USER"     yaml:"user"`
	Password string `env:"POSTGRES_SEARCH_ANALYTICS_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_SEARCH_ANALYTICS_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_SEARCH_ANALYTICS_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// MigrateURL returns the connection URL used by the migrate command.
func (d *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// RedisConfig holds the optional shared rate-limit counter store.
// When disabled, counters are process-local and each server instance
// enforces its own independent limit.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED"  yaml:"enabled"`
	Address  string `env:"REDIS_ADDRESS"  yaml:"address"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB"       yaml:"db"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DDoSConfig holds DDoS guard configuration.
type DDoSConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Window        time.Duration `yaml:"window"`
	MaxRequests   int           `yaml:"max_requests"`
	BlockDuration time.Duration `yaml:"block_duration"`
	Whitelist     []string      `env:"DDOS_WHITELIST" yaml:"whitelist"`
	Blacklist     []string      `env:"DDOS_BLACKLIST" yaml:"blacklist"`
}

// CountryLimit is a per-country rate limit profile.
type CountryLimit struct {
	Window time.Duration `yaml:"window"`
	Max    int           `yaml:"max"`
}

// GeoConfig holds country-based access configuration. The country code is
// read from a request header and is a spoofable signal, not a verified one.
type GeoConfig struct {
	Enabled bool `yaml:"enabled"`
	// AllowedCountries is accepted for forward compatibility but is not
	// enforced; only BlockedCountries and CountryLimits take effect.
	AllowedCountries []string                `yaml:"allowed_countries"`
	BlockedCountries []string                `env:"GEO_BLOCKED_COUNTRIES" yaml:"blocked_countries"`
	CountryLimits    map[string]CountryLimit `yaml:"country_limits"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from the specified path, applies defaults, and
// re-applies environment overrides so the environment always wins.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := load(path, cfg); err != nil {
		return nil, err
	}
	setDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setDDoSDefaults(&cfg.DDoS)
	setLoggingDefaults(&cfg.Logging)
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
	if svc.BufferSize == 0 {
		svc.BufferSize = defaultBufferSize
	}
	if svc.FlushInterval == 0 {
		svc.FlushInterval = defaultFlushIntervalS * time.Second
	}
	if svc.FlushThreshold == 0 {
		svc.FlushThreshold = defaultFlushThresh
	}
	if svc.QueryTimeout == 0 {
		svc.QueryTimeout = defaultQueryTimeout
	}
}

func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.Address == "" {
		r.Address = defaultRedisAddress
	}
}

func setDDoSDefaults(d *DDoSConfig) {
	if d.Window == 0 {
		d.Window = defaultDDoSWindow
	}
	if d.MaxRequests == 0 {
		d.MaxRequests = defaultDDoSMaxRequests
	}
	if d.BlockDuration == 0 {
		d.BlockDuration = defaultDDoSBlockDuration
	}
}

func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port: %d is out of range", c.Service.Port)
	}
	if c.Service.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}
