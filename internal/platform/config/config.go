// Package config loads the service configuration.
//
// Sources, in increasing priority:
//  1. defaults
//  2. config.yaml (optional)
//  3. .env file (optional, loaded into the environment)
//  4. environment variables prefixed with TAXIREG_ (database.path -> TAXIREG_DATABASE_PATH)
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Log          LogConfig          `mapstructure:"log"`
	Otel         OtelConfig         `mapstructure:"otel"`
	Registration RegistrationConfig `mapstructure:"registration"`
	API          APIConfig          `mapstructure:"api"`
	S3           S3Config           `mapstructure:"s3"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Compliance   ComplianceConfig   `mapstructure:"compliance"`
	Email        EmailConfig        `mapstructure:"email"`
	Worker       WorkerConfig       `mapstructure:"worker"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains SQLite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// OtelConfig contains OpenTelemetry settings.
type OtelConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`
	Exporter       string `mapstructure:"exporter"` // stdout or otlp
}

// RegistrationConfig contains settings shared by every registration job.
type RegistrationConfig struct {
	MaxErrorsCount int `mapstructure:"max_errors_count"`
}

// APIConfig contains settings of the REST registration endpoint.
type APIConfig struct {
	MaxLicencesCount int           `mapstructure:"max_licences_count"`
	CleanupThreshold int           `mapstructure:"cleanup_threshold"`
	CleanupDelay     time.Duration `mapstructure:"cleanup_delay"`
	AuditBucket      string        `mapstructure:"audit_bucket"`
}

// S3Config contains object storage settings.
type S3Config struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// RedisConfig contains the licence lookup cache settings. An empty URL
// disables the cache.
type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

// ComplianceConfig contains the remote compliance service settings. An empty
// base URL disables remote cache purges.
type ComplianceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EmailConfig contains SMTP settings. An empty host disables emails.
type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// WorkerConfig contains the registration worker pool and cleanup queue
// settings.
type WorkerConfig struct {
	PoolSize       int           `mapstructure:"pool_size"`
	CleanupWorkers int           `mapstructure:"cleanup_workers"`
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout"`
}

// Load reads configuration from defaults, file and environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("TAXIREG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for configuration errors that would break registration.
func (c *Config) Validate() error {
	if c.Registration.MaxErrorsCount < 1 {
		return fmt.Errorf("registration.max_errors_count must be positive")
	}
	if c.API.MaxLicencesCount < 1 {
		return fmt.Errorf("api.max_licences_count must be positive")
	}
	if c.Worker.PoolSize < 1 {
		return fmt.Errorf("worker.pool_size must be positive")
	}
	if c.Otel.Exporter != "stdout" && c.Otel.Exporter != "otlp" {
		return fmt.Errorf("otel.exporter must be stdout or otlp, got %q", c.Otel.Exporter)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.path", "taxireg.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("otel.service_name", "taxireg")
	v.SetDefault("otel.service_version", "0.1.0")
	v.SetDefault("otel.environment", "development")
	v.SetDefault("otel.exporter", "stdout")

	v.SetDefault("registration.max_errors_count", 100)

	v.SetDefault("api.max_licences_count", 50000)
	v.SetDefault("api.cleanup_threshold", 10000)
	v.SetDefault("api.cleanup_delay", 15*time.Minute)
	v.SetDefault("api.audit_bucket", "taxireg-api-audit")

	v.SetDefault("s3.region", "eu-west-2")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.use_path_style", false)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("compliance.base_url", "")
	v.SetDefault("compliance.timeout", 5*time.Second)

	v.SetDefault("email.host", "")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "no-reply@taxireg.local")

	v.SetDefault("worker.pool_size", 8)
	v.SetDefault("worker.cleanup_workers", 2)
	v.SetDefault("worker.cleanup_timeout", 2*time.Minute)
}
