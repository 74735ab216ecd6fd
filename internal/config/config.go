// Package config loads service configuration from an optional YAML file and
// the environment. Environment variables use the NOTIFY_ prefix with "__" as
// the section separator, e.g. NOTIFY_SERVER__PORT=8080.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the root service configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	CORS          CORSConfig          `koanf:"cors"`
	Admin         AdminConfig         `koanf:"admin"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
	MigrateOnStart  bool          `koanf:"migrate_on_start"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// AdminConfig guards the reconciliation surface. An empty token disables it.
type AdminConfig struct {
	Token string `koanf:"token"`
}

// NotificationsConfig contains the delivery pipeline settings.
type NotificationsConfig struct {
	Email    EmailConfig    `koanf:"email"`
	Sweeper  SweeperConfig  `koanf:"sweeper"`
	Batching BatchingConfig `koanf:"batching"`
}

// EmailConfig contains SMTP transport settings.
type EmailConfig struct {
	Enabled     bool          `koanf:"enabled"`
	SMTPHost    string        `koanf:"smtp_host"`
	SMTPPort    int           `koanf:"smtp_port"`
	SMTPUser    string        `koanf:"smtp_user"`
	SMTPPass    string        `koanf:"smtp_password"`
	FromAddress string        `koanf:"from_address"`
	RateLimit   float64       `koanf:"rate_limit"`
	SendTimeout time.Duration `koanf:"send_timeout"`
}

// SweeperConfig contains retry sweeper settings.
type SweeperConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"gt=0"`
	BatchSize int           `koanf:"batch_size" validate:"gt=0"`
}

// BatchingConfig overrides per-event batching windows, keyed by event type.
type BatchingConfig struct {
	Windows map[string]time.Duration `koanf:"windows"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Notifications: NotificationsConfig{
			Email: EmailConfig{
				SMTPPort:    587,
				SendTimeout: 30 * time.Second,
			},
			Sweeper: SweeperConfig{
				Interval:  10 * time.Second,
				BatchSize: 50,
			},
		},
	}
}

// Load reads configuration from the optional YAML file at path, then from
// the environment. Later sources win.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("NOTIFY_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "NOTIFY_")
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Notifications.Email.Enabled {
		if c.Notifications.Email.SMTPHost == "" {
			return fmt.Errorf("invalid configuration: notifications.email.smtp_host is required when email is enabled")
		}
		if c.Notifications.Email.FromAddress == "" {
			return fmt.Errorf("invalid configuration: notifications.email.from_address is required when email is enabled")
		}
	}

	for name, window := range c.Notifications.Batching.Windows {
		if window <= 0 {
			return fmt.Errorf("invalid configuration: batching window for %s must be positive", name)
		}
	}
	return nil
}
