// Package config loads service configuration from file and environment.
package config

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vitalle-health/be-negotiations/internal/platform/errors"
)

// Config is the root configuration for the negotiations service.
type Config struct {
	Service     ServiceConfig     `mapstructure:"service"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Negotiation NegotiationConfig `mapstructure:"negotiation"`
}

// ServiceConfig identifies the running service instance.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Database    string        `mapstructure:"database"`
	SSLMode     string        `mapstructure:"ssl_mode"`
	MaxConns    int32         `mapstructure:"max_conns"`
	MinConns    int32         `mapstructure:"min_conns"`
	MaxConnTime time.Duration `mapstructure:"max_conn_time"`
	MaxIdleTime time.Duration `mapstructure:"max_idle_time"`
}

// NATSConfig holds the notification transport settings. An empty URL
// disables publishing (notifications are then dropped with a log line).
type NATSConfig struct {
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name"`
}

// SchedulerConfig controls the deferred task worker pool.
type SchedulerConfig struct {
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
}

// NegotiationConfig holds workflow timing policy.
type NegotiationConfig struct {
	// FormalizationDelay is the pause before the one-shot formalization
	// task runs, letting approval notifications settle first.
	FormalizationDelay time.Duration `mapstructure:"formalization_delay"`
	// ExpirationThreshold is the age after which an approved negotiation
	// still pending its aditivo is swept to expired.
	ExpirationThreshold time.Duration `mapstructure:"expiration_threshold"`
	// EscalationInterval is the fixed delay between recurring escalation
	// alerts on an unresolved contract amendment.
	EscalationInterval time.Duration `mapstructure:"escalation_interval"`
	// EscalationMaxAttempts bounds how many escalation alerts a single
	// target receives.
	EscalationMaxAttempts int `mapstructure:"escalation_max_attempts"`
}

// Load reads config.yaml (./ or ./configs) and applies environment
// overrides; NEGOTIATION_SERVER_PORT overrides server.port and so on.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	v.SetEnvPrefix("negotiation")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine: defaults plus env fully configure the service.
		var notFound viper.ConfigFileNotFoundError
		if !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal config")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "be-negotiations")
	v.SetDefault("service.version", "dev")
	v.SetDefault("service.environment", "development")
	v.SetDefault("service.log_level", "info")

	v.SetDefault("server.port", 8087)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.database", "negotiations")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.name", "be-negotiations")

	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.queue_size", 256)
	v.SetDefault("scheduler.max_attempts", 3)
	v.SetDefault("scheduler.retry_delay", 5*time.Second)

	v.SetDefault("negotiation.formalization_delay", 30*time.Second)
	v.SetDefault("negotiation.expiration_threshold", 30*24*time.Hour)
	v.SetDefault("negotiation.escalation_interval", 24*time.Hour)
	v.SetDefault("negotiation.escalation_max_attempts", 3)
}
