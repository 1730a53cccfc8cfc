// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Redis, Kafka, Query, Auth, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Query    QueryConfig    `yaml:"query"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Auth     AuthConfig     `yaml:"auth"`
	RPC      RPCConfig      `yaml:"rpc"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PostgresConfig holds PostgreSQL connection parameters for the catalog and
// API-key stores.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and compile-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumer_group"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	QueryEvents string `yaml:"query_events"`
}

// QueryConfig controls compile and search limits.
type QueryConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxResults   int `yaml:"max_results"`
	MaxTextLen   int `yaml:"max_text_len"`
}

// CatalogConfig controls the catalog lookup refresh loop.
type CatalogConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// AuthConfig controls API-key authentication on the HTTP API.
type AuthConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

// RPCConfig controls the internal JSON-over-TCP RPC listener.
type RPCConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment
// variable overrides, returning a Config populated with defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "streamfilter",
			User:            "streamfilter",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "streamfilter-group",
			Topics: KafkaTopics{
				QueryEvents: "query-events",
			},
		},
		Query: QueryConfig{
			DefaultLimit: 20,
			MaxResults:   100,
			MaxTextLen:   512,
		},
		Catalog: CatalogConfig{
			RefreshInterval: 15 * time.Minute,
		},
		Auth: AuthConfig{
			RateLimitWindow: time.Minute,
		},
		RPC: RPCConfig{
			Port: 9000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SF_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	envStr("SF_POSTGRES_HOST", &cfg.Postgres.Host)
	envInt("SF_POSTGRES_PORT", &cfg.Postgres.Port)
	envStr("SF_POSTGRES_DATABASE", &cfg.Postgres.Database)
	envStr("SF_POSTGRES_USER", &cfg.Postgres.User)
	envStr("SF_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	envStr("SF_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)

	envInt("SF_SERVER_PORT", &cfg.Server.Port)
	envStr("SF_REDIS_ADDR", &cfg.Redis.Addr)
	envStr("SF_REDIS_PASSWORD", &cfg.Redis.Password)

	if v := os.Getenv("SF_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}

	envBool("SF_AUTH_ENABLED", &cfg.Auth.Enabled)
	envBool("SF_RPC_ENABLED", &cfg.RPC.Enabled)
	envInt("SF_RPC_PORT", &cfg.RPC.Port)
	envInt("SF_METRICS_PORT", &cfg.Metrics.Port)
	envStr("SF_LOGGING_LEVEL", &cfg.Logging.Level)
	envStr("SF_LOGGING_FORMAT", &cfg.Logging.Format)
}

func envStr(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(name string, dst *bool) {
	switch os.Getenv(name) {
	case "true", "1":
		*dst = true
	case "false", "0":
		*dst = false
	}
}
