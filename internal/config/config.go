// Package config loads the bookstore service configuration.
package config

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
	Orders   OrdersConfig   `yaml:"orders"`
	LogLevel string         `yaml:"log_level"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// RateLimit is the sustained requests per second allowed per client
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
	// StaticDir, when set, is served at / (the browser front-end build)
	StaticDir string `yaml:"static_dir"`
}

type DatabaseConfig struct {
	// Driver is "mysql" or "sqlite"
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	// Path is the SQLite database file (":memory:" for a throwaway database)
	Path           string        `yaml:"path"`
	MaxOpenConns   int           `yaml:"max_open_conns"`
	ConnectRetries int           `yaml:"connect_retries"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
	MigrateOnStart bool          `yaml:"migrate_on_start"`
	MigrateRetries int           `yaml:"migrate_retries"`
}

type RedisConfig struct {
	// Addr empty keeps the book cache and idempotency keys in process
	Addr    string        `yaml:"addr"`
	BookTTL time.Duration `yaml:"book_ttl"`
	// MemorySize caps the in-process cache per TTL class
	MemorySize int `yaml:"memory_size"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type OrdersConfig struct {
	// PlacementTimeout bounds one placement transaction, lock waits included
	PlacementTimeout time.Duration `yaml:"placement_timeout"`
	IdempotencyTTL   time.Duration `yaml:"idempotency_ttl"`
}

// DefaultConfig returns a Config with local development defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      "3000",
			RateLimit: 10,
			RateBurst: 20,
		},
		Database: DatabaseConfig{
			Driver:         "mysql",
			Host:           "127.0.0.1",
			Port:           "3306",
			User:           "root",
			Name:           "bookstore",
			Path:           "bookstore.db",
			MaxOpenConns:   10,
			ConnectRetries: 10,
			RetryInterval:  3 * time.Second,
			MigrateOnStart: true,
			MigrateRetries: 3,
		},
		Redis: RedisConfig{
			BookTTL:    time.Minute,
			MemorySize: 10000,
		},
		Kafka: KafkaConfig{
			Enabled: false,
			Brokers: []string{"localhost:9092", "localhost:9093", "localhost:9094"},
			Topic:   "order-topic",
			GroupID: "bookstore-catalog-cache",
		},
		Auth: AuthConfig{
			JWTSecret: "jwtSecret",
			TokenTTL:  30 * 24 * time.Hour,
		},
		Orders: OrdersConfig{
			PlacementTimeout: 10 * time.Second,
			IdempotencyTTL:   24 * time.Hour,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Server.Port)
	str("DB_DRIVER", &c.Database.Driver)
	str("DB_HOST", &c.Database.Host)
	str("DB_PORT", &c.Database.Port)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Name)
	str("DB_PATH", &c.Database.Path)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v, ok := lookup("KAFKA_ENABLED"); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("KAFKA_ENABLED: %w", err)
		}
		c.Kafka.Enabled = enabled
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst <= 0 {
		return fmt.Errorf("server.rate_limit and server.rate_burst must be positive")
	}
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for mysql")
		}
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver must be mysql or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("kafka.brokers and kafka.topic are required when kafka is enabled")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.Redis.Addr == "" && c.Redis.MemorySize <= 0 {
		return fmt.Errorf("redis.memory_size must be positive without redis.addr")
	}
	if c.Orders.PlacementTimeout <= 0 {
		return fmt.Errorf("orders.placement_timeout must be positive")
	}
	if c.Orders.IdempotencyTTL <= 0 {
		return fmt.Errorf("orders.idempotency_ttl must be positive")
	}
	return nil
}
