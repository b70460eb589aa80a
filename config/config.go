package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// IdempotencyConfig tunes the mediator's retry and replay budgets.
type IdempotencyConfig struct {
	// MaxRetries bounds how many times a FAILED operation may be re-executed.
	MaxRetries int `mapstructure:"max_retries"`
	// MaxReplays bounds how many times a stored SUCCESS response may be
	// re-served. Only consulted when ReplayBudgetCap is true.
	MaxReplays int `mapstructure:"max_replays"`
	// ReplayBudgetCap applies MaxReplays to SUCCESS replays. When false,
	// successful responses are replayed without limit.
	ReplayBudgetCap bool `mapstructure:"replay_budget_cap"`
	// LockMode selects how existing records are read: "row_exclusive"
	// (SELECT ... FOR UPDATE) or "none" (snapshot read).
	LockMode string `mapstructure:"lock_mode"`
	// CacheTTL is the Redis replay cache entry lifetime.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Lock modes for IdempotencyConfig.LockMode.
const (
	LockModeRowExclusive = "row_exclusive"
	LockModeNone         = "none"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: IDG_ (Idempotency Gateway).
// Nested keys use underscore: IDG_DATABASE_HOST, IDG_IDEMPOTENCY_MAX_RETRIES, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "idempotency_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("idempotency.max_retries", 3)
	v.SetDefault("idempotency.max_replays", 3)
	v.SetDefault("idempotency.replay_budget_cap", true)
	v.SetDefault("idempotency.lock_mode", LockModeRowExclusive)
	v.SetDefault("idempotency.cache_ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: IDG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("IDG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Idempotency.MaxRetries < 0 {
		return nil, fmt.Errorf("idempotency.max_retries must be >= 0, got %d", cfg.Idempotency.MaxRetries)
	}
	if cfg.Idempotency.MaxReplays < 0 {
		return nil, fmt.Errorf("idempotency.max_replays must be >= 0, got %d", cfg.Idempotency.MaxReplays)
	}
	if m := cfg.Idempotency.LockMode; m != LockModeRowExclusive && m != LockModeNone {
		return nil, fmt.Errorf("idempotency.lock_mode must be %q or %q, got %q", LockModeRowExclusive, LockModeNone, m)
	}

	return &cfg, nil
}
