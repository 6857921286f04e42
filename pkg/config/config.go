// Package config loads the service configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/embedding"
	"github.com/FACorreiaa/echo-reconcile/internal/domain/reconcile/matcher"
)

// Config is the root configuration.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Profiling     ProfilingConfig     `mapstructure:"profiling"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Matching      MatchingConfig      `mapstructure:"matching"`
}

type ServerConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	RateLimitPerSecond int    `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int    `mapstructure:"rate_limit_burst"`
	MaxBodyBytes       int64  `mapstructure:"max_body_bytes"`
}

type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DatabaseConfig holds the Postgres connection. An empty URL disables persistence.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// DSN returns the connection string.
func (d DatabaseConfig) DSN() string {
	return d.URL
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

type ObservabilityConfig struct {
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}

type EmbeddingConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	MaxInFlight       int           `mapstructure:"max_in_flight"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	MaxRetries        uint64        `mapstructure:"max_retries"`
	ItemTimeout       time.Duration `mapstructure:"item_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

// Pipeline converts the section into pipeline settings.
func (e EmbeddingConfig) Pipeline() embedding.Config {
	return embedding.Config{
		MaxInFlight:       e.MaxInFlight,
		BaseDelay:         e.BaseDelay,
		MaxRetries:        e.MaxRetries,
		ItemTimeout:       e.ItemTimeout,
		RequestsPerSecond: e.RequestsPerSecond,
		CacheTTL:          e.CacheTTL,
	}
}

type MatchingConfig struct {
	Strategy       string  `mapstructure:"strategy"`
	LooseRatio     float64 `mapstructure:"loose_ratio"`
	ExactAbs       float64 `mapstructure:"exact_abs"`
	ExactBonus     float64 `mapstructure:"exact_bonus"`
	ExactThreshold float64 `mapstructure:"exact_threshold"`
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
}

// Tolerances converts the section into matcher tolerances.
func (m MatchingConfig) Tolerances() matcher.Tolerances {
	return matcher.NewTolerances(m.LooseRatio, m.ExactAbs, m.ExactBonus, m.ExactThreshold, m.FuzzyThreshold)
}

// envBindings maps flat environment variables onto nested keys.
var envBindings = map[string]string{
	"server.host":                   "SERVER_HOST",
	"server.port":                   "SERVER_PORT",
	"database.url":                  "DATABASE_URL",
	"embedding.api_key":             "GEMINI_API_KEY",
	"embedding.model":               "EMBEDDING_MODEL",
	"matching.strategy":             "MATCHING_STRATEGY",
	"profiling.enabled":             "PROFILING_ENABLED",
	"observability.metrics_enabled": "METRICS_ENABLED",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_per_second", 20)
	v.SetDefault("server.rate_limit_burst", 40)
	v.SetDefault("server.max_body_bytes", 10<<20)

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.port", 6060)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", 5*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 10*time.Minute)

	v.SetDefault("observability.metrics_enabled", true)

	pipeline := embedding.DefaultConfig()
	v.SetDefault("embedding.model", embedding.DefaultGeminiModel)
	v.SetDefault("embedding.max_in_flight", pipeline.MaxInFlight)
	v.SetDefault("embedding.base_delay", pipeline.BaseDelay)
	v.SetDefault("embedding.max_retries", pipeline.MaxRetries)
	v.SetDefault("embedding.item_timeout", pipeline.ItemTimeout)
	v.SetDefault("embedding.requests_per_second", pipeline.RequestsPerSecond)
	v.SetDefault("embedding.cache_ttl", pipeline.CacheTTL)

	v.SetDefault("matching.strategy", matcher.StrategyGreedy)
	v.SetDefault("matching.loose_ratio", 0.2)
	v.SetDefault("matching.exact_abs", 0.5)
	v.SetDefault("matching.exact_bonus", 0.1)
	v.SetDefault("matching.exact_threshold", 0.45)
	v.SetDefault("matching.fuzzy_threshold", 0.85)
}

// Load reads configuration. The YAML file named by ECHO_CONFIG is optional;
// when ECHO_CONFIG is unset, ./config.yaml is used if present. Environment
// variables win over the file: nested keys use the ECHO_ prefix
// (ECHO_SERVER_PORT) and the common names in envBindings are also honored.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("ECHO_CONFIG"))
}

// LoadFile is Load with an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ECHO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "ECHO_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if _, err := matcher.New(c.Matching.Strategy, c.Matching.Tolerances()); err != nil {
		return fmt.Errorf("matching: %w", err)
	}
	if err := c.Matching.Tolerances().Validate(); err != nil {
		return fmt.Errorf("matching: %w", err)
	}
	if err := c.Embedding.Pipeline().Validate(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	return nil
}
