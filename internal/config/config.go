package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Logging LoggingConfig `mapstructure:"logging"`
	Usage   UsageConfig   `mapstructure:"usage_tracking"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Limits  []LimitConfig `mapstructure:"practice_limits"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	HTTPPort       int      `mapstructure:"http_port"`
	MetricsPort    int      `mapstructure:"metrics_port"`
	BindAddress    string   `mapstructure:"bind_address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UsageConfig defines usage tracking settings
type UsageConfig struct {
	RetentionDays     int    `mapstructure:"retention_days"`
	DailyCleanupTime  string `mapstructure:"daily_cleanup_time"` // HH:MM local
	StatsPollInterval string `mapstructure:"stats_poll_interval"`
}

// ChatConfig defines the upstream chat-completion endpoint
type ChatConfig struct {
	UpstreamURL string  `mapstructure:"upstream_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     string  `mapstructure:"timeout"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LimitConfig defines one entry of the practice limit table
type LimitConfig struct {
	PracticeType      string `mapstructure:"practice_type"`
	DailyLimitMinutes int    `mapstructure:"daily_limit_minutes"`
	DisplayName       string `mapstructure:"display_name"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("AANGILAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/aangilam/aangilam.bolt")
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 5)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Usage tracking defaults
	v.SetDefault("usage_tracking.retention_days", 30)
	v.SetDefault("usage_tracking.daily_cleanup_time", "00:05")
	v.SetDefault("usage_tracking.stats_poll_interval", "30s")

	// Chat defaults
	v.SetDefault("chat.upstream_url", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("chat.model", "gpt-4o-mini")
	v.SetDefault("chat.timeout", "30s")
	v.SetDefault("chat.temperature", 0.7)
	v.SetDefault("chat.max_tokens", 500)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for bolt storage")
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required for redis storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be bolt or redis)", cfg.Storage.Type)
	}

	if cfg.Usage.RetentionDays <= 0 {
		return fmt.Errorf("usage_tracking.retention_days must be positive: %d", cfg.Usage.RetentionDays)
	}
	if _, err := time.Parse("15:04", cfg.Usage.DailyCleanupTime); err != nil {
		return fmt.Errorf("invalid usage_tracking.daily_cleanup_time: %w", err)
	}

	for i, limit := range cfg.Limits {
		if limit.PracticeType == "" {
			return fmt.Errorf("practice_limits[%d]: practice_type is required", i)
		}
		if limit.DailyLimitMinutes <= 0 {
			return fmt.Errorf("practice_limits[%d]: daily_limit_minutes must be positive: %d", i, limit.DailyLimitMinutes)
		}
	}

	return nil
}
