package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Presence PresenceConfig `mapstructure:"presence"`
	Report   ReportConfig   `mapstructure:"report"`
}

// MetricsConfig defines the metrics/liveness HTTP endpoint
type MetricsConfig struct {
	Port        int    `mapstructure:"port"`
	BindAddress string `mapstructure:"bind_address"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"`
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

// TrackingConfig defines presence polling and accrual settings
type TrackingConfig struct {
	PollTick          string `mapstructure:"poll_tick"`
	LookupConcurrency int    `mapstructure:"lookup_concurrency"`
	PointInterval     string `mapstructure:"point_interval"`
	DailyCap          int64  `mapstructure:"daily_cap"`
	SchedulerTick     string `mapstructure:"scheduler_tick"`
}

// PresenceConfig defines the remote presence API endpoints
type PresenceConfig struct {
	UsersURL      string `mapstructure:"users_url"`
	PresenceURL   string `mapstructure:"presence_url"`
	ThumbnailsURL string `mapstructure:"thumbnails_url"`
	Timeout       string `mapstructure:"timeout"`
	CacheSize     int    `mapstructure:"cache_size"`
}

// ReportConfig defines webhook report delivery settings
type ReportConfig struct {
	Timeout   string `mapstructure:"timeout"`
	UserAgent string `mapstructure:"user_agent"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("COBALSTONEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Metrics defaults
	v.SetDefault("metrics.port", 9091)
	v.SetDefault("metrics.bind_address", "0.0.0.0")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/cobalstonee/cobalstonee.bolt")
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Tracking defaults
	v.SetDefault("tracking.poll_tick", "30s")
	v.SetDefault("tracking.lookup_concurrency", 8)
	v.SetDefault("tracking.point_interval", "10m")
	v.SetDefault("tracking.daily_cap", 50)
	v.SetDefault("tracking.scheduler_tick", "1m")

	// Presence API defaults
	v.SetDefault("presence.users_url", "https://users.roblox.com")
	v.SetDefault("presence.presence_url", "https://presence.roblox.com")
	v.SetDefault("presence.thumbnails_url", "https://thumbnails.roblox.com")
	v.SetDefault("presence.timeout", "10s")
	v.SetDefault("presence.cache_size", 512)

	// Report defaults
	v.SetDefault("report.timeout", "15s")
	v.SetDefault("report.user_agent", "cobalstonee")
}

// validate checks the configuration for semantic errors
func validate(config *Config) error {
	switch config.Storage.Type {
	case "bolt", "redis":
	default:
		return fmt.Errorf("storage.type must be 'bolt' or 'redis', got %q", config.Storage.Type)
	}

	if config.Storage.Type == "bolt" && config.Storage.Path == "" {
		return fmt.Errorf("storage.path is required for bolt storage")
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", config.Logging.Level)
	}

	switch config.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be 'json' or 'text', got %q", config.Logging.Format)
	}

	if config.Tracking.DailyCap <= 0 {
		return fmt.Errorf("tracking.daily_cap must be positive, got %d", config.Tracking.DailyCap)
	}

	pointInterval, err := time.ParseDuration(config.Tracking.PointInterval)
	if err != nil {
		return fmt.Errorf("tracking.point_interval: %w", err)
	}
	if pointInterval < time.Second {
		return fmt.Errorf("tracking.point_interval must be at least 1s, got %s", pointInterval)
	}

	pollTick, err := time.ParseDuration(config.Tracking.PollTick)
	if err != nil {
		return fmt.Errorf("tracking.poll_tick: %w", err)
	}
	if pollTick <= 0 {
		return fmt.Errorf("tracking.poll_tick must be positive, got %s", pollTick)
	}

	if _, err := time.ParseDuration(config.Tracking.SchedulerTick); err != nil {
		return fmt.Errorf("tracking.scheduler_tick: %w", err)
	}

	if config.Tracking.LookupConcurrency <= 0 {
		return fmt.Errorf("tracking.lookup_concurrency must be positive, got %d", config.Tracking.LookupConcurrency)
	}

	return nil
}
