package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	CORS     CORSConfig     `toml:"cors"`
	Logging  LoggingConfig  `toml:"logging"`
	Redis    RedisConfig    `toml:"redis"`
	Risk     RiskConfig     `toml:"risk"`
	Schedule ScheduleConfig `toml:"schedule"`
	Prices   PricesConfig   `toml:"prices"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port string `toml:"port"`
	Host string `toml:"host"`
	Addr string `toml:"-"` // Combined host:port for convenience
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// CORSConfig holds CORS-specific configuration
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// LoggingConfig selects the log level and encoder ("json" or "console").
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// RedisConfig configures the optional price cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	TTLHours int    `toml:"ttl_hours"`
}

// RiskConfig holds risk-engine settings.
type RiskConfig struct {
	LookbackDays int `toml:"lookback_days"`
	MaxParallel  int `toml:"max_parallel"`
}

// ScheduleConfig controls the daily valuation job in the server.
type ScheduleConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
}

// PricesConfig controls fetching daily closes from Yahoo Finance.
// FetchDays is how many days back the scheduled job refreshes.
type PricesConfig struct {
	BaseURL         string `toml:"base_url"`
	FetchOnSchedule bool   `toml:"fetch_on_schedule"`
	FetchDays       int    `toml:"fetch_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "5001",
			Host: "localhost",
		},
		Database: DatabaseConfig{
			Path: "./data/fund_ledger.db",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Redis: RedisConfig{
			TTLHours: 24,
		},
		Risk: RiskConfig{
			LookbackDays: 365,
			MaxParallel:  4,
		},
		Schedule: ScheduleConfig{
			Enabled: false,
			Cron:    "30 22 * * 1-5",
		},
		Prices: PricesConfig{
			BaseURL:   "https://query1.finance.yahoo.com",
			FetchDays: 5,
		},
	}
}

// Load reads configuration with priority: defaults -> CONFIG_FILE (TOML) -> environment.
// A .env file in the working directory is loaded into the environment first.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}

	// Combine host and port
	config.Server.Addr = fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port)

	return config, nil
}

func applyEnvOverrides(config *Config) error {
	config.Server.Port = getEnv("SERVER_PORT", config.Server.Port)
	config.Server.Host = getEnv("SERVER_HOST", config.Server.Host)
	config.Database.Path = getEnv("DB_PATH", config.Database.Path)
	config.Logging.Level = getEnv("LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = getEnv("LOG_FORMAT", config.Logging.Format)
	config.Redis.Addr = getEnv("REDIS_ADDR", config.Redis.Addr)
	config.Redis.Password = getEnv("REDIS_PASSWORD", config.Redis.Password)
	config.Schedule.Cron = getEnv("SCHEDULE_CRON", config.Schedule.Cron)
	config.Prices.BaseURL = getEnv("PRICES_BASE_URL", config.Prices.BaseURL)

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		config.CORS.AllowedOrigins = strings.Split(origins, ",")
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"REDIS_DB", &config.Redis.DB},
		{"REDIS_TTL_HOURS", &config.Redis.TTLHours},
		{"RISK_LOOKBACK_DAYS", &config.Risk.LookbackDays},
		{"RISK_MAX_PARALLEL", &config.Risk.MaxParallel},
		{"PRICES_FETCH_DAYS", &config.Prices.FetchDays},
	}
	for _, i := range ints {
		if v := os.Getenv(i.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", i.key, err)
			}
			*i.dst = n
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"SCHEDULE_ENABLED", &config.Schedule.Enabled},
		{"PRICES_FETCH_ON_SCHEDULE", &config.Prices.FetchOnSchedule},
	}
	for _, b := range bools {
		if v := os.Getenv(b.key); v != "" {
			enabled, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", b.key, err)
			}
			*b.dst = enabled
		}
	}

	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
