package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string
	Port int

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Provider   ProviderConfig
	Sync       SyncConfig
	Allocation AllocationConfig
	Layout     LayoutConfig
}

// ProviderConfig points at the remote calendar API.
type ProviderConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SyncConfig tunes the calendar sync pipeline. An Interval of zero
// disables the background schedule; sync then only runs on demand.
type SyncConfig struct {
	PageSize      int
	WindowPadding time.Duration
	Interval      time.Duration
}

// AllocationConfig tunes the duration allocation engine.
type AllocationConfig struct {
	ProgressBatchSize int
}

// LayoutConfig tunes day-layout caching.
type LayoutConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Provider = ProviderConfig{
		BaseURL: v.GetString("PROVIDER_BASE_URL"),
		Token:   v.GetString("PROVIDER_TOKEN"),
		Timeout: parseDuration(v.GetString("PROVIDER_TIMEOUT"), 30*time.Second),
	}

	cfg.Sync = SyncConfig{
		PageSize:      v.GetInt("SYNC_PAGE_SIZE"),
		WindowPadding: parseDuration(v.GetString("SYNC_WINDOW_PADDING"), time.Hour),
		Interval:      parseDuration(v.GetString("SYNC_INTERVAL"), 0),
	}

	cfg.Allocation = AllocationConfig{
		ProgressBatchSize: v.GetInt("ALLOCATION_PROGRESS_BATCH"),
	}

	cfg.Layout = LayoutConfig{
		CacheEnabled: v.GetBool("LAYOUT_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("LAYOUT_CACHE_TTL"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tracklight")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PROVIDER_BASE_URL", "https://www.googleapis.com/calendar/v3")
	v.SetDefault("PROVIDER_TOKEN", "")
	v.SetDefault("PROVIDER_TIMEOUT", "30s")

	v.SetDefault("SYNC_PAGE_SIZE", 250)
	v.SetDefault("SYNC_WINDOW_PADDING", "1h")
	v.SetDefault("SYNC_INTERVAL", "0")

	v.SetDefault("ALLOCATION_PROGRESS_BATCH", 25)

	v.SetDefault("LAYOUT_CACHE_ENABLED", true)
	v.SetDefault("LAYOUT_CACHE_TTL", "10m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
