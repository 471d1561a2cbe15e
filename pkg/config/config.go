package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	defaultJWTSecret = "dev_secret"
)

type Config struct {
	Env             string
	Port            int
	APIPrefix       string
	ShutdownTimeout time.Duration

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Timesheets TimesheetConfig
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
	Addrs    []string
	Password string
	DB       int
	Prefix   string
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
	MaxAge         time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// TimesheetConfig tunes the submission and approval workflow.
type TimesheetConfig struct {
	// Timezone is the organisation calendar used to decide which ISO week is "current".
	Timezone           string
	DailyHourCap       float64
	MaxEntryHours      float64
	StatusCacheEnabled bool
	StatusCacheTTL     time.Duration
	AuditWorkers       int
	AuditBuffer        int
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.ShutdownTimeout = parseDuration(v.GetString("SHUTDOWN_TIMEOUT"), 15*time.Second)

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
		Addrs:    splitAndTrim(v.GetString("REDIS_ADDRS")),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		Prefix:   v.GetString("REDIS_KEY_PREFIX"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
		MaxAge:         parseDuration(v.GetString("CORS_MAX_AGE"), 10*time.Minute),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{
		Enabled: v.GetBool("ENABLE_METRICS"),
		Path:    v.GetString("METRICS_PATH"),
	}

	cfg.Timesheets = TimesheetConfig{
		Timezone:           v.GetString("TIMESHEET_TIMEZONE"),
		DailyHourCap:       positiveFloat(v.GetFloat64("TIMESHEET_DAILY_HOUR_CAP"), 10),
		MaxEntryHours:      positiveFloat(v.GetFloat64("TIMESHEET_MAX_ENTRY_HOURS"), 24),
		StatusCacheEnabled: v.GetBool("TIMESHEET_STATUS_CACHE_ENABLED"),
		StatusCacheTTL:     parseDuration(v.GetString("TIMESHEET_STATUS_CACHE_TTL"), 5*time.Minute),
		AuditWorkers:       v.GetInt("TIMESHEET_AUDIT_WORKERS"),
		AuditBuffer:        v.GetInt("TIMESHEET_AUDIT_BUFFER"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with. Production refuses the
// development JWT secret.
func (c *Config) Validate() error {
	var problems []string
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT %d out of range", c.Port))
	}
	if c.JWT.Secret == "" {
		problems = append(problems, "JWT_SECRET is empty")
	} else if c.Env == EnvProduction && c.JWT.Secret == defaultJWTSecret {
		problems = append(problems, "JWT_SECRET must be set in production")
	}
	if c.Timesheets.MaxEntryHours > 24 {
		problems = append(problems, "TIMESHEET_MAX_ENTRY_HOURS cannot exceed 24")
	}
	if c.Timesheets.DailyHourCap > 24 {
		problems = append(problems, "TIMESHEET_DAILY_HOUR_CAP cannot exceed 24")
	}
	if c.Timesheets.Timezone != "" {
		if _, err := time.LoadLocation(c.Timesheets.Timezone); err != nil {
			problems = append(problems, fmt.Sprintf("TIMESHEET_TIMEZONE %q: %v", c.Timesheets.Timezone, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves the configured organisation timezone, falling back to UTC.
func (c TimesheetConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timesheets")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_ADDRS", "")
	v.SetDefault("REDIS_KEY_PREFIX", "timesheet:status:")

	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("CORS_MAX_AGE", "10m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("METRICS_PATH", "/metrics")

	v.SetDefault("TIMESHEET_TIMEZONE", "UTC")
	v.SetDefault("TIMESHEET_DAILY_HOUR_CAP", 10)
	v.SetDefault("TIMESHEET_MAX_ENTRY_HOURS", 24)
	v.SetDefault("TIMESHEET_STATUS_CACHE_ENABLED", false)
	v.SetDefault("TIMESHEET_STATUS_CACHE_TTL", "5m")
	v.SetDefault("TIMESHEET_AUDIT_WORKERS", 2)
	v.SetDefault("TIMESHEET_AUDIT_BUFFER", 64)
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

func positiveFloat(value, fallback float64) float64 {
	if value <= 0 {
		return fallback
	}
	return value
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
