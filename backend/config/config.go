package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is loaded once at startup and treated as read-only afterwards.
type Config struct {
	ServerPort  string
	CORSOrigins string
	LogMode     string

	DBDriver   string // postgres or sqlite
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	JWTSecret      string
	AccessTokenTTL time.Duration

	MaxUnfinishedPlans  int
	GenerationTimeout   time.Duration
	TaskTimeout         time.Duration
	FailedPlanRetention time.Duration
	CleanupInterval     time.Duration
	Location            *time.Location

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Warnings lists fallbacks taken while loading, logged once the logger exists.
	Warnings []string
}

const (
	DefaultMaxUnfinishedPlans = 3
	DefaultAccessTokenTTL     = 30 * time.Minute
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET environment variable not set")

func LoadConfig() (*Config, error) {
	l := &loader{}
	if err := godotenv.Load(); err != nil {
		l.warn("No .env file loaded, using environment variables")
	}

	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		LogMode:     getEnv("LOG_MODE", "dev"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "learning_plans"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "learnplan.db"),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		AccessTokenTTL: time.Duration(l.getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,

		MaxUnfinishedPlans:  l.getEnvInt("MAX_UNFINISHED_PLANS", DefaultMaxUnfinishedPlans),
		GenerationTimeout:   l.getEnvDuration("GENERATION_TIMEOUT", 60*time.Second),
		TaskTimeout:         l.getEnvDuration("TASK_TIMEOUT", 10*time.Second),
		FailedPlanRetention: l.getEnvDuration("FAILED_PLAN_RETENTION", 24*time.Hour),
		CleanupInterval:     l.getEnvDuration("CLEANUP_INTERVAL", time.Hour),
		Location:            l.getEnvLocation("TIMEZONE"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       l.getEnvInt("REDIS_DB", 0),
		LockTTL:       l.getEnvDuration("LOCK_TTL", 30*time.Second),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	if cfg.MaxUnfinishedPlans <= 0 {
		l.warn("MAX_UNFINISHED_PLANS must be positive, using %d", DefaultMaxUnfinishedPlans)
		cfg.MaxUnfinishedPlans = DefaultMaxUnfinishedPlans
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}

	cfg.Warnings = l.warnings
	return cfg, nil
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode
}

type loader struct {
	warnings []string
}

func (l *loader) warn(format string, args ...interface{}) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func (l *loader) getEnvInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		l.warn("Invalid %s=%q, using %d", key, raw, defaultValue)
		return defaultValue
	}
	return v
}

// getEnvDuration accepts Go durations ("90s", "2h") or a bare number of seconds.
func (l *loader) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		l.warn("Invalid %s=%q, using %s", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func (l *loader) getEnvLocation(key string) *time.Location {
	name := getEnv(key, "")
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		l.warn("Invalid %s=%q, using local time", key, name)
		return time.Local
	}
	return loc
}
