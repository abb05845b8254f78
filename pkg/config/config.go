package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	AppEnv             string
	BaseURL            string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	JWTSecret          string
	FrontendURL        string
	AllowedEmails      string

	LogLevel  string
	LogFormat string

	// Click analytics
	AggregateBackend   string // sqlite, memory or redis
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	ClickQueueSize     int
	ClickWorkers       int
	GeoTimeout         time.Duration
	GeoCIDRFile        string
	MaxLabelsPerBucket int

	// Bulk operations
	BulkConcurrency int
	BulkMaxIDs      int
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", "file:db.sqlite"),
		AppEnv:             getEnv("APP_ENV", "local"),
		BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		JWTSecret:          getEnv("JWT_SECRET", "secret"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:8080/dashboard"),
		AllowedEmails:      getEnv("ALLOWED_EMAILS", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AggregateBackend:   strings.ToLower(getEnv("AGGREGATE_BACKEND", "sqlite")),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		ClickQueueSize:     getEnvInt("CLICK_QUEUE_SIZE", 1024),
		ClickWorkers:       getEnvInt("CLICK_WORKERS", 4),
		GeoTimeout:         getEnvDuration("GEO_TIMEOUT", 50*time.Millisecond),
		GeoCIDRFile:        getEnv("GEO_CIDR_FILE", ""),
		MaxLabelsPerBucket: getEnvInt("MAX_LABELS_PER_BUCKET", 1000),

		BulkConcurrency: getEnvInt("BULK_CONCURRENCY", 8),
		BulkMaxIDs:      getEnvInt("BULK_MAX_IDS", 500),
	}
}

// AllowedEmailList splits ALLOWED_EMAILS; an empty list allows everyone.
func (c *Config) AllowedEmailList() []string {
	var out []string
	for _, e := range strings.Split(c.AllowedEmails, ",") {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
