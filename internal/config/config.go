package config

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env  string
	Port int

	StoreDriver string // postgres | sqlite | memory
	DBURL       string
	SQLitePath  string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	SearchCacheTTL time.Duration

	NonceSecret string
	NonceTTL    time.Duration

	SiteTimezone  string
	ExcerptLength int

	OTLPEndpoint string

	CORSAllowedOrigins []string
	RateLimitPerMinute int
	MaxBodyBytes       int64
	TrustProxyHeaders  bool

	AdmissionMaxAttempts int
}

// Load reads configuration from the environment. A .env file in the working
// directory, when present, fills in variables that are not already set.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		DBURL:       buildDBURL(),
		SQLitePath:  getEnv("SQLITE_PATH", "events.db"),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		SearchCacheTTL: time.Duration(getEnvInt("SEARCH_CACHE_TTL_SECONDS", 30)) * time.Second,

		NonceSecret: getEnv("NONCE_SECRET", ""),
		NonceTTL:    time.Duration(getEnvInt("NONCE_TTL_MINUTES", 12*60)) * time.Minute,

		SiteTimezone:  getEnv("SITE_TIMEZONE", "Europe/Warsaw"),
		ExcerptLength: getEnvInt("EXCERPT_LENGTH", 160),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 64<<10)),
		TrustProxyHeaders:  getEnvBool("TRUST_PROXY_HEADERS", false),

		AdmissionMaxAttempts: getEnvInt("ADMISSION_MAX_ATTEMPTS", 8),
	}
}

// Location resolves SiteTimezone, falling back to UTC when the zone is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SiteTimezone)
	if err != nil {
		slog.Warn("unknown SITE_TIMEZONE, using UTC", "tz", c.SiteTimezone, "err", err)
		return time.UTC
	}
	return loc
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "events")
	pass := getEnv("DB_PASSWORD", "events")
	name := getEnv("DB_NAME", "events")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
