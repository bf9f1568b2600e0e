package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
	CacheRedis  = "redis"
	CacheMemory = "memory"
)

type Config struct {
	Env      string
	HTTPAddr string
	GRPCAddr string
	LogLevel slog.Level

	StoreDriver      string
	MySQLDSN         string
	MySQLAutoMigrate bool
	CacheDriver      string
	RedisAddr        string

	JWTSecret string
	Currency  string

	WebhookURL         string
	WebhookSecret      string
	NotifyWorkers      int
	NotifyQueueSize    int
	NotifyMaxAttempts  int
	// Bounds how long shutdown waits for queued notifications.
	NotifyDrainTimeout time.Duration

	GuardLockTTL        time.Duration
	GuardAcquireTimeout time.Duration
	RateLimitPerWindow  int
	RateLimitWindow     time.Duration

	CatalogTTL        time.Duration
	ReconcileInterval time.Duration

	// Memory-store seed, ignored by MySQL.
	InitialBalance int64
	SeedAccounts   []string

	PyroscopeAddr string
}

// Load reads a .env file when present and resolves every setting from the
// environment, falling back to development defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, relying on environment variables")
	}

	return &Config{
		Env:      getEnv("ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr: getEnv("GRPC_ADDR", ":50051"),
		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),

		StoreDriver:      getEnv("STORE_DRIVER", StoreMySQL),
		MySQLDSN:         getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/fundengine?parseTime=true"),
		MySQLAutoMigrate: getBool("MYSQL_AUTO_MIGRATE", false),
		CacheDriver:      getEnv("CACHE_DRIVER", CacheRedis),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		Currency:  getEnv("CURRENCY", "COP"),

		WebhookURL:         getEnv("WEBHOOK_URL", ""),
		WebhookSecret:      getEnv("WEBHOOK_SECRET", ""),
		NotifyWorkers:      getInt("NOTIFY_WORKERS", 4),
		NotifyQueueSize:    getInt("NOTIFY_QUEUE_SIZE", 1024),
		NotifyMaxAttempts:  getInt("NOTIFY_MAX_ATTEMPTS", 5),
		NotifyDrainTimeout: getDuration("NOTIFY_DRAIN_TIMEOUT", 10*time.Second),

		GuardLockTTL:        getDuration("GUARD_LOCK_TTL", 10*time.Second),
		GuardAcquireTimeout: getDuration("GUARD_ACQUIRE_TIMEOUT", 3*time.Second),
		RateLimitPerWindow:  getInt("RATE_LIMIT_PER_MINUTE", 60),
		RateLimitWindow:     getDuration("RATE_LIMIT_WINDOW", time.Minute),

		CatalogTTL:        getDuration("CATALOG_TTL", 30*time.Second),
		ReconcileInterval: getDuration("RECONCILE_INTERVAL", 10*time.Minute),

		InitialBalance: getInt64("INITIAL_BALANCE", 50000000),
		SeedAccounts:   getList("SEED_ACCOUNTS"),

		PyroscopeAddr: getEnv("PYROSCOPE_SERVER_ADDRESS", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getInt64(key string, fallback int64) int64 {
	value, err := strconv.ParseInt(getEnv(key, ""), 10, 64)
	if err != nil {
		return fallback
	}
	return value
}

func getBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
