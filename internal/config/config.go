package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App struct {
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		Driver     string
		DSN        string
		Host       string
		Port       string
		User       string
		Password   string
		Name       string
		SQLitePath string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	NATS struct {
		URL string
	}

	GRPC struct {
		Host string
		Port string
	}

	HTTP struct {
		Addr string
	}

	Telegram struct {
		Token          string
		RequestTimeout time.Duration
	}

	// Matching holds the knobs the selector, state machine and sweeper read
	// at invocation time.
	Matching struct {
		AdminIDs             []int64
		PendingPairTimeout   time.Duration
		RejectionTimeout     time.Duration
		SweepInterval        time.Duration
		DefaultAgeDiff       int
		MinAge               int
		MaxAge               int
		BanClosesPairHistory bool
		DraftTTL             time.Duration
	}
}

func New() *Config {
	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "production")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "matchmaker")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", "mysql"))
	cfg.DB.SQLitePath = getEnvDefault("SQLITE_PATH", "matchmaker.db")
	switch cfg.DB.Driver {
	case "postgres":
		cfg.DB.DSN = getEnvDefault("POSTGRES_DSN",
			"host=localhost user=postgres password=postgres dbname=matchmaker port=5432 sslmode=disable TimeZone=UTC")
	case "sqlite":
		cfg.DB.DSN = cfg.DB.SQLitePath
	default:
		cfg.DB.DSN = os.Getenv("MYSQL_DSN")
		if cfg.DB.DSN == "" {
			cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
			cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
			cfg.DB.User = getEnvDefault("DB_USER", "root")
			cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
			cfg.DB.Name = getEnvDefault("DB_NAME", "matchmaker")

			cfg.DB.DSN = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
				cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
			)
		}
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// NATS is optional; empty URL disables the publisher
	cfg.NATS.URL = getEnvDefault("NATS_URL", "")

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	cfg.HTTP.Addr = getEnvDefault("HTTP_ADDR", ":8080")

	cfg.Telegram.Token = getEnvDefault("BOT_TOKEN", "")
	cfg.Telegram.RequestTimeout = time.Duration(getEnvInt("TELEGRAM_TIMEOUT_SECONDS", 10)) * time.Second

	// Matching
	cfg.Matching.AdminIDs = ParseIDList(os.Getenv("ADMIN_IDS"))
	cfg.Matching.PendingPairTimeout = time.Duration(getEnvInt("PENDING_PAIR_TIMEOUT", 48)) * time.Hour
	cfg.Matching.RejectionTimeout = time.Duration(getEnvInt("REJECTION_TIMEOUT", 72)) * time.Hour
	cfg.Matching.SweepInterval = time.Duration(getEnvInt("SWEEP_INTERVAL_MINUTES", 60)) * time.Minute
	cfg.Matching.DefaultAgeDiff = getEnvInt("DEFAULT_AGE_DIFF", 1)
	cfg.Matching.MinAge = getEnvInt("MIN_AGE", 16)
	cfg.Matching.MaxAge = getEnvInt("MAX_AGE", 100)
	cfg.Matching.BanClosesPairHistory = isTruthy(getEnvDefault("BAN_CLOSES_PAIR_HISTORY", "true"))
	cfg.Matching.DraftTTL = time.Duration(getEnvInt("DRAFT_TTL_MINUTES", 60)) * time.Minute

	return cfg
}

// ParseIDList parses a comma-separated list of numeric ids, skipping
// anything that is not a positive integer.
func ParseIDList(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
