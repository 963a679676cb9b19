// Package config holds the runtime settings of the chat backend. Values come
// from the environment (optionally seeded from a .env file by the caller).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// Retention window of a room, in whole days (inclusive bounds).
	MinRetentionDays = 3
	MaxRetentionDays = 7

	// Daily at 02:00 server time.
	DefaultCleanupSchedule = "0 2 * * *"

	// Websocket pump timings
	WriteWait  = 10 * time.Second
	PongWait   = 60 * time.Second
	PingPeriod = (PongWait * 9) / 10

	DefaultMaxMessageSize = 4096
	DefaultSendBuffer     = 256
	GeneratedRoomIDLength = 8
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendAuto     = "auto"
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Env       string
	HTTPAddr  string
	CORSAllow []string

	StoreBackend string

	MongoURI string
	MongoDB  string

	DatabaseURL string // Postgres DSN

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CleanupSchedule string
	AdminJWTSecret  string

	MaxMessageSize  int64
	SendBuffer      int
	RateLimitBurst  int
	RateLimitPerSec float64
	ShutdownTimeout time.Duration
}

// Load reads the configuration from the environment, applying defaults for
// anything unset or unparsable.
func Load() Config {
	cfg := Config{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		CORSAllow:       splitCSV(getEnv("CORS_ALLOW", "*")),
		StoreBackend:    strings.ToLower(getEnv("STORE_BACKEND", BackendAuto)),
		MongoURI:        os.Getenv("MONGODB_URI"),
		MongoDB:         getEnv("MONGODB_DB", "chatrooms"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		CleanupSchedule: getEnv("CLEANUP_SCHEDULE", DefaultCleanupSchedule),
		AdminJWTSecret:  os.Getenv("ADMIN_JWT_SECRET"),
		MaxMessageSize:  int64(getEnvInt("MAX_MESSAGE_SIZE", DefaultMaxMessageSize)),
		SendBuffer:      getEnvInt("SEND_BUFFER", DefaultSendBuffer),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 10),
		RateLimitPerSec: getEnvFloat("RATE_LIMIT_PER_SECOND", 5),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
	return cfg
}

// Backend resolves BackendAuto to a concrete backend name based on which
// connection settings are present. Mongo wins, then Postgres, then Redis.
func (c Config) Backend() string {
	if c.StoreBackend != "" && c.StoreBackend != BackendAuto {
		return c.StoreBackend
	}
	switch {
	case c.MongoURI != "":
		return BackendMongo
	case c.DatabaseURL != "":
		return BackendPostgres
	case c.RedisAddr != "":
		return BackendRedis
	default:
		return BackendMemory
	}
}

func (c Config) IsProd() bool { return c.Env == "prod" }

// LogValue keeps secrets and DSNs out of the startup log line.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("env", c.Env),
		slog.String("addr", c.HTTPAddr),
		slog.String("backend", c.Backend()),
		slog.String("cleanup_schedule", c.CleanupSchedule),
		slog.Bool("admin_auth", c.AdminJWTSecret != ""),
		slog.Int64("max_message_size", c.MaxMessageSize),
		slog.Int("send_buffer", c.SendBuffer),
		slog.String("rate_limit", fmt.Sprintf("%g/s burst %d", c.RateLimitPerSec, c.RateLimitBurst)),
	)
}

// getEnv returns the env var or a default
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getEnvInt parses a non-negative int env var with a fallback
func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}
	return def
}

func getEnvFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

// getEnvDuration accepts Go durations ("30s") or bare seconds ("30").
func getEnvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
