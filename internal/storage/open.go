package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"roomchat/backend/internal/config"
)

const connectTimeout = 10 * time.Second

// Open builds the backend selected by cfg. When the configured database can't
// be reached the in-memory store is returned instead, so the service still
// runs (without durability). The second return value names the backend in use.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (Storage, string) {
	backend := cfg.Backend()
	if backend == config.BackendMemory {
		log.Warn("storage.memory", "reason", "no database configured, rooms will not survive a restart")
		return NewMemoryStore(), config.BackendMemory
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	s, err := dial(ctx, backend, cfg)
	if err != nil {
		log.Error("storage.connect", "backend", backend, "err", err)
		log.Warn("storage.memory", "reason", "falling back to in-memory storage")
		return NewMemoryStore(), config.BackendMemory
	}
	log.Info("storage.connected", "backend", backend)
	return s, backend
}

// Dial connects to exactly the backend selected by cfg, without fallback.
func Dial(ctx context.Context, cfg config.Config) (Storage, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	return dial(ctx, cfg.Backend(), cfg)
}

func dial(ctx context.Context, backend string, cfg config.Config) (Storage, error) {
	switch backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGODB_URI is required for the %s backend", backend)
		}
		return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the %s backend", backend)
		}
		return NewPostgresStore(cfg.DatabaseURL)
	case config.BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required for the %s backend", backend)
		}
		return DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
