package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"roomchat/backend/internal/api/handler"
	"roomchat/backend/internal/chathub"
	"roomchat/backend/internal/config"
	"roomchat/backend/internal/storage"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := config.NewLogger(cfg.Env)
	if envErr != nil {
		log.Debug("config.dotenv", "err", envErr)
	}
	log.Info("roomchat.starting", "config", cfg)

	// 1. Room store
	store, backend := storage.Open(context.Background(), cfg, log)

	// 2. Registry, hub, sweeper
	registry := chathub.NewRegistryService(store, log)
	hub := chathub.NewManagerService(registry, log,
		chathub.WithRateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst),
	)
	sweeper := chathub.NewSweeperService(store, log, time.Now)

	sweepCtx, stopSweeps := context.WithCancel(context.Background())
	if err := sweeper.Start(sweepCtx, cfg.CleanupSchedule); err != nil {
		log.Error("sweep.scheduler", "err", err)
		os.Exit(1)
	}

	// 3. HTTP
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewRouter(handler.NewHandler(hub, sweeper, &cfg, log)),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	go func() {
		log.Info("http.listening", "addr", cfg.HTTPAddr, "backend", backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http.serve", "err", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return server.Shutdown(ctx)
			},
			"chat": func(ctx context.Context) error {
				stopSweeps()
				return errors.Join(
					sweeper.Stop(ctx),
					hub.Shutdown(ctx),
					store.Close(ctx),
				)
			},
		},
	)

	exitCode := <-wait
	log.Info("roomchat.stopped", "code", exitCode)
	os.Exit(exitCode)
}
