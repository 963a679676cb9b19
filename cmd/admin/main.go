package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"roomchat/backend/internal/api/handler"
	"roomchat/backend/internal/chathub"
	"roomchat/backend/internal/config"
	"roomchat/backend/internal/storage"

	"github.com/joho/godotenv"
)

const usage = `Usage: admin <command> [args]

Commands:
  sweep             delete every expired room now
  token [hours]     print an admin token for POST /api/cleanup (default 24h)
  room <room_id>    print a stored room as JSON`

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := config.NewLogger(cfg.Env)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "sweep":
		store := dial(ctx, cfg)
		defer store.Close(ctx)
		deleted, err := chathub.NewSweeperService(store, log, time.Now).Sweep(ctx)
		if err != nil {
			fail("sweep failed: %v", err)
		}
		fmt.Printf("Deleted %d expired room(s).\n", deleted)

	case "token":
		hours := 24
		if len(os.Args) > 2 {
			var err error
			hours, err = strconv.Atoi(os.Args[2])
			if err != nil || hours <= 0 {
				fail("Invalid duration. Please provide a positive number of hours.")
			}
		}
		token, err := handler.GenerateAdminToken(cfg.AdminJWTSecret, time.Duration(hours)*time.Hour)
		if err != nil {
			fail("cannot mint token: %v (set ADMIN_JWT_SECRET)", err)
		}
		fmt.Println(token)

	case "room":
		if len(os.Args) != 3 {
			fail("Usage: admin room <room_id>")
		}
		store := dial(ctx, cfg)
		defer store.Close(ctx)
		room, err := store.GetRoom(ctx, os.Args[2])
		if err != nil {
			fail("lookup failed: %v", err)
		}
		if room == nil {
			fail("Room %s not found.", os.Args[2])
		}
		out, _ := json.MarshalIndent(room, "", "  ")
		fmt.Println(string(out))

	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}

func dial(ctx context.Context, cfg config.Config) storage.Storage {
	if cfg.Backend() == config.BackendMemory {
		fail("no room store configured (set MONGODB_URI, DATABASE_URL or REDIS_ADDR)")
	}
	store, err := storage.Dial(ctx, cfg)
	if err != nil {
		fail("failed to connect room store: %v", err)
	}
	return store
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
