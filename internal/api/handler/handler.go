package handler

import (
	"log/slog"

	"roomchat/backend/internal/chathub"
	"roomchat/backend/internal/config"
	"roomchat/backend/internal/storage"
)

// Handler holds the services the HTTP and websocket endpoints call into.
type Handler struct {
	Hub      *chathub.ManagerService
	Registry *chathub.RegistryService
	Sweeper  *chathub.SweeperService
	Storage  storage.Storage

	cfg *config.Config
	log *slog.Logger
}

func NewHandler(hub *chathub.ManagerService, sweeper *chathub.SweeperService, cfg *config.Config, log *slog.Logger) *Handler {
	return &Handler{
		Hub:      hub,
		Registry: hub.Registry,
		Sweeper:  sweeper,
		Storage:  hub.Storage,
		cfg:      cfg,
		log:      log,
	}
}
