package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/Khuzaim123/nomadnet-messaging/internal/config"
)

func New(cfg *config.Config, log *slog.Logger) *Handler {
	return &Handler{cfg: cfg, log: log}
}

type Handler struct {
	cfg *config.Config
	log *slog.Logger
}

// runtimeConfig is the sanitized view served to operators. Connection
// strings and credentials never leave the process.
type runtimeConfig struct {
	Env      string                `json:"env"`
	Messages config.MessagesConfig `json:"messages"`
	Repair   config.RepairConfig   `json:"repair"`
}

func (h *Handler) GetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.configHandler.GetConfig"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		log.Debug("config requested")

		render.JSON(w, r, runtimeConfig{
			Env:      h.cfg.Env,
			Messages: h.cfg.Messages,
			Repair:   h.cfg.Repair,
		})
	}
}
