// Package api contains the HTTP handlers for the clipriver REST surface:
// user signup/login/profile/subscription, video CRUD and reactions, and
// comment CRUD. Every handler converts failures to an HTTP response locally;
// nothing propagates to a process-level error handler.
package api

import (
	"log/slog"

	"clipriver/internal/auth"
	"clipriver/internal/media"
	"clipriver/internal/storage"
)

// Prefix is the mount point for every resource route.
const Prefix = "/api/v1"

// Handler carries the collaborators every route needs: the datastore, the
// media relay, and the token manager. It holds no per-request state.
type Handler struct {
	Store  storage.Repository
	Media  media.Relay
	Tokens *auth.TokenManager
	Logger *slog.Logger
}

// NewHandler wires a Handler. A nil relay degrades to the disabled relay and
// a nil logger to the process default.
func NewHandler(store storage.Repository, relay media.Relay, tokens *auth.TokenManager, logger *slog.Logger) *Handler {
	if relay == nil {
		relay = media.Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Store: store, Media: relay, Tokens: tokens, Logger: logger}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
