package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/renshaw/taskwire/internal/pending"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// wsHandler, if non-nil, is mounted at GET /ws inside the auth group.
func NewRouter(broadcaster Broadcaster, store pending.Store, authEnabled bool, token string, wsHandler http.Handler) chi.Router {
	h := NewHandler(broadcaster, store)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Mobile fallback path: drain the mailbox (side-effecting GET).
	r.Get("/notifications/{identity}", h.FetchNotifications)

	// Producer entry point for other subsystems.
	r.Post("/notifications/send", h.SendNotification)

	// Push channel endpoint (protected by same auth middleware).
	if wsHandler != nil {
		r.Get("/ws", wsHandler.ServeHTTP)
	}

	return r
}
