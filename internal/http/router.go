package httpx

import (
	"net/http"

	"log/slog"

	"github.com/tusharbansal19/Scratch/internal/app"
	"github.com/tusharbansal19/Scratch/internal/store"
	"github.com/tusharbansal19/Scratch/internal/ws"
	"github.com/tusharbansal19/Scratch/pkg/auth"
	"github.com/tusharbansal19/Scratch/pkg/metrics"
)

// NewRouter wires up all HTTP routes, middleware, and handlers
func NewRouter(cfg app.Config, logger *slog.Logger, hub *ws.Hub, db *store.Postgres) http.Handler {
	mw := NewMiddleware(cfg)
	api := &RoomsAPI{DB: db, Log: logger}

	// Auth API
	j := auth.New(cfg.JWTSecret)
	authAPI := &AuthAPI{DB: db, JWT: j}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint (auth happens on the room API, not the stream)
	mux.Handle("/ws/{room}", http.HandlerFunc(hub.ServeWS))

	// Auth endpoints
	mux.Handle("/api/auth/register", http.HandlerFunc(authAPI.Register))
	mux.Handle("/api/auth/login", http.HandlerFunc(authAPI.Login))
	mux.Handle("/api/auth/me", mw.Auth(http.HandlerFunc(authAPI.Me)))

	// Room endpoints (JWT-protected)
	mux.Handle("POST /api/rooms", mw.Auth(http.HandlerFunc(api.Create)))
	mux.Handle("GET /api/rooms/{id}", mw.Auth(http.HandlerFunc(api.Get)))

	// CORS + rate limit applied globally
	return mw.Wrap(mux)
}
