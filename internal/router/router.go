package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"edubot/internal/handlers"
	"edubot/internal/middleware"
)

func New(
	chatHandler *handlers.ChatHandler,
	chatLimiter *middleware.RateLimiter,
	corsOrigins []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.PeerAddr)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(corsOrigins))

	// Health check
	r.Get("/ping", chatHandler.Ping)

	r.With(chatLimiter.Middleware).Post("/chat", chatHandler.Chat)
	r.Get("/history/{user_id}", chatHandler.History)
	r.Delete("/reset/{user_id}", chatHandler.Reset)

	return r
}
