package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket event stream. Browsers cannot set the Authorization
		// header on upgrade requests, so the token travels as a query
		// parameter and is checked in the handler.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes. Login routes are gated too: an unauthenticated
		// caller must not be able to trigger confirmation SMS sends.
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Login flow
			r.Route("/auth", func(r chi.Router) {
				r.Post("/request-confirmation", s.handleRequestConfirmation)
				r.Post("/check-confirmation", s.handleCheckConfirmation)
				r.Post("/token", s.handleIssueToken)
			})

			// Account views
			r.Route("/account", func(r chi.Router) {
				r.Get("/", s.handleAccountInfo)
				r.Get("/balance", s.handleAccountBalance)
				r.Get("/session", s.handleSessionSnapshot)
			})

			// Door endpoints
			r.Route("/doors", func(r chi.Router) {
				r.Get("/", s.handleListDoors)
				r.Post("/refresh", s.handleRefreshDoors)
				r.Post("/{uid}/open", s.handleOpenDoor)
			})

			// Known-face registry
			r.Route("/faces", func(r chi.Router) {
				r.Get("/", s.handleListFaces)
				r.Post("/", s.handleAddFace)
				r.Delete("/{name}", s.handleRemoveFace)
			})

			// Watcher control
			r.Route("/watcher", func(r chi.Router) {
				r.Get("/", s.handleWatcherStatus)
				r.Put("/doors", s.handleWatcherSelection)
				r.Post("/cycle", s.handleWatcherCycle)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
