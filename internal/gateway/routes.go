package gateway

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	r := s.router

	// Session routes
	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)

			r.Get("/message", s.getMessages)
			r.Post("/message", s.sendMessage)
			r.Get("/steps", s.getSteps)

			r.Post("/stop", s.stopSession)
			r.Post("/action/{name}", s.invokeAction)
			r.Post("/resume", s.resumeSession)
		})
	})

	// Onboarding surface
	r.Get("/starters", s.getStarters)
	r.Get("/profiles", s.getProfiles)

	// Authentication
	r.Post("/auth/login", s.login)

	// Event streaming
	r.Get("/events", s.events)
	r.Get("/ws", s.websocket)

	// Operations
	r.Get("/health", s.health)
	r.Method("GET", "/metrics", s.registry.Metrics().Handler())
}
