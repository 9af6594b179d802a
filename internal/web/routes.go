package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/photo-timeline/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Deps) {
	groupsHandler := handlers.NewGroupsHandler(deps.Ingestor, deps.Photos, deps.Meetings, deps.Logger)
	photosHandler := handlers.NewPhotosHandler(deps.Photos, deps.Logger)

	// Health check (no auth required).
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes.
	s.router.Route("/api/v1", func(r chi.Router) {
		// Groups.
		r.Post("/groups/{groupID}/photos", groupsHandler.Upload)
		r.Get("/groups/{groupID}/photos", groupsHandler.ListPhotos)
		r.Get("/groups/{groupID}/meetings", groupsHandler.ListMeetings)

		// Photos.
		r.Get("/photos/{photoID}", photosHandler.Get)
		r.Get("/photos/{photoID}/thumb", photosHandler.Thumbnail)
	})
}
