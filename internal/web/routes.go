package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/dkadlec/presence/internal/web/handlers"
)

func (s *Server) setupRoutes(deps handlers.Deps) {
	sessionsHandler := handlers.NewSessionsHandler(deps, s.sessions)
	galleryHandler := handlers.NewGalleryHandler(deps)
	attendanceHandler := handlers.NewAttendanceHandler(deps)
	rosterHandler := handlers.NewRosterHandler(deps)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Sessions
		r.Post("/sessions", sessionsHandler.Start)
		r.Get("/sessions", sessionsHandler.List)
		r.Get("/sessions/{id}", sessionsHandler.Status)
		r.Get("/sessions/{id}/stream", sessionsHandler.Stream)
		r.Delete("/sessions/{id}", sessionsHandler.Cancel)

		// Gallery
		r.Get("/gallery", galleryHandler.List)
		r.Post("/gallery", galleryHandler.Add)
		r.Delete("/gallery/{name}", galleryHandler.Remove)
		r.Post("/gallery/rebuild", galleryHandler.Rebuild)

		// Attendance reports
		r.Get("/attendance/day/{date}", attendanceHandler.Day)
		r.Get("/attendance/calendar/{name}", attendanceHandler.Calendar)

		// Roster (requires a configured database)
		r.Get("/roster/students", rosterHandler.Students)
		r.Post("/roster/students", rosterHandler.AddStudent)
		r.Delete("/roster/students/{name}", rosterHandler.RemoveStudent)
		r.Get("/roster/subjects", rosterHandler.Subjects)
	})
}
