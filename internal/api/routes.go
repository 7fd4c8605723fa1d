package api

import "github.com/go-chi/chi/v5"

func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/imports", s.handleImport)
		r.Get("/imports", s.handleListImports)
		r.Get("/optimization-report", s.handleOptimizationReport)
		r.Get("/upload-tracking", s.handleUploadTracking)
		r.Post("/ingest/trigger", s.handleIngestTrigger)
	})
}
