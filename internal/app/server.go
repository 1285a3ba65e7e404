package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hivecmu/filehub/internal/api/handlers"
	appMiddleware "github.com/hivecmu/filehub/internal/api/middlewares"
	"github.com/hivecmu/filehub/internal/config"
	"github.com/hivecmu/filehub/internal/core"
	"github.com/hivecmu/filehub/internal/core/search"
	"github.com/hivecmu/filehub/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, store core.CatalogStore, obj core.ObjectClient, orch *services.Orchestrator, engine *search.Engine, log *slog.Logger) *Server {
	fileHandler := handlers.NewFileHandler(orch, store, obj, cfg, log)
	searchHandler := handlers.NewSearchHandler(engine)
	jobHandler := handlers.NewJobHandler(orch)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware)

			protected.Post("/files/upload", fileHandler.Upload)
			protected.Get("/files", fileHandler.List)
			protected.Get("/files/search", searchHandler.Search)
			protected.Post("/files/{fileID}/tag", fileHandler.Tag)
			protected.Post("/files/{fileID}/index", fileHandler.Index)

			protected.Post("/jobs/sync", jobHandler.Sync)
			protected.Get("/jobs/{jobID}", jobHandler.Get)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
