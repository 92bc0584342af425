// Package server provides the HTTP API for Shiryo.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/chat"
	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/indexer"
	"github.com/hyperjump/shiryo/internal/presentation"
)

// WatchService manages inbox directories. Implemented by watcher.Inbox.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the Shiryo API.
type Server struct {
	indexer       *indexer.Indexer
	chat          *chat.Service
	presentations *presentation.Service
	config        *config.Config
	configPath    string
	watch         WatchService
	watchMu       sync.Mutex
	logger        *zap.Logger
	server        *http.Server
}

// NewServer creates a server with the given dependencies. watch may be nil, in which case the
// watch endpoints answer 501. When configPath is set, inbox changes are written back to it.
func NewServer(
	idx *indexer.Indexer,
	chatService *chat.Service,
	presentations *presentation.Service,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		indexer:       idx,
		chat:          chatService,
		presentations: presentations,
		config:        cfg,
		configPath:    configPath,
		watch:         watch,
		logger:        logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	// Streaming responses outlive the request timeout.
	r.Post("/api/v1/presentations/stream", s.handlePresentationStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
		r.Use(middleware.Compress(5))

		r.Get("/api/v1/status", s.handleStatus)

		r.Route("/api/v1/documents", func(r chi.Router) {
			r.Post("/", s.handleUploadDocument)
			r.Get("/", s.handleListDocuments)
			r.Get("/search", s.handleSearchDocuments)
			r.Get("/{id}", s.handleGetDocument)
			r.Delete("/{id}", s.handleDeleteDocument)
		})
		r.Get("/api/v1/service-categories", s.handleCategories)

		r.Post("/api/v1/sessions", s.handleCreateSession)
		r.Get("/api/v1/sessions", s.handleListSessions)
		r.Get("/api/v1/sessions/{id}/history", s.handleSessionHistory)
		r.Post("/api/v1/chat", s.handleChat)

		r.Get("/api/v1/presentations", s.handleListPresentations)
		r.Get("/api/v1/presentations/{id}", s.handleGetPresentation)
		r.Get("/api/v1/presentations/{id}/pptx", s.handlePresentationPPTX)

		r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	})

	if dir := s.config.Presentation.ExportDir; dir != "" {
		files := http.StripPrefix(presentation.SavedPresentationsPath, http.FileServer(http.Dir(dir)))
		r.Handle(presentation.SavedPresentationsPath+"*", files)
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
