// Package api exposes a sweeping session over HTTP for a browser rendering
// layer. The server is a thin adapter: every route maps onto one controller
// operation and returns the resulting snapshot-derived view.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/tcmartin/flowsweep/pkg/api/middleware"
	"github.com/tcmartin/flowsweep/pkg/config"
	"github.com/tcmartin/flowsweep/pkg/logging"
	"github.com/tcmartin/flowsweep/pkg/sweep"
)

// Server represents the local HTTP adapter server
type Server struct {
	config     *config.Config
	router     *mux.Router
	server     *http.Server
	controller *sweep.Controller
	hub        *WebSocketHub
	logger     logging.Logger
}

// NewServer creates a new adapter server around one sweeping session.
func NewServer(cfg *config.Config, controller *sweep.Controller, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		config:     cfg,
		router:     mux.NewRouter(),
		controller: controller,
		hub:        NewWebSocketHub(logger),
		logger:     logger,
	}

	// Push a notice to connected rendering layers after every transition so
	// they re-pull the snapshot.
	controller.Subscribe(func(evt sweep.Event) {
		s.hub.Broadcast(Notice{Type: evt.Type, Timestamp: time.Now().UTC()})
	})

	s.setupRoutes()
	return s
}

// Handler returns the server's HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", logging.F("addr", addr))

	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Health stays reachable even when the session is access-denied.
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	gated := api.PathPrefix("").Subrouter()
	gated.Use(middleware.AccessGate(s.controller))

	gated.HandleFunc("/state", s.handleState).Methods(http.MethodGet, http.MethodOptions)
	gated.HandleFunc("/flows", s.handleFlows).Methods(http.MethodGet, http.MethodOptions)
	gated.HandleFunc("/flows/more", s.handleLoadMore).Methods(http.MethodPost, http.MethodOptions)
	gated.HandleFunc("/flows/{id}/expand", s.handleExpand).Methods(http.MethodPost, http.MethodOptions)
	gated.HandleFunc("/flows/{id}/collapse", s.handleCollapse).Methods(http.MethodPost, http.MethodOptions)
	gated.HandleFunc("/flows/{id}/selection", s.handleToggleAllInactive).Methods(http.MethodPost, http.MethodOptions)
	gated.HandleFunc("/selection", s.handleToggleVersion).Methods(http.MethodPost, http.MethodOptions)
	gated.HandleFunc("/deletions", s.handleDelete).Methods(http.MethodPost, http.MethodOptions)
	gated.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.CORS)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r)
}
