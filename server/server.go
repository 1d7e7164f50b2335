// Package server exposes fetch quality data over HTTP: per-source health,
// recent records, the quality dashboard, and a live record stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/evlocate/foundation/config"
	"github.com/evlocate/foundation/contract"
	"github.com/evlocate/foundation/health"
	"github.com/evlocate/foundation/logger"
	"github.com/evlocate/foundation/metadata"
	"github.com/evlocate/foundation/sym"
)

// Server serves the quality tracking API
type Server struct {
	cfg        config.ServerConfig
	registry   *contract.Registry
	store      *metadata.Store
	aggregator *health.Aggregator
	hub        *Hub
	httpServer *http.Server
	log        *zap.SugaredLogger
}

// New creates a server. Call Start to begin listening.
func New(cfg config.ServerConfig, registry *contract.Registry, store *metadata.Store, aggregator *health.Aggregator, log *zap.SugaredLogger) *Server {
	s := &Server{
		cfg:        cfg,
		registry:   registry,
		store:      store,
		aggregator: aggregator,
		hub:        NewHub(log),
		log:        log,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Hub returns the websocket hub; attach it to the tracker as its notifier
// so appended records reach connected clients
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins serving. Blocks until the listener fails or Shutdown is
// called; a clean shutdown returns nil.
func (s *Server) Start() error {
	s.hub.Start()
	if s.log != nil {
		s.log.Infow("server listening",
			logger.FieldSymbol, sym.Serve,
			"addr", s.httpServer.Addr,
		)
	}

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and closes websocket clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	err := s.httpServer.Shutdown(ctx)
	if s.log != nil {
		s.log.Infow("server stopped", logger.FieldSymbol, sym.Serve)
	}
	return err
}
