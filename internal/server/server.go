// Package server provides the HTTP API for policyrag.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/policyrag/internal/config"
	"github.com/hyperjump/policyrag/internal/indexer"
	"github.com/hyperjump/policyrag/internal/metrics"
	"github.com/hyperjump/policyrag/internal/pipeline"
	"github.com/hyperjump/policyrag/internal/retrieval"
	"github.com/hyperjump/policyrag/internal/vector"
)

// Asker runs the question-answering pipeline.
type Asker interface {
	Run(ctx context.Context, query string) (*pipeline.Result, error)
}

// HitRetriever returns the context blob together with its hits.
type HitRetriever interface {
	RetrieveHits(ctx context.Context, raw string) (*retrieval.Retrieval, error)
}

// Ingester ingests a source directory.
type Ingester interface {
	IngestDirectory(ctx context.Context, dir string) (*indexer.Report, error)
}

// Server is the HTTP server for the policyrag API.
type Server struct {
	asker     Asker
	retriever HitRetriever
	ingester  Ingester
	store     vector.Store
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server

	// queryMu allows a single query at a time.
	queryMu sync.Mutex
}

// NewServer creates a server with the given dependencies.
func NewServer(
	asker Asker,
	retriever HitRetriever,
	ingester Ingester,
	store vector.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		asker:     asker,
		retriever: retriever,
		ingester:  ingester,
		store:     store,
		config:    cfg,
		logger:    logger,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Post("/retrieve", s.handleRetrieve)
		r.Post("/ingest", s.handleIngest)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops. After Stop it
// returns http.ErrServerClosed.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server. It is safe to call from another
// goroutine while Start runs, and before Start.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
