// Package api exposes the ledger, portfolio rendering and catalog over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"finanzapp-core/internal/config"
	"finanzapp-core/internal/consistency"
	"finanzapp-core/internal/ledger"
	"finanzapp-core/internal/metrics"
	"finanzapp-core/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Server serves the HTTP API.
type Server struct {
	server    *http.Server
	logger    *zap.Logger
	ledger    *ledger.Service
	session   *session.Session
	validator *consistency.Validator
}

// NewServer wires the handlers. The ledger and session may not be nil.
func NewServer(cfg config.Server, ledgerSvc *ledger.Service, sess *session.Session, validator *consistency.Validator, logger *zap.Logger) *Server {
	s := &Server{
		logger:    logger.Named("api-server"),
		ledger:    ledgerSvc,
		session:   sess,
		validator: validator,
	}
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/assets/{assetID}/operations", s.listOperations)
		r.Post("/assets/{assetID}/operations", s.createOperation)
		r.Get("/assets/{assetID}/holding", s.holding)

		r.Put("/operations/{operationID}", s.updateOperation)
		r.Delete("/operations/{operationID}", s.deleteOperation)
		r.Post("/operations/validate", s.validateOperation)

		r.Post("/portfolio/sort", s.sortPortfolio)
		r.Get("/portfolios/{portfolioID}/positions", s.portfolioPositions)

		r.Get("/catalog/assets", s.listAssets)
		r.Get("/catalog/assets/{id}", s.getAsset)
		r.Get("/catalog/recommendations", s.listRecommendations)
		r.Get("/catalog/recommendations/{id}", s.getRecommendation)

		r.Post("/session/login", s.login)
		r.Post("/session/logout", s.logout)
	})
	return r
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "finanzapp-core"})
}
