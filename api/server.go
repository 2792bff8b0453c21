// Package api serves the chat endpoint over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"fynex/chat"
	"fynex/config"
	"fynex/pkg/reqctx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ChatRunner runs one chat turn and streams its text through emit.
type ChatRunner interface {
	Run(ctx context.Context, turn chat.Turn, emit func(string) error) (*chat.TurnResult, error)
}

type Server struct {
	chat   ChatRunner
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

func NewServer(runner ChatRunner, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		chat:   runner,
		config: cfg,
		logger: logger,
	}
}

// Handler builds the router. Answers are streamed, so no response timeout
// middleware is installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestIDContext)
	r.Use(middleware.Recoverer)

	r.Post("/api/chat", s.handleChat)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func requestIDContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := reqctx.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
