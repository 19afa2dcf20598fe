// Package server assembles the HTTP stack: API routes, health and metrics
// endpoints, and the middleware chain shared by all of them.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/recipe-box/app/internal/auth"
	"github.com/recipe-box/app/internal/config"
	"github.com/recipe-box/app/internal/handlers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Server serves the recipe API.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *sql.DB
	limiter *rate.Limiter // nil when rate limiting is disabled
	handler http.Handler
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// New wires the routes and middleware. It does not start listening.
func New(cfg *config.Config, logger *zap.Logger, db *sql.DB, tokens *auth.Tokens) *Server {
	s := &Server{cfg: cfg, logger: logger, db: db}
	if cfg.RateLimit.RPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	handlers.RegisterRoutes(mux, db, tokens)

	// metrics reads r.Pattern, which the mux sets on the request it is
	// handed, so it must wrap the mux directly.
	s.handler = s.requestID(
		s.recoverer(
			s.logRequests(
				s.rateLimit(
					s.metrics(mux),
				),
			),
		),
	)
	return s
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Server.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		ErrorLog:     zap.NewStdLog(s.logger),
	}

	s.logger.Info("server listening",
		zap.String("address", ln.Addr().String()),
		zap.Float64("rate_limit", s.cfg.RateLimit.RPS),
		zap.Int("rate_limit_burst", s.cfg.RateLimit.Burst),
		zap.Duration("read_timeout", s.cfg.Server.ReadTimeout),
		zap.Duration("write_timeout", s.cfg.Server.WriteTimeout),
		zap.Duration("idle_timeout", s.cfg.Server.IdleTimeout),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("server stopped gracefully")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		handlers.WriteJSON(w, r, http.StatusServiceUnavailable, HealthResponse{
			Status:    "unavailable",
			Timestamp: time.Now().UTC(),
			Reason:    "database unreachable",
		})
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}
