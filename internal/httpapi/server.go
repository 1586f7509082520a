// Package httpapi serves the tools over an authenticated, rate-limited HTTP API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"dragon-mcp/internal/config"
	"dragon-mcp/internal/tools"
)

// Server is the hosted API.
type Server struct {
	cfg     config.HTTPConfig
	tools   *tools.Toolset
	auth    *Authenticator
	counter Counter
	logger  zerolog.Logger
}

// NewServer wires the API. counter defaults to an in-process MemoryCounter.
func NewServer(cfg config.HTTPConfig, ts *tools.Toolset, counter Counter, logger zerolog.Logger) *Server {
	if counter == nil {
		counter = NewMemoryCounter()
	}
	if cfg.RateLimitPerHour <= 0 {
		cfg.RateLimitPerHour = 100
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	return &Server{
		cfg:     cfg,
		tools:   ts,
		auth:    NewAuthenticator(cfg.APIKeys),
		counter: counter,
		logger:  logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the chi router with middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(hlog.NewHandler(s.logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("http request")
	}))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(s.cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/mcp/tools", s.handleListTools)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit)

			r.Post("/oracle/price", s.handleBodyTool(tools.GetDragonPrice))
			r.Get("/oracle/health", s.handleBodyTool(tools.CheckOracleHealth))
			r.Post("/oracle/update", s.handleBodyTool(tools.UpdateOraclePrice))

			r.Get("/lottery/stats/{chain}", s.handleLotteryStats)
			r.Post("/lottery/simulate", s.handleBodyTool(tools.SimulateLottery))

			r.Post("/layerzero/status", s.handleBodyTool(tools.CheckLayerZeroStatus))
			r.Get("/layerzero/fee/{source}/{dest}", s.handleFee)

			r.Post("/vrf/request", s.handleVRF)

			r.Post("/mcp/call/{tool}", s.handleCallTool)
		})
	})

	return r
}

// Run serves on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info().Msg("http api shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, err := s.auth.Authenticate(r)
		if err != nil {
			respondError(w, r, http.StatusUnauthorized, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withRole(r.Context(), role)))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := RoleFrom(r.Context())
		allowed, err := s.counter.Allow(r.Context(), role, s.cfg.RateLimitPerHour)
		if err != nil {
			hlog.FromRequest(r).Warn().Err(err).Msg("rate counter unavailable, allowing request")
			allowed = true
		}
		if !allowed {
			respondError(w, r, http.StatusTooManyRequests, ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
