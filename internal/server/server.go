package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/playcore/internal/codec"
	"github.com/zsiec/playcore/internal/config"
	"github.com/zsiec/playcore/internal/errors"
	"github.com/zsiec/playcore/internal/health"
	"github.com/zsiec/playcore/internal/logger"
	"github.com/zsiec/playcore/internal/player"
	"github.com/zsiec/playcore/internal/resume"
)

const (
	healthCheckInterval = 30 * time.Second
	maxReapInterval     = time.Minute
)

// Server is the HTTP host of the playback engine. It serves HTTP/1.1 and,
// when configured, HTTP/3 on a separate UDP port.
type Server struct {
	config       *config.ServerConfig
	router       *mux.Router
	httpServer   *http.Server
	http3Server  *http3.Server
	logger       *logrus.Logger
	sessions     *SessionManager
	store        resume.Store
	limiter      *clientLimiter
	healthMgr    *health.Manager
	errorHandler *errors.ErrorHandler

	// Additional handlers can be registered
	additionalRoutes []func(*mux.Router)
	routesReady      bool
}

// New creates a new server instance. store may be nil, in which case the
// resume endpoints answer 503.
func New(cfg *config.ServerConfig, playerCfg player.Config, log *logrus.Logger, store resume.Store) *Server {
	s := &Server{
		config:           cfg,
		router:           mux.NewRouter(),
		logger:           log,
		sessions:         NewSessionManager(playerCfg, cfg.MaxSessions, cfg.SessionIdle, log),
		store:            store,
		healthMgr:        health.NewManager(log),
		errorHandler:     errors.NewErrorHandler(log),
		additionalRoutes: make([]func(*mux.Router), 0),
	}
	if cfg.RateLimit > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	// Register health checkers
	s.registerHealthCheckers()

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	if s.config.HTTP3.Enabled {
		if err := s.setupHTTP3(); err != nil {
			return err
		}
	}

	// Background maintenance
	go s.healthMgr.StartPeriodicChecks(ctx, healthCheckInterval)
	if s.config.SessionIdle > 0 {
		go s.sessions.StartReaper(ctx, reapInterval(s.config.SessionIdle))
	}

	errCh := make(chan error, 2)
	go func() {
		s.logger.WithField("port", s.config.HTTPPort).Info("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	if s.http3Server != nil {
		go func() {
			s.logger.WithField("port", s.config.HTTP3.Port).Info("Starting HTTP/3 server")
			if err := s.http3Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("http3 server: %w", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		_ = s.Shutdown(context.Background())
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// setupHTTP3 prepares the QUIC listener from the configured certificate.
func (s *Server) setupHTTP3() error {
	cert, err := tls.LoadX509KeyPair(s.config.HTTP3.TLSCertFile, s.config.HTTP3.TLSKeyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificates: %w", err)
	}

	s.http3Server = &http3.Server{
		Addr:    fmt.Sprintf(":%d", s.config.HTTP3.Port),
		Handler: s.router,
		TLSConfig: http3.ConfigureTLSConfig(&tls.Config{
			MinVersion:   tls.VersionTLS13,
			Certificates: []tls.Certificate{cert},
		}),
		QUICConfig: &quic.Config{
			MaxIdleTimeout: s.config.HTTP3.IdleTimeout,
		},
	}
	return nil
}

// Shutdown stops both listeners and closes every session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	var firstErr error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("failed to shutdown http server: %w", err)
		}
	}
	// http3.Server.Close does not take a context
	if s.http3Server != nil {
		if err := s.http3Server.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to shutdown http3 server: %w", err)
		}
	}
	s.sessions.CloseAll()

	s.logger.Info("Server shutdown complete")
	return firstErr
}

// reapInterval checks for idle sessions several times per idle period.
func reapInterval(idle time.Duration) time.Duration {
	if d := idle / 4; d < maxReapInterval {
		if d < time.Second {
			return time.Second
		}
		return d
	}
	return maxReapInterval
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	if s.routesReady {
		return
	}
	s.routesReady = true

	// Apply global middleware
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(logger.RequestLoggerMiddleware(s.logger))
	s.router.Use(s.sessionContextMiddleware)
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.errorHandler.Middleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.rateLimitMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.altSvcMiddleware)

	// Health endpoints
	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods("GET")
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods("GET")

	// Version endpoint
	s.router.HandleFunc("/version", s.handleVersion).Methods("GET")

	// API routes
	s.setupAPIRoutes(s.router.PathPrefix("/api/v1").Subrouter())

	// Preflight for every path; corsMiddleware answers it
	s.router.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Register any additional routes
	for _, registerFunc := range s.additionalRoutes {
		registerFunc(s.router)
	}

	// 404 handler
	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
}

// registerHealthCheckers registers the built-in health checkers
func (s *Server) registerHealthCheckers() {
	s.healthMgr.Register(health.NewDecoderChecker(codec.DefaultRegistry()))
	s.healthMgr.Register(health.NewSessionsChecker(s.sessions.Count, 0.9))
}

// RegisterHealthChecker adds a checker, e.g. for an external dependency.
func (s *Server) RegisterHealthChecker(c health.Checker) {
	s.healthMgr.Register(c)
}

// RegisterRoutes adds additional route handlers to the server
func (s *Server) RegisterRoutes(registerFunc func(*mux.Router)) {
	s.additionalRoutes = append(s.additionalRoutes, registerFunc)
}

// Sessions returns the session table.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// GetRouter returns the router for testing.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}
