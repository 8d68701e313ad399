package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/copyleftdev/scryshot/internal/config"
	"github.com/copyleftdev/scryshot/internal/runs"
	"github.com/copyleftdev/scryshot/internal/scenario"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	runManager *runs.Manager
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, rm *runs.Manager, catalog *scenario.Catalog, logger *zap.Logger) *Server {
	logger = logger.Named("server")
	router := NewRouter(cfg, NewAPIHandler(rm, catalog, logger), logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     zap.NewStdLog(logger),
	}

	return &Server{
		httpServer: httpServer,
		cfg:        cfg,
		runManager: rm,
		logger:     logger,
	}
}

// NewRouter builds the HTTP routes and middleware.
func NewRouter(cfg *config.Config, apiHandler *APIHandler, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	// --- Middleware Setup ---
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	corsOptions := cors.Options{
		AllowedOrigins:   cfg.Security.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	router.Use(cors.Handler(corsOptions))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	})

	// --- Route Definitions ---
	router.Route("/api/v1", func(r chi.Router) {
		if cfg.Security.ApiKey != "" {
			r.Use(APIKeyAuth(cfg.Security.ApiKey))
		}
		r.Post("/runs", apiHandler.HandleSubmitRun)
		r.Get("/runs", apiHandler.HandleListRuns)
		r.Get("/runs/{runID}", apiHandler.HandleGetRun)
		r.Get("/scenarios", apiHandler.HandleListScenarios)
	})

	return router
}

func (s *Server) Start() error {
	s.logger.Info("Starting scryshot server", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("Server gracefully stopped")
	return nil
}

// --- Custom Middleware ---

// RequestLogger logs one structured line per request.
func RequestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("Request handled",
					zap.String("method", r.Method),
					zap.String("uri", r.RequestURI),
					zap.String("remote", r.RemoteAddr),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

// APIKeyAuth provides simple API Key authentication
func APIKeyAuth(validKey string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				authHeader := r.Header.Get("Authorization")
				if strings.HasPrefix(authHeader, "Bearer ") {
					apiKey = strings.TrimPrefix(authHeader, "Bearer ")
				}
			}

			if apiKey == "" {
				http.Error(w, http.StatusText(http.StatusUnauthorized)+": API key required", http.StatusUnauthorized)
				return
			}
			if apiKey != validKey {
				http.Error(w, http.StatusText(http.StatusForbidden)+": Invalid API key", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
