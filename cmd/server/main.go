package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/copyleftdev/hptune/internal/config"
	"github.com/copyleftdev/hptune/internal/logging"
	"github.com/copyleftdev/hptune/internal/metrics"
	"github.com/copyleftdev/hptune/internal/optimization"
	"github.com/copyleftdev/hptune/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use standard error as fallback if config loading fails
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize base logger
	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	serviceLogger := logger.With(
		zap.String("service", "hptune"),
		zap.String("env", cfg.Environment),
	)
	zap.ReplaceGlobals(serviceLogger)

	if err := run(cfg, serviceLogger); err != nil {
		serviceLogger.Error("Server exited with error", zap.Error(err))
		os.Exit(1)
	}
	serviceLogger.Info("server exited properly")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if !optimization.Strategy(cfg.Tuner.Strategy).Valid() {
		return fmt.Errorf("%w: TUNER_STRATEGY=%q", optimization.ErrUnknownStrategy, cfg.Tuner.Strategy)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewPrometheus(registry)
	if err != nil {
		return err
	}

	// Create router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(server.RecoveryMiddleware(logger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Debug("Health check")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := server.NewServer(cfg, logger, collector)
	r.Group(func(r chi.Router) {
		r.Use(server.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		srv.RegisterRoutes(r)
	})

	httpServer := newHTTPServer(cfg, r, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting server",
			zap.String("address", httpServer.Addr),
			zap.String("default_strategy", cfg.Tuner.Strategy),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return srv.Close()
	})

	return g.Wait()
}

// newHTTPServer builds the listener for handler. Request contexts carry
// logger and are not cancelled by the shutdown signal, so in-flight
// requests finish during graceful shutdown.
func newHTTPServer(cfg *config.Config, handler http.Handler, logger *zap.Logger) *http.Server {
	base := logging.WithContext(context.Background(), logger)
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return base },
	}
}
