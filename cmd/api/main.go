// Package main is the entry point for the katabatic API server.
//
// It loads the configuration, assembles the prediction components, mounts
// the analysis and tracking handlers on the core chassis (middleware,
// routing, health checks), and serves HTTP until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"katabatic/internal/api/handlers"
	"katabatic/internal/app"
	"katabatic/internal/config"
	"katabatic/internal/core"
)

// storeProbeKey is read by the health probe; its absence is fine.
const storeProbeKey = "katabatic_health_probe"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.NewEnvVarProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("katabatic API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}

	srv, err := buildServer(a)
	if err != nil {
		_ = a.Close()
		return err
	}
	return serve(srv, cfg, logger)
}

// buildServer mounts every route on a server backed by a.
func buildServer(a *app.App) (*core.Server, error) {
	srv, err := core.NewServer(a.Config, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Closers = append(srv.Closers, a)

	analysis := handlers.NewAnalysisHandler(a.Analyzer, a.Forecasts, srv.Validator, a.Logger)
	predictions := handlers.NewPredictionHandler(a.Tracker, srv.Validator, a.Logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		analysis.RegisterRoutes,
		predictions.RegisterRoutes,
	)

	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
		ProbeName: "store",
		Fn: func(ctx context.Context) error {
			_, _, err := a.Store.Get(ctx, storeProbeKey)
			return err
		},
	})

	srv.MountRoutes()
	return srv, nil
}

// serve runs the HTTP server with graceful shutdown.
func serve(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}
