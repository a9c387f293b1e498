package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tendant/student-records/pkg/students/api"
	"github.com/tendant/student-records/pkg/students/config"
)

// Student records server.
// Configuration comes from the environment (see config.ServerConfig), an
// optional config file and the flags below.

func main() {
	configFlag := flag.String("config", "", "Optional YAML/JSON/TOML/.env config file")
	portFlag := flag.String("port", "", "HTTP port (overrides PORT)")
	flag.Parse()

	var opts []config.Option
	if *configFlag != "" {
		opts = append(opts, config.WithConfigFile(*configFlag))
	}
	if *portFlag != "" {
		opts = append(opts, config.WithPort(*portFlag))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Environment)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", "err", err)
		os.Exit(1)
	}
}

func newLogger(environment string) *slog.Logger {
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// run serves until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) error {
	rt, err := cfg.BuildService(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("Failed to release resources", "err", err)
		}
	}()

	server := newHTTPServer(cfg, rt, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Student records server starting",
			"addr", server.Addr,
			"env", cfg.Environment,
			"database", cfg.DatabaseType,
			"storage", cfg.StorageBackend,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("Server exiting")
	return nil
}

func newHTTPServer(cfg *config.ServerConfig, rt *config.Runtime, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(cfg.RouterConfig(rt, logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
