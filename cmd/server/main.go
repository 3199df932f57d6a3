package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/sheetstore/internal/app"
	"github.com/JonMunkholm/sheetstore/internal/config"
	"github.com/JonMunkholm/sheetstore/internal/logging"
	"github.com/JonMunkholm/sheetstore/internal/schema"
	"github.com/JonMunkholm/sheetstore/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}

	if cfg.Sheets.ProvisionOnStart {
		if err := a.Store.ProvisionSchema(ctx); err != nil {
			slog.Error("failed to provision schema", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("tables registered", "count", schema.TableCount(), "mode", a.Mode)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.RunAuditFlusher(jobCtx, a.Store.Audit(), cfg.Audit.FlushInterval)
	}()

	server := web.NewServer(a.Store, string(a.Mode), cfg, web.WithGatherer(prometheus.DefaultGatherer))

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		slog.Info("shutting down...")

		cancelJobs()
		<-done

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if err := a.Close(shutdownCtx); err != nil {
			slog.Error("close store", "error", err)
		}
	}()

	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-stopped
}
