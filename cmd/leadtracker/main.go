package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/use-agent/leadharvest/config"
	"github.com/use-agent/leadharvest/tracker"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("leadtracker starting",
		"host", cfg.Tracker.Host,
		"port", cfg.Tracker.Port,
		"db", cfg.Tracker.DBPath,
	)

	// ── 3. Open store and seed from pipeline output ─────────────────
	store, err := tracker.Open(cfg.Tracker.DBPath)
	if err != nil {
		slog.Error("failed to open tracker database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	csvPath := filepath.Join(cfg.Output.Dir, cfg.Output.CSVName)
	imported, err := store.SeedFromCSV(context.Background(), csvPath)
	if err != nil {
		slog.Error("csv import failed", "path", csvPath, "error", err)
		os.Exit(1)
	}
	if imported > 0 {
		slog.Info("leads imported from csv", "path", csvPath, "count", imported)
	}

	// ── 4. Setup router and start HTTP server ───────────────────────
	router := tracker.NewRouter(store, cfg.Tracker)

	addr := fmt.Sprintf("%s:%d", cfg.Tracker.Host, cfg.Tracker.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 5. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("leadtracker stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
