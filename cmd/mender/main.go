package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"selfmend/internal/control"
	"selfmend/internal/core/config"
	"selfmend/internal/core/domain"
	"selfmend/internal/remedy"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Optional .env for local development; config values expand from env.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging, *isDebug)
	slog.SetDefault(log)

	app, err := control.New(cfg, log)
	if err != nil {
		log.Error("Failed to initialize agent", "error", err)
		os.Exit(1)
	}

	registerBuiltins(app)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		log.Error("Failed to start agent", "error", err)
		os.Exit(1)
	}

	sig := <-sigChan
	log.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Agent stopped gracefully")
}

func newLogger(cfg config.LoggingConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug || cfg.Level == "debug" {
		level = slog.LevelDebug
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}

// registerBuiltins wires the process-local remediation strategies. External
// collaborators add richer, tool-specific strategies at runtime.
func registerBuiltins(app *control.Agent) {
	app.RegisterStrategy(domain.Strategy{
		ID:         "free_memory",
		Kinds:      []domain.FailureKind{domain.KindCapacity},
		Capability: remedy.FreeMemory(),
		Cost:       0.1,
		Prior:      0.6,
	})
	app.RegisterStrategy(domain.Strategy{
		ID:         "cooldown",
		Kinds:      []domain.FailureKind{domain.KindTransientResource, domain.KindCapacity, domain.KindUnknown},
		Capability: remedy.Cooldown(5 * time.Second),
		Cost:       0.3,
		Prior:      0.5,
	})
}
