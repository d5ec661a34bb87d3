package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sparklabs/spark/internal/config"
	"github.com/sparklabs/spark/internal/generate"
	"github.com/sparklabs/spark/internal/httpserver"
	"github.com/sparklabs/spark/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load(os.Getenv("SPARK_CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Generation.Credentials) == 0 {
		return fmt.Errorf("no API credentials configured (set SPARK_GEMINI_API_KEYS)")
	}

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer store.Close()
	logger.Info("record store opened", "path", cfg.DatabasePath)

	orchestrator := generate.NewOrchestrator(store, generate.NewGeminiGenerator(), generate.Config{
		ScoreThreshold:  cfg.Score.Threshold,
		Models:          cfg.Generation.Models,
		Credentials:     cfg.Generation.Credentials,
		SuggestionCount: cfg.Generation.SuggestionCount,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Drive newly created pending records through the orchestrator.
	watcher := generate.NewWatcher(store, orchestrator, logger)
	go func() {
		if err := watcher.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("generation watcher exited with error", "error", err)
		}
	}()

	server := httpserver.NewServer(cfg, store, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started",
		"port", cfg.Port,
		"score_threshold", cfg.Score.Threshold,
		"score_variant", cfg.Score.Variant,
		"models", cfg.Generation.Models,
	)

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
