package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hanlab/memoryd/internal/auth"
	"github.com/hanlab/memoryd/internal/config"
	"github.com/hanlab/memoryd/internal/embedder"
	"github.com/hanlab/memoryd/internal/repository"
	"github.com/hanlab/memoryd/internal/repository/sqlite"
	"github.com/hanlab/memoryd/internal/server"
	"github.com/hanlab/memoryd/internal/service"
)

func main() {
	// Set up structured logging
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting memory service",
		"http_port", cfg.HTTPPort,
		"db_path", cfg.DBPath,
		"environment", cfg.Environment,
	)

	// Open SQLite store
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	slog.Info("opened memory store", "path", cfg.DBPath)

	memoryRepo := sqlite.NewMemoryRepo(db)

	// Embedding backend, initialized lazily on first use
	ollama := embedder.NewOllamaEmbedder(embedder.OllamaConfig{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.OllamaEmbeddingModel,
	})
	backend := embedder.NewLazyBackend(ollama,
		embedder.WithProbeTimeout(cfg.EmbedProbeTimeout),
		embedder.WithEmbedTimeout(cfg.EmbedTimeout),
		embedder.WithCacheSize(cfg.EmbedCacheSize),
	)
	slog.Info("configured embedding backend", "model", cfg.OllamaEmbeddingModel)

	// Services
	memorySvc := service.NewMemoryService(memoryRepo, backend,
		service.WithDefaultLimit(cfg.DefaultSearchLimit))

	// Auth
	jwtManager := auth.NewJWTManager(&auth.JWTConfig{
		Secret: cfg.JWTSecret,
		Expiry: cfg.JWTExpiry,
	})
	authMiddleware := auth.NewMiddleware(cfg.APIKey, jwtManager)
	if cfg.APIKey == "" {
		slog.Warn("API_KEY not set, authentication disabled")
	}

	// HTTP server
	handlers := server.NewHandlers(memorySvc, backend, jwtManager, cfg.APIKey, slog.Default())
	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         slog.Default(),
		AllowedOrigins: []string{"*"}, // Configure in production
		Auth:           authMiddleware,
	}, handlers)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// Ensure interfaces are satisfied at compile time
var (
	_ repository.MemoryRepository = (*sqlite.MemoryRepo)(nil)
	_ embedder.Backend            = (*embedder.LazyBackend)(nil)
	_ embedder.Embedder           = (*embedder.OllamaEmbedder)(nil)
)
