package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/hugh/projectflow/internal/google"
	"github.com/hugh/projectflow/internal/tasks"
	"github.com/hugh/projectflow/pkg/config"
	"github.com/hugh/projectflow/pkg/crypto"
	"github.com/hugh/projectflow/pkg/queue"
	"github.com/hugh/projectflow/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env, cfg.Log.File)
	slog.SetDefault(logger)

	logger.Info("starting ProjectFlow worker")

	if cfg.Encryption.Key == "" {
		logger.Error("ENCRYPTION_KEY is required: the worker must open tokens sealed by the server")
		os.Exit(1)
	}
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, 10)

	// Create task handler
	factory := google.NewFactory(google.FactoryConfig{Timeout: cfg.Google.RequestTimeout()}, logger)
	handler := tasks.NewHandler(factory, encryptor, logger)

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	// Start the server
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
		cancel()
	}

	// Wait for context cancellation
	<-ctx.Done()

	logger.Info("worker stopped")
}
