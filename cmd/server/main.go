package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/projectflow/internal/access"
	"github.com/hugh/projectflow/internal/api"
	"github.com/hugh/projectflow/internal/api/middleware"
	"github.com/hugh/projectflow/internal/archive"
	"github.com/hugh/projectflow/internal/auth"
	"github.com/hugh/projectflow/internal/billing"
	"github.com/hugh/projectflow/internal/database"
	"github.com/hugh/projectflow/internal/google"
	"github.com/hugh/projectflow/internal/invitations"
	"github.com/hugh/projectflow/internal/storage"
	"github.com/hugh/projectflow/internal/tasks"
	"github.com/hugh/projectflow/pkg/config"
	"github.com/hugh/projectflow/pkg/crypto"
	"github.com/hugh/projectflow/pkg/queue"
	"github.com/hugh/projectflow/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
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

	logger.Info("starting ProjectFlow server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
		"auth_mode", cfg.Google.AuthMode,
	)

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Encryptor for credential bundles, session blobs and queued tokens
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		os.Exit(1)
	}
	if cfg.Encryption.Key == "" {
		logger.Warn("ENCRYPTION_KEY not set, using generated key - stored credentials will be unreadable after restart")
	}

	// Connect to Redis
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("failed to connect to Redis, falling back to in-memory sessions", "error", err)
			redisClient.Close()
			redisClient = nil
		}
	}

	// Sessions
	var sessionStore auth.SessionStore
	if redisClient != nil {
		sessionStore = auth.NewRedisStore(redisClient, encryptor)
	} else {
		sessionStore = auth.NewMemoryStore()
	}
	sessions := auth.NewManager(
		sessionStore,
		auth.NewJWTService(cfg.Session.Secret, cfg.Session.TTL()),
		auth.ManagerConfig{
			CookieName: cfg.Session.CookieKey,
			TTL:        cfg.Session.TTL(),
			Secure:     cfg.Session.Secure,
		},
	)

	store := storage.NewStore(db, encryptor, logger)
	checker := access.NewChecker(store)

	oauth := auth.NewGoogleOAuth()
	backend, err := auth.NewBackend(cfg.Google.AuthMode, store, oauth, cfg.Google.RedirectURL(cfg.Server.BaseURL))
	if err != nil {
		logger.Error("failed to create auth backend", "error", err)
		os.Exit(1)
	}
	authService := auth.NewService(backend, oauth, store, logger)

	factory := google.NewFactory(google.FactoryConfig{Timeout: cfg.Google.RequestTimeout()}, logger)

	archiver, err := archive.New(context.Background(), &cfg.Google, logger)
	if err != nil {
		logger.Error("failed to create project archiver", "error", err)
		os.Exit(1)
	}

	provider, err := billing.New(cfg.Billing.Provider)
	if err != nil {
		logger.Error("failed to create billing provider", "error", err)
		os.Exit(1)
	}

	// Invitation emails go through the worker when Redis is available
	var (
		notifier    invitations.Notifier = factory
		asynqClient *asynq.Client
		inspector   *asynq.Inspector
	)
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
		inspector = queue.NewInspector(&cfg.Redis)
		notifier = tasks.NewEnqueuer(asynqClient, encryptor, logger)
	}

	// Rate limiting
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.WindowSeconds)
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				rateLimiter.Cleanup()
			}
		}
	}()

	// Create router
	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		Store:          store,
		Sessions:       sessions,
		AuthService:    authService,
		Access:         checker,
		Invitations:    invitations.NewService(store, checker, notifier, cfg.Server.BaseURL, logger),
		Google:         factory,
		Archiver:       archiver,
		Billing:        provider,
		Inspector:      inspector,
		RateLimiter:    rateLimiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	stopCleanup()

	if closer, ok := archiver.(interface{ Close() error }); ok {
		closer.Close()
	}
	if inspector != nil {
		inspector.Close()
	}
	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
