package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"comic-server/internal/ai"
	"comic-server/internal/config"
	delivery "comic-server/internal/delivery/http"
	"comic-server/internal/logger"
	"comic-server/internal/orchestrator"
	"comic-server/internal/repository"
	"comic-server/internal/service"
	"comic-server/internal/stage"
	"comic-server/internal/storage"
	"comic-server/migrations"
	"comic-server/pkg/database"
	"comic-server/pkg/migration"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// В production .env может отсутствовать
		fmt.Printf("Warning: could not load .env file: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg.LogSummary(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Connecting to database...")
	pool, err := database.New(ctx, database.Config{DSN: cfg.GetDSN(), MaxConns: cfg.DBMaxConns})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, pool)
	if err := migrator.Up(ctx); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	bookRepo := repository.NewPgBookRepository(pool, log)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("Redis is unreachable, book cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			bookRepo = repository.NewCachedBookRepository(bookRepo, redisClient, cfg.RedisTTL, log)
		}
	}

	store, err := storage.NewFileStore(cfg.StoragePath, cfg.StoragePublicBaseURL, log)
	if err != nil {
		log.Fatal("Failed to initialize image storage", zap.Error(err))
	}

	books := service.NewBookService(bookRepo, store, log)

	textClient, err := ai.NewTextClient(ai.TextConfig{
		APIKey:      cfg.TextAPIKey,
		BaseURL:     cfg.TextBaseURL,
		Model:       cfg.TextModel,
		Timeout:     cfg.TextTimeout,
		MaxAttempts: cfg.TextMaxAttempts,
	})
	if err != nil {
		log.Fatal("Failed to initialize text AI client", zap.Error(err))
	}

	imageClient, err := ai.NewImageClient(ai.ImageConfig{
		APIKey:  cfg.ImageAPIKey,
		BaseURL: cfg.ImageBaseURL,
		Model:   cfg.ImageModel,
		Size:    cfg.ImageSize,
		Timeout: cfg.ImageTimeout,
	})
	if err != nil {
		log.Fatal("Failed to initialize image AI client", zap.Error(err))
	}

	storyStage := stage.NewStory(textClient, cfg.StoryParts, cfg.StoryPartDelay, log)
	promptStage := stage.NewPrompts(textClient, log)

	stageClient, err := orchestrator.NewStageClient(cfg.StageBaseURL, log)
	if err != nil {
		log.Fatal("Failed to initialize stage client", zap.Error(err))
	}
	orch := orchestrator.New(stageClient, books, orchestrator.Config{
		PromptBatchSize: cfg.PromptBatchSize,
		ImagePace:       cfg.ImagePace,
		SaveGrace:       cfg.SaveGrace,
	}, log)

	handler := delivery.NewHandler(storyStage, promptStage, imageClient, store, orch, books, log)
	router := delivery.NewRouter(handler, delivery.RouterConfig{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		StaticDir:      store.BasePath(),
	}, log)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// SSE-потоки живут дольше любого разумного write-таймаута
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", zap.Int("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
	log.Info("Server stopped")
}
