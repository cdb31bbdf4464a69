package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"goaljournal/internal/ratelimit"
	"goaljournal/internal/util"
	"goaljournal/pkg/ai"
	"goaljournal/pkg/cooldown"
	"goaljournal/pkg/events"
	"goaljournal/pkg/queue"
	"goaljournal/pkg/storage"
	"goaljournal/pkg/store"
	"goaljournal/services/api/internal/app"
	"goaljournal/services/api/internal/config"
	"goaljournal/services/api/internal/server"
)

func main() {
	// .env is optional; config.yaml and real env vars take over from here.
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.InitLogger(cfg.LogLevel)

	dataStore, err := buildStore(cfg)
	if err != nil {
		util.Fatal("failed to init store", "err", err)
	}
	sessions, err := buildSessions(cfg)
	if err != nil {
		util.Fatal("failed to init sessions", "err", err)
	}
	textGen, err := buildTextGenerator(cfg)
	if err != nil {
		util.Fatal("failed to init text generator", "err", err)
	}

	var persister cooldown.Persister
	if cfg.RedisAddr != "" {
		persister = cooldown.NewRedisPersister(cfg.RedisAddr, cfg.RedisPassword)
	}
	tracker, err := cooldown.NewTracker(persister)
	if err != nil {
		util.Fatal("failed to init cooldown tracker", "err", err)
	}

	images := buildImageSource(cfg)
	status := app.NewStatusRecorder()

	var publisher *events.RabbitPublisher
	if cfg.RabbitURL != "" {
		publisher, err = events.NewRabbitPublisher(cfg.RabbitURL, "")
		if err != nil {
			// Events are best-effort; run without them rather than refuse to start.
			slog.Warn("rabbitmq unavailable, events disabled", "err", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	var letterQueue *queue.RedisLetterQueue
	if cfg.RedisAddr != "" {
		letterQueue, err = queue.NewRedisLetterQueue(queue.RedisQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.QueueStream,
			Group:    cfg.QueueGroup,
		})
		if err != nil {
			util.Fatal("failed to init letter queue", "err", err)
		}
	}

	appCfg := app.Config{
		Store:    dataStore,
		Sessions: sessions,
		TextGen:  textGen,
		Images:   images,
		Cooldown: tracker,
		Status:   status,
	}
	if letterQueue != nil {
		appCfg.Scheduler = letterQueue
	}
	if publisher != nil {
		appCfg.Events = publisher
	}
	appCore, err := app.New(appCfg)
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	if letterQueue != nil {
		concurrency := cfg.QueueConcurrency
		if concurrency <= 0 {
			concurrency = 2
		}
		letterQueue.Start(context.Background(), concurrency, func(ctx context.Context, job queue.Job) error {
			_, err := appCore.GenerateLetter(ctx, job.UserID, app.GenerateLetterOptions{
				GoalID:   job.GoalID,
				Type:     job.LetterType,
				IsManual: false,
			})
			return err
		})
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" && cfg.GenerateRatePerMinute > 0 {
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "", cfg.GenerateRatePerMinute, time.Minute)
		if err != nil {
			util.Fatal("failed to init rate limiter", "err", err)
		}
	}

	httpServer := server.New(server.Config{
		App:     appCore,
		Status:  status,
		Limiter: limiter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // letter generation waits on the AI provider
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("api server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func buildStore(cfg config.FileConfig) (store.Store, error) {
	if cfg.Store == "memory" {
		return store.NewMemoryStore(), nil
	}
	return store.NewGormStore(cfg.DatabaseURL)
}

func buildSessions(cfg config.FileConfig) (store.SessionStore, error) {
	if cfg.SessionStore == "jwt" {
		return store.NewJWTSessionStore(cfg.SessionSecret, 24*time.Hour)
	}
	return store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, 24*time.Hour), nil
}

func buildTextGenerator(cfg config.FileConfig) (ai.TextGenerator, error) {
	if cfg.AIProvider == "gemini" {
		client, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return ai.NewGeminiGenerator(client, cfg.GenerationModel), nil
	}
	return ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.GenerationModel), nil
}

func buildImageSource(cfg config.FileConfig) app.ImageSource {
	if cfg.ImageSource != "ai" {
		return app.NewPoolImageSource(nil)
	}
	generator := ai.NewOpenAIImageGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.ImageModel)
	var archiver app.ImageArchiver
	if cfg.MinioEndpoint != "" {
		objectStore, err := storage.NewMinioStore(
			cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			slog.Warn("minio unavailable, image archiving disabled", "err", err)
		} else {
			archiver = storage.NewImageArchiver(objectStore)
		}
	}
	return app.NewAIImageSource(generator, archiver)
}
