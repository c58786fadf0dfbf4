package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"seogen/internal/app"
	"seogen/internal/config"
	"seogen/internal/extract"
	"seogen/internal/metadata"
	"seogen/internal/render"
	"seogen/internal/server"
	"seogen/internal/util"
	"seogen/pkg/ai"
	"seogen/pkg/queue"
	"seogen/pkg/storage"
	"seogen/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, time.Duration(cfg.SessionTTLHours)*time.Hour)
	if err != nil {
		log.Fatalf("failed to init sessions: %v", err)
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init minio: %v", err)
		}
	} else {
		objects, err = storage.NewLocalStore(cfg.UploadsDir)
		if err != nil {
			log.Fatalf("failed to init upload storage: %v", err)
		}
	}

	jobQueue, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:       cfg.RedisAddr,
		Password:   cfg.RedisPassword,
		Stream:     cfg.QueueName,
		Group:      cfg.QueueGroup,
		JobTTL:     time.Duration(cfg.JobTTLHours) * time.Hour,
		MaxRetries: cfg.QueueMaxRetries,
		RetryDelay: time.Duration(cfg.QueueRetryDelaySeconds) * time.Second,
		Classify:   app.ClassifyError,
	})
	if err != nil {
		log.Fatalf("failed to init queue: %v", err)
	}

	if err := os.MkdirAll(cfg.DownloadsDir, 0o755); err != nil {
		log.Fatalf("failed to create downloads dir: %v", err)
	}

	llm := ai.NewOpenAICompatGenerator(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel)

	appCore, err := app.New(app.Config{
		Store:         dataStore,
		Sessions:      sessions,
		Objects:       objects,
		Queue:         jobQueue,
		Extractor:     extract.New(time.Duration(cfg.FetchTimeoutSeconds) * time.Second),
		Metadata:      metadata.New(llm),
		Renderer:      render.New(),
		DownloadsDir:  cfg.DownloadsDir,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	jobQueue.Start(context.Background(), cfg.QueueConcurrency, appCore.ProcessJob)

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		AllowedOrigins:             cfg.AllowedOrigins,
		TrustedProxies:             cfg.TrustedProxies,
		DownloadsDir:               cfg.DownloadsDir,
		MaxUploadBytes:             cfg.MaxUploadBytes,
		AllowedExtensions:          cfg.AllowedExtensions,
		SignupRateLimitPerMinute:   cfg.SignupRateLimitPerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		GenerateRateLimitPerMinute: cfg.GenerateRateLimitPerMinute,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("seogen server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
