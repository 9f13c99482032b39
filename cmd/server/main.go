package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"studybuddy/internal/app"
	"studybuddy/internal/config"
	"studybuddy/internal/ingest"
	"studybuddy/internal/ratelimit"
	"studybuddy/internal/server"
	"studybuddy/internal/util"
	"studybuddy/pkg/auth"
	"studybuddy/pkg/crypt"
	"studybuddy/pkg/storage"
	"studybuddy/pkg/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init postgres store: %v", err)
	}
	files, err := storage.NewFileStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("failed to init upload store: %v", err)
	}
	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, 0)
	if err != nil {
		log.Fatalf("failed to init token issuer: %v", err)
	}
	cipher, err := crypt.New(cfg.KeyEncryptionSecret)
	if err != nil {
		log.Fatalf("failed to init key cipher: %v", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	var limiter *ratelimit.FixedWindowLimiter
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		limit := cfg.LoginRateLimitPerMinute
		if cfg.SignupRateLimitPerMinute > limit {
			limit = cfg.SignupRateLimitPerMinute
		}
		if limit > 0 {
			limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "studybuddy:ratelimit", limit, time.Minute)
			if err != nil {
				log.Fatalf("failed to init rate limiter: %v", err)
			}
		}
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	processor := ingest.NewProcessor(dataStore, files)
	sweeper := ingest.NewSweeper(dataStore, processor, ingest.SweeperConfig{
		Interval:    cfg.SweepInterval(),
		Cooldown:    cfg.Cooldown(),
		MaxAttempts: cfg.RetryMaxAttempts,
		BatchSize:   cfg.RetryBatchSize,
	})

	appCore, err := app.New(app.Config{
		Store:     dataStore,
		Files:     files,
		Tokens:    tokens,
		Cipher:    cipher,
		Processor: processor,
		Redis:     redisClient,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Limiter:        limiter,
		TrustedProxies: trusted,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go sweeper.Run(ctx)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
	appCore.Wait()
}
