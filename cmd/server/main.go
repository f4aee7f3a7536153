package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"stockroom/backend/internal/config"
	"stockroom/backend/internal/events"
	"stockroom/backend/internal/httpapi"
	"stockroom/backend/internal/ledger"
	"stockroom/backend/internal/lock"
	"stockroom/backend/internal/logger"
	"stockroom/backend/internal/service"
	"stockroom/backend/internal/store"
	"stockroom/backend/internal/store/memory"
	pgstore "stockroom/backend/internal/store/postgres"
)

const writeTimeout = 10 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	zlog, err := logger.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()
	zap.ReplaceGlobals(zlog)

	if err := validateSecurityConfig(cfg); err != nil {
		zlog.Fatal("invalid security configuration", zap.Error(err))
	}
	if err := validateLockConfig(cfg, writeTimeout); err != nil {
		zlog.Fatal("invalid lock configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 3)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if cfg.DatabaseMigrate {
			if err := pg.Migrate(ctx); err != nil {
				zlog.Fatal("apply schema", zap.Error(err))
			}
		}
		repo = pg
		closers = append(closers, pg.Close)
		zlog.Info("repository: postgres")
	} else {
		mem, err := memory.NewSeeded()
		if err != nil {
			zlog.Fatal("seed memory store", zap.Error(err))
		}
		repo = mem
		zlog.Info("repository: in-memory")
	}

	// Redis locks are never renewed. A transaction that outlives LOCK_TTL
	// loses its item exclusion and only the Postgres row locks remain, so the
	// TTL has to exceed the longest request (validateLockConfig).
	var locker lock.Locker = lock.NewLocal(cfg.LockWait)
	if cfg.RedisAddr != "" {
		redisLocker := lock.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.LockTTL, cfg.LockWait)
		if err := redisLocker.Ping(ctx); err != nil {
			// Postgres row locks still serialize writers, so a local locker is safe.
			zlog.Warn("redis unavailable, using in-process item locks", zap.Error(err))
			_ = redisLocker.Close()
		} else {
			locker = redisLocker
			closers = append(closers, redisLocker.Close)
			zlog.Info("locks: redis")
		}
	} else {
		zlog.Info("locks: in-process")
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		publisher = kafkaPublisher
		closers = append(closers, kafkaPublisher.Close)
		zlog.Info("events: kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		zlog.Info("events: disabled")
	}

	engine := ledger.NewEngine(repo, locker)
	svc := service.New(engine, publisher, zlog.Named("service"))
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, zlog.Named("http"))

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zlog.Info("stockroom backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zlog.Error("close error", zap.Error(err))
		}
	}

	zlog.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AccessTokenTTLMinutes <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL_MINUTES must be positive")
	}
	if !cfg.Development() && cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must not be * outside development")
	}
	return nil
}

func validateLockConfig(cfg config.Config, requestTimeout time.Duration) error {
	if cfg.RedisAddr == "" {
		return nil
	}
	if cfg.LockTTL <= requestTimeout {
		return fmt.Errorf("LOCK_TTL_SECONDS (%s) must exceed the request timeout (%s)", cfg.LockTTL, requestTimeout)
	}
	if cfg.LockTTL <= cfg.LockWait {
		return fmt.Errorf("LOCK_TTL_SECONDS (%s) must exceed LOCK_WAIT_MS (%s)", cfg.LockTTL, cfg.LockWait)
	}
	return nil
}
