package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/campusolx/backend/internal/ai"
	"github.com/campusolx/backend/internal/auth"
	"github.com/campusolx/backend/internal/config"
	"github.com/campusolx/backend/internal/db"
	"github.com/campusolx/backend/internal/logger"
	"github.com/campusolx/backend/internal/realtime"
	"github.com/campusolx/backend/internal/server"
	"github.com/campusolx/backend/internal/service"
	"github.com/campusolx/backend/internal/storage"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zl := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn)
	if err != nil {
		return fmt.Errorf("session tokens: %w", err)
	}

	conn, err := db.Connect(cfg, zl)
	if err != nil {
		return err
	}
	if err := db.Migrate(conn); err != nil {
		return err
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	broker, err := newBroker(ctx, cfg.Realtime, zl)
	if err != nil {
		return err
	}
	defer broker.Close()

	deps := server.Deps{
		Config: cfg,
		DB:     conn,
		Logger: zl,
		Store:  store,
		Broker: broker,
		Tokens: tokens,
	}
	if cfg.Auth.FirebaseProjectID != "" {
		v, err := auth.NewFirebaseVerifier(ctx, cfg.Auth.FirebaseProjectID, cfg.Storage.CredentialsFile)
		if err != nil {
			zl.Warn("google sign-in disabled", zap.Error(err))
		} else {
			deps.Google = v
		}
	}
	if cfg.AI.GeminiAPIKey != "" {
		s, err := ai.NewGeminiScreener(ctx, cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel)
		if err != nil {
			zl.Warn("listing screening disabled", zap.Error(err))
		} else {
			deps.Screener = s
		}
	}
	if cfg.Auth.DemoMode {
		zl.Warn("demo mode enabled: fixture tokens are accepted")
		deps.Fixtures = service.DemoPrincipals()
	}

	srv := server.New(deps)
	addr := ":" + cfg.Port

	errCh := make(chan error, 1)
	go func() {
		zl.Info("starting server", zap.String("addr", addr), zap.String("env", cfg.AppEnv),
			zap.String("storage", cfg.Storage.Driver), zap.String("realtime", cfg.Realtime.Driver))
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newBroker(ctx context.Context, cfg config.RealtimeConfig, zl *zap.Logger) (realtime.Broker, error) {
	switch cfg.Driver {
	case "", "memory":
		return realtime.NewMemoryBroker(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, err
		}
		return realtime.NewRedisBroker(client, zl), nil
	default:
		return nil, errors.New("unknown realtime driver " + cfg.Driver)
	}
}
