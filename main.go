package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eduportal/backend/internal/alert"
	"github.com/eduportal/backend/internal/config"
	"github.com/eduportal/backend/internal/db"
	"github.com/eduportal/backend/internal/handler"
	"github.com/eduportal/backend/internal/metrics"
	"github.com/eduportal/backend/internal/password"
	"github.com/eduportal/backend/internal/ratelimit"
	"github.com/eduportal/backend/internal/service"
	"github.com/eduportal/backend/internal/token"
)

const sweepInterval = time.Hour

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg := config.Load()
	metrics.Register(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("postgres init failed", zap.Error(err))
	}
	defer pool.Close()
	store := &db.Postgres{Pool: pool}

	maxHashWorkers, err := config.ParseInt(cfg.Auth.MaxHashWorkers, 4)
	if err != nil {
		log.Fatal("invalid AUTH_MAX_HASH_WORKERS", zap.Error(err))
	}
	hasher, err := password.NewHasher(password.DefaultParams(), maxHashWorkers)
	if err != nil {
		log.Fatal("password hasher init failed", zap.Error(err))
	}

	accessTTL, _, err := cfg.Auth.ParseDurations()
	if err != nil {
		log.Fatal("invalid token TTL config", zap.Error(err))
	}
	codec, err := token.NewCodec(cfg.Auth.JWTSecret, cfg.Auth.RetiredSecrets, cfg.Auth.Issuer, accessTTL)
	if err != nil {
		log.Fatal("token codec init failed", zap.Error(err))
	}

	var limiter *ratelimit.LoginLimiter
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		defer func() { _ = redisClient.Close() }()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal("redis init failed", zap.Error(err))
		}

		maxAttempts, err := config.ParseInt(cfg.Auth.LoginMaxAttempts, 10)
		if err != nil {
			log.Fatal("invalid AUTH_LOGIN_MAX_ATTEMPTS", zap.Error(err))
		}
		cooldown, err := time.ParseDuration(cfg.Auth.LoginCooldown)
		if err != nil {
			log.Fatal("invalid AUTH_LOGIN_COOLDOWN", zap.Error(err))
		}
		limiter = ratelimit.NewLoginLimiter(redisClient, maxAttempts, cooldown)
	} else {
		log.Info("REDIS_ADDR not set, login throttling disabled")
	}

	authService, err := service.NewAuthService(service.Deps{
		Accounts: store,
		Tokens:   store,
		Hasher:   hasher,
		Codec:    codec,
		Limiter:  limiter,
		Notifier: alert.NewNotifier(cfg.Alert.WebhookURL, cfg.Alert.Token),
		Logger:   log,
	}, cfg.Auth)
	if err != nil {
		log.Fatal("auth service init failed", zap.Error(err))
	}

	if err := authService.EnsureSchema(ctx); err != nil {
		log.Fatal("schema init failed", zap.Error(err))
	}
	if cfg.Admin.Email != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Fatal("bootstrap admin failed", zap.Error(err))
		}
	}

	go sweepLoop(ctx, authService, log)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handler.NewRouter(authService, cfg.Server.AllowedOrigins),
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}

// sweepLoop clears long-expired refresh tokens on an interval.
func sweepLoop(ctx context.Context, authService *service.AuthService, log *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := authService.SweepExpired(ctx)
			if err != nil {
				log.Warn("refresh token sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				log.Info("swept expired refresh tokens", zap.Int64("deleted", deleted))
			}
		}
	}
}
