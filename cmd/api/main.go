package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"authkeeper/internal/config"
	"authkeeper/internal/db"
	"authkeeper/internal/email"
	apihttp "authkeeper/internal/http"
	"authkeeper/internal/logger"
	"authkeeper/internal/repository"
	"authkeeper/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL, zl); err != nil {
			zl.Fatal("db migrate", zap.Error(err))
		}
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		zl.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			zl.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var limiter service.EmailRateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			zl.Warn("redis ping failed, using in-memory email limiter", zap.Error(err))
		} else {
			limiter = service.NewRedisEmailRateLimiter(redisClient, zl, cfg.EmailRateWindow, cfg.EmailRateLimit)
		}
		cancel()
	}
	if limiter == nil {
		limiter = service.NewEmailRateLimiter(cfg.EmailRateWindow, cfg.EmailRateLimit)
	}

	hasher := service.NewBcryptHasher(cfg.BcryptCost)
	jwtSvc := service.NewJWTService(
		cfg.AccessTokenSecret,
		cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
		cfg.JWTIssuer,
	)
	links := service.Links{
		VerifyEmailBase:   strings.TrimRight(cfg.AppBaseURL, "/") + "/api/v1/users/verify-email",
		ResetPasswordBase: cfg.ForgotPasswordRedirectURL,
	}

	userSvc := service.NewUserService(zl, userRepo, hasher, emailSender, limiter, links)
	sessionSvc := service.NewSessionService(zl, userRepo, hasher, jwtSvc)
	resetSvc := service.NewPasswordResetService(zl, userRepo, hasher, emailSender, limiter, links)

	userHandler := apihttp.NewUserHandler(zl, userSvc, sessionSvc, resetSvc, apihttp.CookieConfig{
		Secure:     cfg.CookieSecure,
		AccessTTL:  jwtSvc.AccessTTL(),
		RefreshTTL: jwtSvc.RefreshTTL(),
	})
	healthHandler := apihttp.NewHealthHandler(zl, pool)
	router := apihttp.NewRouter(
		zl,
		apihttp.RouterConfig{CORSOrigins: cfg.CORSOrigins},
		userHandler,
		healthHandler,
		apihttp.AuthMiddleware(zl, sessionSvc),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zl.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zl.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("server shutdown", zap.Error(err))
	}
}
