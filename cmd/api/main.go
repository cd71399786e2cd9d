package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-accounts-api/internal/config"
	jwtinfra "github.com/go-accounts-api/internal/infrastructure/jwt"
	s3infra "github.com/go-accounts-api/internal/infrastructure/s3"
	"github.com/go-accounts-api/internal/infrastructure/smtp"
	transporthttp "github.com/go-accounts-api/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(newLogger(cfg))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsDevelopment() {
		return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	ctx := context.Background()

	users, closeStore, err := openUserStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	access, err := jwtinfra.NewProvider(cfg.AccessTokenSecret, cfg.AccessTokenExpiry)
	if err != nil {
		return fmt.Errorf("access token provider: %w", err)
	}
	refresh, err := jwtinfra.NewProvider(cfg.RefreshTokenSecret, cfg.RefreshTokenExpiry)
	if err != nil {
		return fmt.Errorf("refresh token provider: %w", err)
	}

	deps := &transporthttp.Deps{
		UserRepo:      users,
		Mailer:        smtp.NewMailer(cfg),
		AccessTokens:  access,
		RefreshTokens: refresh,
	}
	if cfg.S3BucketName != "" {
		s3Client, err := s3infra.NewClient(ctx, cfg)
		if err != nil {
			return err
		}
		deps.Objects = s3infra.NewStore(s3Client, cfg.S3BucketName)
	} else {
		slog.Warn("S3_BUCKET_NAME not set, avatar and cover image uploads are ignored")
	}

	router, stopRouter := transporthttp.NewRouter(cfg, deps)
	defer stopRouter()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
