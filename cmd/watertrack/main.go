package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"watertrack/internal/cli"
	"watertrack/internal/config"
	apphttp "watertrack/internal/http"
	"watertrack/internal/log"
)

func main() {
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(log.ComponentApp, config.Load().SlogLevel())
	cfg := cli.LoadAndValidateConfig(bootstrap, (*config.Config).ValidateServer)
	logger := cli.SetupLogger(log.ComponentHTTP, cfg.SlogLevel())

	result := cli.InitBackend(context.Background(), logger, cfg)

	srv := apphttp.NewServer(":"+cfg.Port, result.Service, apphttp.Options{
		JWTSecret:          cfg.JWTSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MonthCacheSize:     cfg.MonthCacheSize,
		MonthCacheTTL:      cfg.MonthCacheTTL,
		Logger:             logger,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting watertrack server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = result.Cleanup()
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
