package main

import (
	"context"
	"errors"
	"os"
	"time"

	"watertrack/internal/amqp"
	"watertrack/internal/cli"
	"watertrack/internal/config"
	"watertrack/internal/log"
	"watertrack/internal/ports"
	"watertrack/internal/services"
	gsheet "watertrack/internal/sheets/google"
	"watertrack/internal/storage"
	"watertrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	bootstrap := cli.SetupLogger(log.ComponentApp, config.Load().SlogLevel())
	cfg := cli.LoadAndValidateConfig(bootstrap, nil)
	logger := cli.SetupLogger(log.ComponentWorker, cfg.SlogLevel())

	logger.Info("Starting watertrack-worker")

	// The worker shares state with the server only through the database.
	if cfg.DataBackend != "sqlite" {
		logger.Error("watertrack-worker needs DATA_BACKEND=sqlite", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	// Google Sheets export is optional
	var exporter ports.SummaryExporter
	if cfg.GoogleSpreadsheetID != "" {
		sheetsClient, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = sheetsClient
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	builder := services.NewSummaryBuilder(repo, exporter)
	summaryWorker := worker.NewSummaryWorker(builder, repo, cfg.SummaryBatchSize)
	processor := services.NewSummaryProcessor(repo, builder, services.SummaryProcessorConfig{
		PollInterval: cfg.SummaryInterval,
		BatchSize:    cfg.SummaryBatchSize,
	})

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
	} else {
		logger.Info("AMQP disabled - relying on the periodic processor", "interval", cfg.SummaryInterval)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Summary processor stop error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if err := repo.Close(); err != nil {
			logger.Warn("Repository close error", log.FieldError, err)
		}
	})

	// Rebuild months whose messages were missed while the worker was down.
	if cfg.SummaryStartupCheck {
		logger.Info("Performing startup summary check...")
		if err := summaryWorker.StartupCheck(ctx); err != nil {
			logger.Error("Failed startup summary check", log.FieldError, err)
		}
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start summary processor", log.FieldError, err)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeDayChanged(ctx, summaryWorker.HandleDayChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", log.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
