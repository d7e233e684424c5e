package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/justiceaid/docservice/internal/config"
	"github.com/justiceaid/docservice/internal/database"
	"github.com/justiceaid/docservice/internal/document"
	"github.com/justiceaid/docservice/internal/ocr"
	"github.com/justiceaid/docservice/internal/queue"
	"github.com/justiceaid/docservice/internal/queue/workers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewPool(context.Background(), cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Concurrency bounds how many image/OCR pipelines run at once; each one
	// holds a decoded image and a Tesseract client in memory.
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.OCR.WorkerConcurrency,
		},
	)

	orchestrator := ocr.NewOrchestrator(
		ocr.NewTesseractEngine(),
		ocr.WithMaxRetries(cfg.OCR.MaxRetries),
		ocr.WithMinConfidence(cfg.OCR.MinConfidence),
		ocr.WithAttemptTimeout(cfg.OCR.AttemptTimeout),
		ocr.WithBackoffUnit(cfg.OCR.BackoffUnit),
	)

	docStore := document.NewStore(db)
	ocrWorker := workers.NewOCRWorker(docStore, orchestrator)

	registry := queue.NewHandlersRegistry()
	registry.RegisterFunc(queue.TypeOCRProcess, ocrWorker.ProcessTask)

	slog.Info("starting worker", "concurrency", cfg.OCR.WorkerConcurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
