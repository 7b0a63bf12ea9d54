package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/document-ingest/config"
	"github.com/feichai0017/document-ingest/internal/app"
	"github.com/feichai0017/document-ingest/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := app.NewLogger(cfg, "worker")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerApp, err := app.NewWorkerApp(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to init worker", logger.Error(err))
		os.Exit(1)
	}
	defer workerApp.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := workerApp.Worker.Start(gctx); err != nil {
			return err
		}
		log.Info("Worker started",
			logger.String("queue", cfg.OCRQueueName),
			logger.Int("concurrency", cfg.WorkerConcurrency),
		)
		<-gctx.Done()
		return workerApp.Worker.Stop()
	})

	if err := g.Wait(); err != nil {
		log.Error("Worker stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Worker stopped")
}
