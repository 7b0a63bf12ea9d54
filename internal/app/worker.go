package app

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/document-ingest/config"
	"github.com/feichai0017/document-ingest/pkg/logger"
	"github.com/feichai0017/document-ingest/pkg/worker"
)

// WorkerApp holds the OCR job consumer and everything it owns.
type WorkerApp struct {
	Worker *worker.DocumentWorker

	resources
}

// NewWorkerApp builds the asynq consumer. Only the asynq queue backend has a
// consumer in this process.
func NewWorkerApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*WorkerApp, error) {
	if cfg.QueueBackend != config.QueueAsynq {
		return nil, fmt.Errorf("worker requires QUEUE_BACKEND=%s, got %q", config.QueueAsynq, cfg.QueueBackend)
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	store, err := NewStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &WorkerApp{resources: resources{logger: log}}

	statuses, err := newStatusStore(cfg, redisOpt)
	if err != nil {
		return nil, err
	}
	a.onClose("job status store", statuses.Close)

	a.Worker = worker.NewDocumentWorker(worker.Config{
		RedisOpt:    redisOpt,
		Concurrency: cfg.WorkerConcurrency,
		Queue:       cfg.OCRQueueName,
	}, store, statuses, log)

	return a, nil
}
