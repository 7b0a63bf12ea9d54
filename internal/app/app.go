package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/document-ingest/config"
	documentrepo "github.com/feichai0017/document-ingest/internal/repository/document"
	"github.com/feichai0017/document-ingest/internal/service/document"
	"github.com/feichai0017/document-ingest/internal/upload"
	"github.com/feichai0017/document-ingest/pkg/logger"
	"github.com/feichai0017/document-ingest/pkg/queue"
)

// jobStatusTTL is how long final OCR job states stay readable.
const jobStatusTTL = 24 * time.Hour

// App holds the ingestion service and everything it owns.
type App struct {
	DocumentService *document.DocumentService

	resources
}

// NewApp connects every backend selected by cfg. On error, whatever was
// already opened is closed again.
func NewApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{resources: resources{logger: log}}

	store, err := NewStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	repo, err := a.repository(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	producer, jobs, err := a.queue(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var opts []document.Option
	if jobs != nil {
		opts = append(opts, document.WithStatusReader(jobs))
	}

	a.DocumentService = document.NewService(
		repo,
		upload.NewReceiver(store, cfg.MaxUploadBytes(), log),
		store,
		producer,
		log,
		document.ServiceConfig{
			JobAttempts: cfg.OCRJobAttempts,
			JobBackoff:  cfg.JobBackoff(),
		},
		opts...,
	)

	return a, nil
}

// repository uses Postgres when DATABASE_URL is set and memory otherwise.
func (a *App) repository(ctx context.Context, cfg *config.Config) (document.Repository, error) {
	if cfg.DatabaseURL == "" {
		a.logger.Warn("DATABASE_URL is not set, documents are kept in memory")
		return documentrepo.NewMemory(), nil
	}

	db, err := documentrepo.Connect(ctx, cfg.DatabaseURL, documentrepo.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.onClose("database", db.Close)

	if cfg.DBAutoMigrate {
		if err := documentrepo.Migrate(ctx, db.DB); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		a.logger.Info("Database migrated")
	}

	return documentrepo.NewPostgres(db), nil
}

// queue builds the producer and, when the backend supports it, the job
// status reader.
func (a *App) queue(ctx context.Context, cfg *config.Config) (queue.Producer, queue.StatusReader, error) {
	switch cfg.QueueBackend {
	case config.QueueAsynq:
		redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		producer := queue.NewAsynqProducer(redisOpt, cfg.OCRQueueName, a.logger)
		a.onClose("queue producer", producer.Close)

		statuses, err := newStatusStore(cfg, redisOpt)
		if err != nil {
			return nil, nil, err
		}
		a.onClose("job status store", statuses.Close)

		return producer, statuses, nil

	case config.QueueSQS:
		producer, err := queue.NewSQSProducer(ctx, cfg.SQS.QueueURL, cfg.SQS.Region, a.logger)
		if err != nil {
			return nil, nil, err
		}
		a.onClose("queue producer", producer.Close)
		return producer, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}

// statusStore pairs the store with the redis client it owns.
type statusStore struct {
	*queue.StatusStore
	client *redis.Client
}

func (s statusStore) Close() error {
	return errors.Join(s.StatusStore.Close(), s.client.Close())
}

func newStatusStore(cfg *config.Config, redisOpt asynq.RedisConnOpt) (statusStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return statusStore{}, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	return statusStore{
		StatusStore: queue.NewStatusStore(client, redisOpt, cfg.OCRQueueName, jobStatusTTL),
		client:      client,
	}, nil
}
