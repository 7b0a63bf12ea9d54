package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/document-ingest/pkg/logger"
	"github.com/feichai0017/document-ingest/pkg/queue"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
}

type Config struct {
	RedisOpt    asynq.RedisConnOpt
	Concurrency int
	Queue       string
}

type BaseWorker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	logger   logger.Logger
	stopOnce sync.Once
}

// Start runs the server in the background until ctx is done.
func (w *BaseWorker) Start(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("failed to start worker server: %w", err)
	}

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}

func (w *BaseWorker) Stop() error {
	w.stopOnce.Do(func() {
		w.logger.Info("Stopping worker server")
		w.server.Shutdown()
	})
	return nil
}

func newServer(cfg Config, log logger.Logger) *asynq.Server {
	return asynq.NewServer(cfg.RedisOpt, asynq.Config{
		Concurrency:    cfg.Concurrency,
		Queues:         map[string]int{cfg.Queue: 1},
		RetryDelayFunc: RetryDelay,
		Logger:         asynqLogger{log: log.Named("asynq")},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			log.Warn("Task failed",
				logger.String("type", task.Type()),
				logger.Int("retried", retried),
				logger.Int("max_retry", maxRetry),
				logger.Error(err),
			)
		}),
	})
}

// RetryDelay applies the fixed backoff carried in the job envelope. Tasks
// without a readable envelope fall back to asynq's exponential delay.
func RetryDelay(n int, err error, task *asynq.Task) time.Duration {
	env, decodeErr := queue.DecodeEnvelope(task.Payload())
	if decodeErr != nil {
		return asynq.DefaultRetryDelayFunc(n, err, task)
	}
	return env.Backoff()
}

// asynqLogger routes asynq's own logs through the service logger.
type asynqLogger struct {
	log logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(fmt.Sprint(args...)) }
