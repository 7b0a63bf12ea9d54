package queue

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/feichai0017/document-ingest/pkg/logger"
)

// enqueuer is the part of *asynq.Client the producer needs.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqProducer enqueues OCR jobs on redis through asynq.
type AsynqProducer struct {
	client enqueuer
	queue  string
	logger logger.Logger
}

func NewAsynqProducer(redisOpt asynq.RedisConnOpt, queueName string, log logger.Logger) *AsynqProducer {
	return newAsynqProducer(asynq.NewClient(redisOpt), queueName, log)
}

func newAsynqProducer(client enqueuer, queueName string, log logger.Logger) *AsynqProducer {
	return &AsynqProducer{
		client: client,
		queue:  queueName,
		logger: log,
	}
}

// Enqueue uses the document id as task id, so a second enqueue for the same
// document is acknowledged without creating another job.
func (p *AsynqProducer) Enqueue(ctx context.Context, job IngestJob, opts EnqueueOptions) (*Ack, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	payload, err := EncodeEnvelope(job, opts)
	if err != nil {
		return nil, err
	}

	task := asynq.NewTask(TaskTypeOCRDocument, payload)
	info, err := p.client.EnqueueContext(ctx, task,
		asynq.TaskID(job.DocumentID),
		asynq.Queue(p.queue),
		asynq.MaxRetry(opts.Attempts-1),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		p.logger.Warn("OCR job already queued",
			logger.String("document_id", job.DocumentID),
			logger.String("queue", p.queue),
		)
		return &Ack{JobID: job.DocumentID, Queue: p.queue, Duplicate: true}, nil
	}
	if err != nil {
		p.logger.Error("Failed to enqueue OCR job",
			logger.String("document_id", job.DocumentID),
			logger.String("queue", p.queue),
			logger.Error(err),
		)
		return nil, unavailable(err)
	}

	p.logger.Info("OCR job enqueued",
		logger.String("document_id", job.DocumentID),
		logger.String("task_id", info.ID),
		logger.String("queue", info.Queue),
		logger.Int("max_retry", info.MaxRetry),
	)

	return &Ack{JobID: info.ID, Queue: info.Queue}, nil
}

func (p *AsynqProducer) Close() error {
	return p.client.Close()
}
