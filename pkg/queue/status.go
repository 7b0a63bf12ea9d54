package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/feichai0017/document-ingest/internal/models"
)

const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobRetrying  = "retrying"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// JobStatus is the OCR job state reported to clients.
type JobStatus struct {
	DocumentID string    `json:"documentId"`
	Status     string    `json:"status"`
	Queue      string    `json:"queue,omitempty"`
	Retried    int       `json:"retried"`
	MaxRetry   int       `json:"maxRetry"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// StatusReader is implemented by producers that can report job state.
type StatusReader interface {
	JobStatus(ctx context.Context, documentID string) (*JobStatus, error)
}

// cache is the part of the redis client the store needs.
type cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type inspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

// StatusStore keeps final job states in redis and falls back to the asynq
// inspector for jobs that are still in flight.
type StatusStore struct {
	redis     cache
	inspector inspector
	queue     string
	ttl       time.Duration
}

func NewStatusStore(client *redis.Client, redisOpt asynq.RedisConnOpt, queueName string, ttl time.Duration) *StatusStore {
	return &StatusStore{
		redis:     client,
		inspector: asynq.NewInspector(redisOpt),
		queue:     queueName,
		ttl:       ttl,
	}
}

func statusKey(documentID string) string {
	return fmt.Sprintf("ocr_job:%s", documentID)
}

// SaveFinalStatus records status with the store's TTL.
func (s *StatusStore) SaveFinalStatus(ctx context.Context, status *JobStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := s.redis.Set(ctx, statusKey(status.DocumentID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}
	return nil
}

// JobStatus returns the saved status, or the live asynq state when nothing
// was saved yet.
func (s *StatusStore) JobStatus(ctx context.Context, documentID string) (*JobStatus, error) {
	data, err := s.redis.Get(ctx, statusKey(documentID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}
	if err == nil {
		var status JobStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status: %w", err)
		}
		return &status, nil
	}

	if s.inspector == nil {
		return nil, models.NewError(models.KindNotFound, "Job not found", nil, nil)
	}

	info, err := s.inspector.GetTaskInfo(s.queue, documentID)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, models.NewError(models.KindNotFound, "Job not found", nil, err)
		}
		return nil, fmt.Errorf("failed to inspect task: %w", err)
	}

	return convertTaskInfo(documentID, info), nil
}

func (s *StatusStore) Close() error {
	if c, ok := s.inspector.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func convertTaskInfo(documentID string, info *asynq.TaskInfo) *JobStatus {
	status := &JobStatus{
		DocumentID: documentID,
		Queue:      info.Queue,
		Retried:    info.Retried,
		MaxRetry:   info.MaxRetry,
		Error:      info.LastErr,
		UpdatedAt:  info.LastFailedAt,
	}

	switch info.State {
	case asynq.TaskStateActive:
		status.Status = JobRunning
	case asynq.TaskStateRetry:
		status.Status = JobRetrying
	case asynq.TaskStateArchived:
		status.Status = JobFailed
	case asynq.TaskStateCompleted:
		status.Status = JobCompleted
		status.UpdatedAt = info.CompletedAt
	default:
		status.Status = JobPending
		status.UpdatedAt = info.NextProcessAt
	}

	return status
}
