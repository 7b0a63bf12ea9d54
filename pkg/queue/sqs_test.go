package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-ingest/internal/models"
	"github.com/feichai0017/document-ingest/pkg/logger"
)

type fakeSQS struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSQSProducer_Enqueue(t *testing.T) {
	fake := &fakeSQS{}
	p := newSQSProducer(fake, "https://sqs.us-east-1.amazonaws.com/123/ocr", logger.NewNop())

	ack, err := p.Enqueue(context.Background(), testJob, EnqueueOptions{Attempts: 3, Backoff: 250 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", ack.JobID)

	attrs := fake.input.MessageAttributes
	assert.Equal(t, "3", aws.ToString(attrs["attempts"].StringValue))
	assert.Equal(t, "250", aws.ToString(attrs["backoffDelayMs"].StringValue))
	assert.Equal(t, TaskTypeOCRDocument, aws.ToString(attrs["taskType"].StringValue))
	assert.Nil(t, fake.input.MessageGroupId)

	env, err := DecodeEnvelope([]byte(aws.ToString(fake.input.MessageBody)))
	require.NoError(t, err)
	assert.Equal(t, testJob, env.Job)
}

func TestSQSProducer_FifoDeduplicatesByDocument(t *testing.T) {
	fake := &fakeSQS{}
	p := newSQSProducer(fake, "https://sqs.us-east-1.amazonaws.com/123/ocr.fifo", logger.NewNop())

	_, err := p.Enqueue(context.Background(), testJob, EnqueueOptions{Attempts: 1})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", aws.ToString(fake.input.MessageDeduplicationId))
	assert.Equal(t, "doc-1", aws.ToString(fake.input.MessageGroupId))
}

func TestSQSProducer_Failure(t *testing.T) {
	p := newSQSProducer(&fakeSQS{err: errors.New("throttled")}, "q", logger.NewNop())

	_, err := p.Enqueue(context.Background(), testJob, EnqueueOptions{Attempts: 1})
	assert.Equal(t, models.KindQueueUnavailable, models.KindOf(err))
}
