package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/feichai0017/document-ingest/pkg/logger"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSProducer sends OCR jobs to an SQS queue. Retry settings are sent as
// message attributes as well as in the body; the queue's redrive policy is
// expected to match them.
type SQSProducer struct {
	client   sqsAPI
	queueURL string
	logger   logger.Logger
}

func NewSQSProducer(ctx context.Context, queueURL, region string, log logger.Logger) (*SQSProducer, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newSQSProducer(sqs.NewFromConfig(cfg), queueURL, log), nil
}

func newSQSProducer(client sqsAPI, queueURL string, log logger.Logger) *SQSProducer {
	return &SQSProducer{
		client:   client,
		queueURL: queueURL,
		logger:   log,
	}
}

func (p *SQSProducer) Enqueue(ctx context.Context, job IngestJob, opts EnqueueOptions) (*Ack, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	payload, err := EncodeEnvelope(job, opts)
	if err != nil {
		return nil, err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"taskType": {
				DataType:    aws.String("String"),
				StringValue: aws.String(TaskTypeOCRDocument),
			},
			"attempts": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.Itoa(opts.Attempts)),
			},
			"backoffDelayMs": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatInt(opts.Backoff.Milliseconds(), 10)),
			},
		},
	}
	if strings.HasSuffix(p.queueURL, ".fifo") {
		input.MessageGroupId = aws.String(job.DocumentID)
		input.MessageDeduplicationId = aws.String(job.DocumentID)
	}

	out, err := p.client.SendMessage(ctx, input)
	if err != nil {
		p.logger.Error("Failed to send OCR job to SQS",
			logger.String("document_id", job.DocumentID),
			logger.Error(err),
		)
		return nil, unavailable(err)
	}

	msgID := aws.ToString(out.MessageId)
	p.logger.Info("OCR job enqueued",
		logger.String("document_id", job.DocumentID),
		logger.String("message_id", msgID),
	)

	return &Ack{JobID: msgID, Queue: p.queueURL}, nil
}

func (p *SQSProducer) Close() error {
	return nil
}
