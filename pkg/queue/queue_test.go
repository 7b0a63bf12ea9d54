package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-ingest/internal/models"
)

func TestEnvelope_CarriesRetrySettings(t *testing.T) {
	job := IngestJob{
		DocumentID:   "doc-1",
		StoragePath:  "/data/doc-1/doc-1.pdf",
		Checksum:     "abc",
		MimeType:     "application/pdf",
		OriginalName: "report.pdf",
		Size:         10,
	}

	payload, err := EncodeEnvelope(job, EnqueueOptions{Attempts: 3, Backoff: 5 * time.Second})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"job": {
			"documentId": "doc-1",
			"storagePath": "/data/doc-1/doc-1.pdf",
			"checksum": "abc",
			"mimeType": "application/pdf",
			"originalName": "report.pdf",
			"size": 10
		},
		"attempts": 3,
		"backoffDelayMs": 5000
	}`, string(payload))

	env, err := DecodeEnvelope(payload)
	require.NoError(t, err)
	assert.Equal(t, job, env.Job)
	assert.Equal(t, 5*time.Second, env.Backoff())
}

func TestEnvelope_RequiresDocumentID(t *testing.T) {
	_, err := EncodeEnvelope(IngestJob{}, EnqueueOptions{Attempts: 1})
	assert.Equal(t, models.KindInvariantViolation, models.KindOf(err))

	_, err = DecodeEnvelope([]byte(`{"job":{}}`))
	assert.Error(t, err)

	_, err = DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)
}

func TestEnqueueOptions_Validate(t *testing.T) {
	assert.NoError(t, EnqueueOptions{Attempts: 1}.validate())
	assert.Error(t, EnqueueOptions{Attempts: 0}.validate())
	assert.Error(t, EnqueueOptions{Attempts: 2, Backoff: -time.Second}.validate())
}
