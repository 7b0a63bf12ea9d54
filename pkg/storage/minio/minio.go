package minio

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	cfg "github.com/feichai0017/document-ingest/config"
	"github.com/feichai0017/document-ingest/internal/models"
	"github.com/feichai0017/document-ingest/pkg/logger"
	"github.com/feichai0017/document-ingest/pkg/storage"
)

// partSize bounds memory used by streaming uploads of unknown length.
const partSize = 16 << 20

type MinioStorage struct {
	client     *minio.Client
	bucketName string
	logger     logger.Logger
}

// Allocate implements storage.Storage. Buckets are flat, so there is nothing
// to create beyond checking the bucket is reachable.
func (m *MinioStorage) Allocate(ctx context.Context, documentID, originalName string) (storage.Location, error) {
	exists, err := m.client.BucketExists(ctx, m.bucketName)
	if err != nil || !exists {
		if err == nil {
			err = fmt.Errorf("bucket %s does not exist", m.bucketName)
		}
		m.logger.Error("MinIO bucket unavailable",
			logger.String("bucket", m.bucketName),
			logger.Error(err),
		)
		return "", models.NewError(models.KindStorageUnavailable, "Document storage is unavailable", nil, err)
	}
	return storage.Location(storage.ObjectKey(documentID, originalName)), nil
}

// Write implements storage.Storage.
func (m *MinioStorage) Write(ctx context.Context, loc storage.Location, r io.Reader) (int64, error) {
	info, err := m.client.PutObject(ctx, m.bucketName, string(loc), r, -1, minio.PutObjectOptions{
		PartSize: partSize,
	})
	if err != nil {
		m.logger.Error("Failed to store file to MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", string(loc)),
			logger.Error(err),
		)
		return info.Size, models.NewError(models.KindStorageWriteFailed, "Failed to store uploaded file", nil, err)
	}

	return info.Size, nil
}

// Open implements storage.Storage.
func (m *MinioStorage) Open(ctx context.Context, loc storage.Location) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, string(loc), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("failed to get %s: %w", loc, models.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	return obj, nil
}

// Delete implements storage.Storage.
func (m *MinioStorage) Delete(ctx context.Context, loc storage.Location) error {
	err := m.client.RemoveObject(ctx, m.bucketName, string(loc), minio.RemoveObjectOptions{})
	if err != nil {
		m.logger.Warn("Failed to delete file from MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", string(loc)),
			logger.Error(err),
		)
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

func NewMinioStorage(ctx context.Context, minioConfig cfg.MinioConfig, log logger.Logger) (*MinioStorage, error) {
	client, err := minio.New(minioConfig.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioConfig.AccessKey, minioConfig.SecretKey, ""),
		Secure: minioConfig.UseSSL,
		Region: minioConfig.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, minioConfig.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, minioConfig.BucketName, minio.MakeBucketOptions{
			Region: minioConfig.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Info("Created MinIO bucket", logger.String("bucket", minioConfig.BucketName))
	}

	return &MinioStorage{
		client:     client,
		bucketName: minioConfig.BucketName,
		logger:     log,
	}, nil
}
