package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageS3    = "s3"

	QueueAsynq = "asynq"
	QueueSQS   = "sqs"
)

type Config struct {
	Port int `env:"PORT" env-default:"8000"`

	DocumentStoragePath string `env:"DOCUMENT_STORAGE_PATH" env-default:"storage/documents"`
	StorageBackend      string `env:"STORAGE_BACKEND" env-default:"local"`
	MaxUploadSizeMB     int64  `env:"MAX_UPLOAD_SIZE_MB" env-default:"512"`

	// UploadIdleTimeout bounds the wait for each read of an upload body.
	UploadIdleTimeout time.Duration `env:"UPLOAD_IDLE_TIMEOUT" env-default:"30s"`

	RedisURL          string `env:"REDIS_URL" env-default:"redis://localhost:6379/0"`
	QueueBackend      string `env:"QUEUE_BACKEND" env-default:"asynq"`
	OCRQueueName      string `env:"OCR_QUEUE_NAME" env-default:"ocr"`
	OCRJobAttempts    int    `env:"OCR_JOB_ATTEMPTS" env-default:"3"`
	OCRJobBackoffMs   int64  `env:"OCR_JOB_BACKOFF_MS" env-default:"5000"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" env-default:"10"`

	DatabaseURL   string `env:"DATABASE_URL"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" env-default:"true"`

	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	LogEncoding string `env:"LOG_ENCODING" env-default:"json"`
	LogFile     string `env:"LOG_FILE"`

	LogMaxSizeMB  int `env:"LOG_MAX_SIZE_MB" env-default:"100"`
	LogMaxBackups int `env:"LOG_MAX_BACKUPS" env-default:"3"`
	LogMaxAgeDays int `env:"LOG_MAX_AGE_DAYS" env-default:"7"`

	Minio MinioConfig
	S3    S3Config
	SQS   SQSConfig
}

// Load reads an optional .env file (ENV_FILE overrides the path), binds the
// environment and validates the result.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks ranges and backend-specific settings and makes the storage
// path absolute.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.MaxUploadSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_SIZE_MB must be positive, got %d", c.MaxUploadSizeMB))
	}
	if c.UploadIdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("UPLOAD_IDLE_TIMEOUT must be positive, got %s", c.UploadIdleTimeout))
	}
	if c.OCRJobAttempts <= 0 {
		errs = append(errs, fmt.Errorf("OCR_JOB_ATTEMPTS must be positive, got %d", c.OCRJobAttempts))
	}
	if c.OCRJobBackoffMs < 0 {
		errs = append(errs, fmt.Errorf("OCR_JOB_BACKOFF_MS must not be negative, got %d", c.OCRJobBackoffMs))
	}
	if c.OCRQueueName == "" {
		errs = append(errs, errors.New("OCR_QUEUE_NAME is required"))
	}
	if c.WorkerConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency))
	}

	switch c.StorageBackend {
	case StorageLocal:
		if c.DocumentStoragePath == "" {
			errs = append(errs, errors.New("DOCUMENT_STORAGE_PATH is required"))
		} else if abs, err := filepath.Abs(c.DocumentStoragePath); err != nil {
			errs = append(errs, fmt.Errorf("DOCUMENT_STORAGE_PATH: %w", err))
		} else {
			c.DocumentStoragePath = abs
		}
	case StorageMinio:
		if c.Minio.Endpoint == "" || c.Minio.BucketName == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT and MINIO_BUCKET_NAME are required for minio storage"))
		}
	case StorageS3:
		if c.S3.BucketName == "" {
			errs = append(errs, errors.New("AWS_S3_BUCKET_NAME is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend))
	}

	switch c.QueueBackend {
	case QueueAsynq:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for asynq queue"))
		}
	case QueueSQS:
		if c.SQS.QueueURL == "" {
			errs = append(errs, errors.New("SQS_QUEUE_URL is required for sqs queue"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported QUEUE_BACKEND %q", c.QueueBackend))
	}

	return errors.Join(errs...)
}

// MaxUploadBytes is the per-file size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadSizeMB * 1024 * 1024
}

// JobBackoff is the fixed delay between OCR job attempts.
func (c *Config) JobBackoff() time.Duration {
	return time.Duration(c.OCRJobBackoffMs) * time.Millisecond
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
