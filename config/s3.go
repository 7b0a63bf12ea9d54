package config

type S3Config struct {
	BucketName string `env:"AWS_S3_BUCKET_NAME"`
	Region     string `env:"AWS_REGION" env-default:"us-east-1"`
	Endpoint   string `env:"AWS_ENDPOINT"`
	AccessKey  string `env:"AWS_ACCESS_KEY"`
	SecretKey  string `env:"AWS_SECRET_KEY"`
}

type SQSConfig struct {
	QueueURL string `env:"SQS_QUEUE_URL"`
	Region   string `env:"SQS_REGION"`
}
