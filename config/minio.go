package config

type MinioConfig struct {
	AccessKey  string `env:"MINIO_ACCESS_KEY"`
	SecretKey  string `env:"MINIO_SECRET_KEY"`
	Endpoint   string `env:"MINIO_ENDPOINT"`
	UseSSL     bool   `env:"MINIO_USE_SSL" env-default:"false"`
	Region     string `env:"MINIO_REGION"`
	BucketName string `env:"MINIO_BUCKET_NAME" env-default:"documents"`
}
