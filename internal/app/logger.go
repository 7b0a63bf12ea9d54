package app

import (
	"github.com/feichai0017/document-ingest/config"
	"github.com/feichai0017/document-ingest/pkg/logger"
)

// NewLogger builds the process logger. LOG_FILE adds a rotated file output
// next to stdout.
func NewLogger(cfg *config.Config, name string) (logger.Logger, error) {
	outputs := []string{"stdout"}
	if cfg.LogFile != "" {
		outputs = append(outputs, cfg.LogFile)
	}

	log, err := logger.NewLogger(
		logger.WithLevel(cfg.LogLevel),
		logger.WithEncoding(cfg.LogEncoding),
		logger.WithOutputPaths(outputs),
		logger.WithRotation(logger.Rotation{
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAgeDays: cfg.LogMaxAgeDays,
			Compress:   true,
		}),
		logger.WithInitialFields(map[string]interface{}{"service": name}),
	)
	if err != nil {
		return nil, err
	}
	return log, nil
}
