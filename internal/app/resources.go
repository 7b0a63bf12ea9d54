package app

import (
	"errors"
	"fmt"

	"github.com/feichai0017/document-ingest/pkg/logger"
)

// resources tracks what a process opened so it can be released on shutdown.
type resources struct {
	logger  logger.Logger
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

func (r *resources) onClose(name string, fn func() error) {
	r.closers = append(r.closers, namedCloser{name: name, close: fn})
}

// Close releases resources in reverse order of acquisition.
func (r *resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.close(); err != nil {
			r.logger.Warn("Failed to close resource", logger.String("resource", c.name), logger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
