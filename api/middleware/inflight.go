package middleware

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
)

// InFlight tracks requests that are still inside the handler chain, so the
// server can wait for their cleanup after it force-closes connections.
type InFlight struct {
	wg sync.WaitGroup
}

func (f *InFlight) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		f.wg.Add(1)
		defer f.wg.Done()
		c.Next()
	}
}

// Wait blocks until every tracked request has returned or ctx is done.
func (f *InFlight) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
