package upload

import (
	"sync"

	"github.com/feichai0017/document-ingest/internal/models"
)

// settleGuard records the single outcome of a receive. The pipeline goroutine
// and the request context can both try to settle it; the first one wins and
// the other is told it lost.
type settleGuard struct {
	mu      sync.Mutex
	settled bool
	res     *Result
	err     error
}

func (g *settleGuard) succeed(res *Result) bool {
	return g.settle(res, nil)
}

func (g *settleGuard) fail(err error) bool {
	return g.settle(nil, err)
}

func (g *settleGuard) settle(res *Result, err error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.settled {
		return false
	}
	g.settled = true
	g.res, g.err = res, err
	return true
}

func (g *settleGuard) outcome() (*Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.settled {
		return nil, models.NewError(models.KindInvariantViolation, "upload finished without an outcome", nil, nil)
	}
	return g.res, g.err
}
