package xumm

import (
	"context"
	"sync"
)

// resolution is a single-settlement future. The first resolve or reject
// wins; later calls are no-ops and onSettle runs exactly once.
type resolution struct {
	once     sync.Once
	done     chan struct{}
	value    any
	err      error
	onSettle func()
}

func newResolution() *resolution {
	return &resolution{done: make(chan struct{})}
}

func (r *resolution) settle(v any, err error) bool {
	settled := false
	r.once.Do(func() {
		r.value, r.err = v, err
		close(r.done)
		settled = true
		if r.onSettle != nil {
			r.onSettle()
		}
	})
	return settled
}

func (r *resolution) resolve(v any) bool { return r.settle(v, nil) }

func (r *resolution) reject(err error) bool { return r.settle(nil, err) }

func (r *resolution) isSettled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *resolution) wait(ctx context.Context) (any, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
