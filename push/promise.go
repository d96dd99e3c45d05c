package push

import (
	"context"
	"sync"
)

// promise is a one-shot result slot. It is created before the platform call
// is issued so that callbacks arriving early still find it.
type promise struct {
	once  sync.Once
	done  chan struct{}
	value []byte
	err   error

	// waiting counts the callers blocked on the promise, guarded by the
	// owning Registrar's mutex.
	waiting int
}

func newPromise() *promise {
	return &promise{done: make(chan struct{})}
}

func (p *promise) fulfill(v []byte) bool {
	return p.settle(v, nil)
}

func (p *promise) reject(err error) bool {
	return p.settle(nil, err)
}

func (p *promise) settle(v []byte, err error) bool {
	settled := false
	p.once.Do(func() {
		p.value = v
		p.err = err
		close(p.done)
		settled = true
	})
	return settled
}

func (p *promise) isPending() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// wait blocks until the promise settles or ctx is done.
func (p *promise) wait(ctx context.Context) ([]byte, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
