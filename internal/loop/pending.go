package loop

import (
	"context"
	"sync"
)

// Pending is the handle for an asynchronous operation such as a model save.
// It resolves once the operation's continuation has run.
type Pending struct {
	done chan struct{}
	once sync.Once
	err  error
}

// ResolveFunc completes a Pending. Only the first call has an effect.
type ResolveFunc func(err error)

// NewPending returns an unresolved Pending and the function that resolves
// it. The resolver stays with the producer; consumers only wait.
func NewPending() (*Pending, ResolveFunc) {
	p := &Pending{done: make(chan struct{})}
	return p, p.resolve
}

// Rejected returns a Pending that has already failed with err.
func Rejected(err error) *Pending {
	p, resolve := NewPending()
	resolve(err)
	return p
}

// Resolved returns a Pending that has already succeeded.
func Resolved() *Pending {
	p, resolve := NewPending()
	resolve(nil)
	return p
}

func (p *Pending) resolve(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed when the operation has completed.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the outcome once Done is closed, and nil before that.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the operation completes or ctx ends. Giving up on the
// wait does not cancel the operation; cancel the context passed to Save or
// Fetch for that.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
