package plugin

import (
	"context"
	"fmt"
	"sync"
)

// ReadyState is the background-initialization state of a plugin.
type ReadyState int

// Ready states.
const (
	NotReady ReadyState = iota
	Ready
	ReadyFailed
)

// String returns the state name.
func (r ReadyState) String() string {
	switch r {
	case NotReady:
		return "not-ready"
	case Ready:
		return "ready"
	case ReadyFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Readiness tracks a one-way NotReady -> Ready|ReadyFailed transition.
// The zero value is not usable; call NewReadiness.
type Readiness struct {
	mu    sync.RWMutex
	state ReadyState
	err   error
	done  chan struct{}
}

// NewReadiness returns a Readiness in the NotReady state.
func NewReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// State returns the current state.
func (r *Readiness) State() ReadyState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Err returns the failure cause once the state is ReadyFailed.
func (r *Readiness) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Done is closed when the state leaves NotReady.
func (r *Readiness) Done() <-chan struct{} {
	return r.done
}

// MarkReady moves to Ready. Later transitions are ignored.
func (r *Readiness) MarkReady() {
	r.settle(Ready, nil)
}

// MarkFailed moves to ReadyFailed. Later transitions are ignored.
func (r *Readiness) MarkFailed(err error) {
	if err == nil {
		err = ErrNotReady
	}
	r.settle(ReadyFailed, err)
}

func (r *Readiness) settle(state ReadyState, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != NotReady {
		return
	}
	r.state = state
	r.err = err
	close(r.done)
}

// Wait blocks until the state settles or ctx is done. It returns nil once
// Ready, the failure cause for ReadyFailed, or ErrNotReady wrapping the
// context error.
func (r *Readiness) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		if err := r.Err(); err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
	}
}
