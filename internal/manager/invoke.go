package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/clipai/internal/metrics"
	"github.com/dshills/clipai/internal/plugin"
)

// Operation names used in logs and the metrics operation label.
const (
	opInitialize = "initialize"
	opProcess    = "process"
	opFeature    = "process_feature"
	opSetEnabled = "set_enabled"
	opRefresh    = "refresh"
	opShutdown   = "shutdown"
)

type outcome[T any] struct {
	value T
	err   error
}

// call runs fn on its own goroutine and waits for it, the invoke timeout
// or ctx, whichever comes first. A panic in fn is returned as a
// *plugin.PanicError. A call that times out is abandoned, not stopped; fn
// receives a context that is cancelled at the deadline.
func call[T any](ctx context.Context, m *Manager, id, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	if m.cfg.InvokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.InvokeTimeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: &plugin.PanicError{Value: r}}
			}
		}()
		v, err := fn(ctx)
		done <- outcome[T]{value: v, err: err}
	}()

	var res outcome[T]
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
		if errors.Is(res.err, context.DeadlineExceeded) {
			res.err = fmt.Errorf("%w: %s %s after %s", ErrInvokeTimeout, id, op, m.cfg.InvokeTimeout)
		}
	}

	m.metrics.ObserveCall(id, op, callStatus(res.err), time.Since(start))
	return res.value, res.err
}

// invoke is call for functions without a result.
func (m *Manager) invoke(ctx context.Context, id, op string, fn func(ctx context.Context) error) error {
	_, err := call(ctx, m, id, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func callStatus(err error) string {
	var pe *plugin.PanicError
	switch {
	case err == nil:
		return metrics.StatusOK
	case errors.Is(err, ErrInvokeTimeout):
		return metrics.StatusTimeout
	case errors.As(err, &pe):
		return metrics.StatusPanic
	default:
		return metrics.StatusError
	}
}
