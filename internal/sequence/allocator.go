// Package sequence hands out monotonically increasing integer ids per scope.
//
// All coordination is delegated to the backing Counter's atomic
// increment-and-read; the allocator holds no locks and keeps no cache, so
// any number of processes may allocate from the same scope concurrently.
package sequence

import (
	"context"
	"log/slog"

	"github.com/ChuLiYu/fleetstore/internal/errs"
)

// Recorder observes allocations. *metrics.Collector implements it.
type Recorder interface {
	RecordAllocation(scope string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordAllocation(string, error) {}

// Allocator draws ids from a Counter.
type Allocator struct {
	counter  Counter
	recorder Recorder
}

// Option configures the Allocator.
type Option func(*Allocator)

// WithRecorder reports every allocation to r.
func WithRecorder(r Recorder) Option {
	return func(a *Allocator) {
		if r != nil {
			a.recorder = r
		}
	}
}

func NewAllocator(counter Counter, opts ...Option) *Allocator {
	a := &Allocator{counter: counter, recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate returns the next id of scope. For N successful calls on a scope
// whose counter started at k, the returned values are exactly k+1..k+N in
// some order. Values drawn from the global user scope are shifted by
// UserIDOffset after the increment; the stored counter is not.
//
// On failure the error wraps errs.ErrAllocationFailed and the cause.
// Allocate does not retry.
func (a *Allocator) Allocate(ctx context.Context, scope Scope) (int64, error) {
	v, err := a.counter.IncrementAndGet(ctx, scope)
	a.recorder.RecordAllocation(scope.Name, err)
	if err != nil {
		slog.Error("sequence allocation failed", "scope", scope.String(), "error", err)
		return 0, errs.Wrap(errs.ErrAllocationFailed, err)
	}
	if scope.Name == ScopeUser && scope.IsGlobal() {
		v += UserIDOffset
	}
	slog.Debug("sequence allocated", "scope", scope.String(), "value", v)
	return v, nil
}
