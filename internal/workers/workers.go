// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package workers runs one harvest stage over partitioned input, one
// goroutine and one exclusive browser session per partition.
package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/pdiddy/patent-harvester/internal/browser"
	"github.com/pdiddy/patent-harvester/internal/logger"
)

// Accumulator is the single shared result list of a stage. Extend is the
// only mutation and holds the lock for the whole append.
type Accumulator[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator[T any]() *Accumulator[T] {
	return &Accumulator[T]{}
}

// Extend appends items atomically.
func (a *Accumulator[T]) Extend(items ...T) {
	a.mu.Lock()
	a.items = append(a.items, items...)
	a.mu.Unlock()
}

// Len returns the number of accumulated items.
func (a *Accumulator[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Drain returns the accumulated items and empties the accumulator.
func (a *Accumulator[T]) Drain() []T {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.items
	a.items = nil
	return out
}

// DivideIntoParts splits items into n contiguous slices whose sizes differ
// by at most one, larger slices first. Trailing slices are empty when there
// are fewer items than parts. Concatenating the parts yields items.
func DivideIntoParts[T any](items []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	size, extra := len(items)/n, len(items)%n
	parts := make([][]T, n)
	lo := 0
	for i := range parts {
		hi := lo + size
		if i < extra {
			hi++
		}
		parts[i] = items[lo:hi:hi]
		lo = hi
	}
	return parts
}

// Worker is what a stage function receives: its identity, its exclusive
// session and a logger tagged with the worker id.
type Worker struct {
	ID      int
	Session browser.Session
	Log     logger.Logger
}

// StageFunc processes one partition, publishing results through acc.
// Stage-wide fixed arguments are captured by the closure.
type StageFunc[In, Out any] func(ctx context.Context, w Worker, part []In, acc *Accumulator[Out]) error

// RunParallel partitions items across n workers and blocks until every
// worker has returned. Each worker opens its own session and closes it on
// every exit path. Worker errors and recovered panics are joined; results of
// the workers that succeeded are still returned.
func RunParallel[In, Out any](ctx context.Context, open browser.Opener, items []In, n int, log logger.Logger, fn StageFunc[In, Out]) ([]Out, error) {
	acc := NewAccumulator[Out]()
	parts := DivideIntoParts(items, n)

	var (
		wg    conc.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	for i, part := range parts {
		id := i + 1
		wg.Go(func() {
			if err := runWorker(ctx, open, id, part, acc, log, fn); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		errs = append(errs, fmt.Errorf("worker panic: %w", r.AsError()))
	}

	return acc.Drain(), errors.Join(errs...)
}

func runWorker[In, Out any](ctx context.Context, open browser.Opener, id int, part []In, acc *Accumulator[Out], log logger.Logger, fn StageFunc[In, Out]) error {
	wlog := log.With(logger.Int("worker", id))
	if len(part) == 0 {
		wlog.Debug("empty partition")
		return nil
	}

	sess, err := open(ctx)
	if err != nil {
		return fmt.Errorf("worker %d: opening session: %w", id, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			wlog.Warn("closing session", logger.Error(err))
		}
	}()

	wlog.Debug("worker started", logger.Int("items", len(part)))
	if err := fn(ctx, Worker{ID: id, Session: sess, Log: wlog}, part, acc); err != nil {
		return fmt.Errorf("worker %d: %w", id, err)
	}
	return nil
}

// RunSequential runs fn over all items on one caller-owned session.
func RunSequential[In, Out any](ctx context.Context, sess browser.Session, items []In, log logger.Logger, fn StageFunc[In, Out]) ([]Out, error) {
	acc := NewAccumulator[Out]()
	err := fn(ctx, Worker{ID: 1, Session: sess, Log: log.With(logger.Int("worker", 1))}, items, acc)
	return acc.Drain(), err
}
