// Package workerpool runs a per-item handler over a list with a bounded
// number of concurrent workers and returns results in input order.
package workerpool

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Concurrency bounds.
const (
	DefaultConcurrency = 3
	MaxConcurrency     = 10
)

// Handler processes one item. It must convert its own failures into a
// result value; the pool never sees errors.
type Handler[T, R any] func(ctx context.Context, item T) R

// Clamp maps c into [1, MaxConcurrency]; zero or negative selects the default.
func Clamp(c int) int {
	switch {
	case c <= 0:
		return DefaultConcurrency
	case c > MaxConcurrency:
		return MaxConcurrency
	default:
		return c
	}
}

// Run processes every item with at most Clamp(concurrency) handlers active
// at once. Workers claim the next index from a shared counter, store the
// result at that index and exit when the list is drained. Run returns after
// all workers have finished.
func Run[T, R any](ctx context.Context, items []T, concurrency int, h Handler[T, R]) []R {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results
	}
	workers := Clamp(concurrency)
	if workers > len(items) {
		workers = len(items)
	}

	var next atomic.Int64
	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for {
				i := int(next.Add(1) - 1)
				if i >= len(items) {
					return nil
				}
				results[i] = h(ctx, items[i])
			}
		})
	}
	_ = g.Wait() // workers never return errors
	return results
}
