// Package pool runs pure batch tasks across a bounded set of workers with
// stage-barrier semantics: all batches of one stage complete before the
// caller proceeds, and any batch failure fails the stage.
package pool

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Size resolves a configured worker count: 0 means available parallelism
// minus one, -1 means all available parallelism, any positive value is used
// as-is.
func Size(configured int) int {
	switch {
	case configured > 0:
		return configured
	case configured == -1:
		return runtime.NumCPU()
	default:
		n := runtime.NumCPU() - 1
		if n < 1 {
			n = 1
		}
		return n
	}
}

// Split partitions items into batches of at most size elements. Batches
// share the backing array; workers must treat their batch as read-only
// input and return fresh results.
func Split[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	if len(items) == 0 {
		return nil
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches
}

// Map runs task over every batch with at most workers running concurrently
// and returns the concatenated results in batch order. The task must be a
// pure function of its batch plus read-only shared context; result order
// within a batch is preserved, and no results from a failed stage are
// returned.
func Map[B, R any](ctx context.Context, workers int, batches [][]B, task func(ctx context.Context, batch []B) ([]R, error)) ([]R, error) {
	if len(batches) == 0 {
		return nil, nil
	}
	if workers < 1 {
		workers = 1
	}

	results := make([][]R, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, batch := range batches {
		g.Go(func() error {
			out, err := task(gctx, batch)
			if err != nil {
				return eris.Wrapf(err, "pool: batch %d", i)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	merged := make([]R, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, nil
}
