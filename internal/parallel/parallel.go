// Package parallel runs data-parallel fan-out/fan-in over slices of items.
//
// Items are split into at most maxWorkers contiguous chunks; each chunk is
// processed sequentially by one goroutine and the results are joined in input
// order. A worker failure cancels the shared context, every worker is joined,
// and the first error is returned. With a deterministic fn the output does not
// depend on the worker count.
package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/cmunell/featurespace/resource"
)

type options struct {
	rc *resource.Controller
}

// Option configures a parallel map.
type Option func(*options)

// WithController makes every worker hold a slot of rc while it runs.
func WithController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// Chunk is a half-open [Start, End) range of item positions.
type Chunk struct {
	Start, End int
}

// Chunks partitions n items into at most maxWorkers contiguous chunks of near-equal size.
func Chunks(n, maxWorkers int) []Chunk {
	if n <= 0 {
		return nil
	}
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if maxWorkers > n {
		maxWorkers = n
	}
	size := (n + maxWorkers - 1) / maxWorkers
	chunks := make([]Chunk, 0, maxWorkers)
	for start := 0; start < n; start += size {
		chunks = append(chunks, Chunk{Start: start, End: min(start+size, n)})
	}
	return chunks
}

// Map applies fn to every item and returns the results in input order.
func Map[T, R any](ctx context.Context, items []T, maxWorkers int, fn func(ctx context.Context, item T) (R, error), opts ...Option) ([]R, error) {
	out := make([]R, len(items))
	_, err := MapChunks(ctx, items, maxWorkers, func(ctx context.Context, c Chunk, part []T) (struct{}, error) {
		for k, item := range part {
			if err := ctx.Err(); err != nil {
				return struct{}{}, err
			}
			r, err := fn(ctx, item)
			if err != nil {
				return struct{}{}, err
			}
			out[c.Start+k] = r
		}
		return struct{}{}, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ForEach applies fn to every item for its side effects.
func ForEach[T any](ctx context.Context, items []T, maxWorkers int, fn func(ctx context.Context, item T) error, opts ...Option) error {
	_, err := Map(ctx, items, maxWorkers, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	}, opts...)
	return err
}

// MapChunks calls fn once per chunk and returns the per-chunk results in chunk order.
// It is the building block for order-independent aggregation (e.g. term counting),
// where each chunk builds a partial result that the caller merges.
func MapChunks[T, R any](ctx context.Context, items []T, maxWorkers int, fn func(ctx context.Context, c Chunk, part []T) (R, error), opts ...Option) ([]R, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	chunks := Chunks(len(items), maxWorkers)
	out := make([]R, len(chunks))

	if len(chunks) <= 1 {
		for i, c := range chunks {
			r, err := runChunk(ctx, o.rc, c, items, fn)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		g.Go(func() error {
			r, err := runChunk(gctx, o.rc, c, items, fn)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func runChunk[T, R any](ctx context.Context, rc *resource.Controller, c Chunk, items []T, fn func(context.Context, Chunk, []T) (R, error)) (R, error) {
	if err := rc.AcquireWorker(ctx); err != nil {
		var zero R
		return zero, err
	}
	defer rc.ReleaseWorker()
	return fn(ctx, c, items[c.Start:c.End])
}
