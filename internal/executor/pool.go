package executor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/specialistvlad/kernlib/internal/generator"
	"github.com/specialistvlad/kernlib/internal/library"
	"github.com/specialistvlad/kernlib/internal/progress"
	"golang.org/x/sync/errgroup"
)

// Generate runs gen for every kernel with at most workers calls in flight.
// The returned slice is indexed like kernels regardless of the order in which
// workers finish.
func Generate(ctx context.Context, gen generator.Generator, kernels []*library.Kernel, workers int, rep progress.Reporter) ([]generator.Result, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting generation workers.", "count", len(kernels), "workers", workers)

	results := make(chan generator.Result, len(kernels))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	var done atomic.Int64
	total := len(kernels)
	for i, k := range kernels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := gen.Generate(ctxlog.WithAttrs(gctx, "kernel", k.Name), i, k)
			results <- res
			if rep != nil {
				rep.Report(gctx, progress.Event{
					Stage:  progress.StageGenerate,
					Kernel: k.Name,
					Done:   int(done.Add(1)),
					Total:  total,
					Failed: res.Code == generator.Fatal,
				})
			}
			return nil
		})
	}
	err := g.Wait()
	close(results)
	if err != nil {
		return nil, fmt.Errorf("kernel generation interrupted: %w", err)
	}

	out := make([]generator.Result, len(kernels))
	seen := make([]bool, len(kernels))
	for res := range results {
		if res.KernelIndex < 0 || res.KernelIndex >= len(kernels) || seen[res.KernelIndex] {
			return nil, fmt.Errorf("generator returned result for unexpected kernel index %d", res.KernelIndex)
		}
		seen[res.KernelIndex] = true
		out[res.KernelIndex] = res
	}
	return out, nil
}
