package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/kernlib/internal/config"
	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/specialistvlad/kernlib/internal/fsutil"
	"github.com/specialistvlad/kernlib/internal/logic"
	"github.com/specialistvlad/kernlib/internal/merge"
	"golang.org/x/sync/errgroup"
)

// discover lists the logic files of the build.
func discover(b *config.Build) ([]string, error) {
	files, err := fsutil.FindLogicFiles(fsutil.LogicQuery{
		Root:                b.LogicPath,
		Extension:           b.LogicExt(),
		Filter:              b.LogicFilter,
		IncludeExperimental: b.Experimental,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find logic files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no logic files matching %q found in %s", b.LogicFilter, b.LogicPath)
	}
	return files, nil
}

// loadAndMerge parses files on a bounded pool and feeds each library to the
// merge engine as soon as it is loaded.
func loadAndMerge(ctx context.Context, b *config.Build, files []string) (*merge.Result, error) {
	logger := ctxlog.FromContext(ctx)
	loader := logic.NewLoader(b)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.Workers())
	loaded := make(chan logic.Loaded)
	loadErr := make(chan error, 1)

	go func() {
		for _, f := range files {
			g.Go(func() error {
				l, err := loader.Load(gctx, f)
				if err != nil {
					return err
				}
				select {
				case loaded <- l:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		loadErr <- g.Wait()
		close(loaded)
	}()

	// gctx is cancelled once the loaders return, before loaded is closed.
	res, mergeErr := merge.Run(ctx, b, loaded)
	if err := <-loadErr; err != nil {
		return nil, fmt.Errorf("failed to load logic files: %w", err)
	}
	if mergeErr != nil {
		return nil, mergeErr
	}
	if len(res.Solutions) == 0 {
		return nil, errors.New("no solutions found for the selected architectures")
	}
	logger.Info("Libraries merged.", "files", len(files), "count", len(res.Solutions), "libraries", len(res.Masters))
	return res, nil
}
