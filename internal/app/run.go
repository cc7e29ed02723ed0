package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/kernlib/internal/artifact"
	"github.com/specialistvlad/kernlib/internal/buildtmp"
	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/specialistvlad/kernlib/internal/executor"
	"github.com/specialistvlad/kernlib/internal/extract"
	"github.com/specialistvlad/kernlib/internal/libio"
	"github.com/specialistvlad/kernlib/internal/planner"
	"github.com/specialistvlad/kernlib/internal/progress"
	"github.com/specialistvlad/kernlib/internal/reconcile"
	"github.com/specialistvlad/kernlib/internal/toolchain"
)

// Run executes one library build.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	b := &a.config.Build
	a.logger.Debug("App.Run method started.")

	layout := artifact.NewLayout(b, b.Targets)
	a.logger.Debug("Targets selected.", "targets", b.Targets)

	rep, owned, err := a.progressReporter(ctx)
	if err != nil {
		return err
	}
	if owned {
		defer func() {
			if err := rep.Close(); err != nil {
				a.logger.Warn("Failed to close progress reporter.", "error", err)
			}
		}()
	}

	rep.Report(ctx, progress.Event{Stage: progress.StageLoad})
	files, err := discover(b)
	if err != nil {
		return err
	}
	res, err := loadAndMerge(ctx, b, files)
	if err != nil {
		return err
	}
	if b.Version != "" {
		for _, m := range res.Masters {
			m.Version = b.Version
		}
	}

	rep.Report(ctx, progress.Event{Stage: progress.StageMerge, Total: len(res.Solutions)})
	set := extract.Kernels(res.Solutions, res.Indices)
	if n := extract.MarkDuplicates(set.Kernels); n > 0 {
		a.logger.Debug("Marked duplicate assembly kernels.", "count", n)
	}

	rep.Report(ctx, progress.Event{Stage: progress.StagePlan, Total: len(set.Kernels)})
	plan := planner.New(layout, set.Kernels, set.Helpers, res.Masters)
	if err := libio.WriteManifest(layout.ManifestPath(), plan.Manifest()); err != nil {
		return err
	}
	a.logger.Info("Manifest written.", "file", layout.ManifestPath(), "count", len(plan.Manifest()))
	if b.GenerateManifestAndExit {
		return nil
	}

	tmp, err := buildtmp.Acquire(ctx, b.OutputPath, b.KeepBuildTmp)
	if err != nil {
		return err
	}
	defer tmp.Release(ctx)

	rep.Report(ctx, progress.Event{Stage: progress.StageGenerate, Total: len(set.Kernels)})
	coord := &executor.Coordinator{
		Layout:        layout,
		Generator:     a.generator,
		Workers:       b.Workers(),
		ErrorTolerant: b.ErrorTolerant,
		Reporter:      rep,
	}
	outcome, err := coord.Run(ctx, set, res.Solutions)
	if err != nil {
		return err
	}
	if len(outcome.Removed) > 0 {
		n := res.Prune(outcome.Removed)
		a.logger.Warn("Removed solutions with failed kernels from the library.", "count", n)
	}
	plan = planner.FromFiles(layout, outcome.Files, outcome.Compile, res.Masters)

	if !b.GenerateSourcesAndExit {
		rep.Report(ctx, progress.Event{Stage: progress.StageCompile, Total: len(outcome.Compile)})
		tc := &toolchain.Toolchain{
			Layout:   layout,
			Compiler: b.CxxCompiler,
			Run:      a.runner,
			Workers:  b.Workers(),
			Compress: b.Compress,
			WorkDir:  tmp.Path,
			Reporter: rep,
		}
		groups := make([]artifact.Group, 0, len(outcome.Files))
		for _, f := range outcome.Files {
			groups = append(groups, f.Group)
		}
		if err := tc.Build(ctx, groups, outcome.Compile); err != nil {
			return err
		}
	}

	rep.Report(ctx, progress.Event{Stage: progress.StageReconcile})
	produced, err := reconcile.Produced(layout.LibraryDir())
	if err != nil {
		return err
	}
	if err := reconcile.Compare(plan.Libraries(), produced, b.GenerateSourcesAndExit); err != nil {
		return err
	}
	if b.ValidateLibrary {
		if err := reconcile.ValidateLazyLibraries(res.Masters, outcome.Kernels); err != nil {
			return err
		}
	}

	rep.Report(ctx, progress.Event{Stage: progress.StageMetadata, Total: len(plan.Metadata)})
	if _, err := libio.WriteLibraries(ctx, layout, b.LibraryFormat, res.Masters); err != nil {
		return err
	}
	if b.GenerateSolutionTable {
		if err := libio.WriteFile(layout.MatchTablePath(), b.LibraryFormat, res.Matches); err != nil {
			return err
		}
	}

	expected := plan.Metadata
	if !b.GenerateSourcesAndExit {
		expected = append(append([]string{}, expected...), plan.Libraries()...)
	}
	if err := reconcile.CheckExistence(expected); err != nil {
		return err
	}

	rep.Report(ctx, progress.Event{Stage: progress.StageDone, Total: len(outcome.Solutions)})
	a.logger.Info("Library build finished.", "solutions", len(outcome.Solutions), "kernels", len(outcome.Kernels))
	return nil
}

// progressReporter returns the injected reporter, or a log reporter combined
// with a socket.io reporter when a progress URL is configured. owned reports
// whether the caller must close it.
func (a *App) progressReporter(ctx context.Context) (rep progress.Reporter, owned bool, err error) {
	if a.reporter != nil {
		return a.reporter, false, nil
	}
	url := a.config.Build.ProgressURL
	if url == "" {
		return progress.Log{}, true, nil
	}
	sio, err := progress.DialSocketIO(ctx, progress.SocketIOOptions{URL: url})
	if err != nil {
		return nil, false, fmt.Errorf("failed to connect progress reporter: %w", err)
	}
	return progress.Multi{progress.Log{}, sio}, true, nil
}
