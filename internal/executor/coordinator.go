package executor

import (
	"context"
	"fmt"

	"github.com/specialistvlad/kernlib/internal/artifact"
	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/specialistvlad/kernlib/internal/extract"
	"github.com/specialistvlad/kernlib/internal/generator"
	"github.com/specialistvlad/kernlib/internal/library"
	"github.com/specialistvlad/kernlib/internal/progress"
)

// Coordinator drives kernel generation for one build.
type Coordinator struct {
	Layout    artifact.Layout
	Generator generator.Generator
	Workers   int
	// ErrorTolerant drops failed kernels and the solutions using them
	// instead of aborting the build.
	ErrorTolerant bool
	Reporter      progress.Reporter
}

// Outcome is what survives generation.
type Outcome struct {
	Working
	// Removed holds the solutions dropped because one of their kernels
	// failed.
	Removed map[*library.Solution]bool
	Files   []*File
	// Compile holds the kernels to hand to the toolchain. Assembly kernels
	// without generated text are left out.
	Compile []*library.Kernel
}

// Run generates every kernel and helper of set, applies the failure policy
// and writes the surviving code. On a policy abort nothing is written.
func (c *Coordinator) Run(ctx context.Context, set extract.Set, solutions []*library.Solution) (*Outcome, error) {
	logger := ctxlog.FromContext(ctx)

	results, err := Generate(ctx, c.Generator, set.Kernels, c.Workers, c.Reporter)
	if err != nil {
		return nil, err
	}

	fatal, buildErrs := Scan(set.Kernels, results)
	for _, f := range fatal {
		logger.Error("Kernel generation failed.", "solutionIndex", f.Kernel.SolutionIndex, "solution", f.Kernel.SolutionName, "kernel", f.Kernel.Name)
	}
	for _, f := range buildErrs {
		logger.Error("Kernel reported a build error.", "solutionIndex", f.Kernel.SolutionIndex, "solution", f.Kernel.SolutionName, "kernel", f.Kernel.Name, "code", int(f.Code))
	}

	w := Working{Kernels: set.Kernels, Solutions: solutions, Results: results}
	removed := map[*library.Solution]bool{}
	switch {
	case !c.ErrorTolerant && len(fatal) > 0:
		return nil, &GenerationError{Failures: fatal}
	case !c.ErrorTolerant && len(buildErrs) > 0:
		return nil, &BuildErrorsError{Failures: buildErrs}
	case len(fatal)+len(buildErrs) > 0:
		w, removed = Cascade(w, FailedKeys(fatal, buildErrs))
		extract.MarkDuplicates(w.Kernels)
		logger.Warn("Dropped failed kernels.", "kernels", len(fatal)+len(buildErrs), "solutions", len(removed))
	}

	helpers := make([]HelperCode, 0, len(set.Helpers))
	for _, h := range set.Helpers {
		src, hdr, err := c.Generator.GenerateHelper(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("failed to generate helper kernel: %w", err)
		}
		helpers = append(helpers, HelperCode{Helper: h, Source: src, Header: hdr})
	}

	asm := make(map[*library.Kernel]string, len(w.Kernels))
	for i, k := range w.Kernels {
		asm[k] = w.Results[i].Assembly
	}
	out := &Outcome{
		Working: w,
		Removed: removed,
		Files:   GroupFiles(c.Layout, w.Kernels, w.Results, helpers),
		Compile: withAssembly(CompileSet(w.Kernels), asm),
	}
	if err := WriteFiles(ctx, out.Files); err != nil {
		return nil, err
	}
	if err := WriteAssembly(ctx, c.Layout, out.Compile, asm); err != nil {
		return nil, err
	}

	logger.Info("Kernel generation finished.", "kernels", len(w.Kernels), "files", len(out.Files))
	return out, nil
}
