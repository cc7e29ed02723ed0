// Package toolchain compiles generated kernel code into code object
// libraries by invoking an external compiler.
package toolchain

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/specialistvlad/kernlib/internal/artifact"
	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/specialistvlad/kernlib/internal/library"
	"github.com/specialistvlad/kernlib/internal/progress"
	"golang.org/x/sync/errgroup"
)

// Runner runs one command in dir and returns its combined output.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Failure is one command that did not succeed.
type Failure struct {
	Output  string
	Kernel  string
	Command string
	Log     string
	Err     error
}

// CompilationError lists every failed compiler invocation.
type CompilationError struct {
	Failures []Failure
}

func (e *CompilationError) Error() string {
	lines := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		line := fmt.Sprintf("  %s: %v", f.Output, f.Err)
		if f.Kernel != "" {
			line = fmt.Sprintf("  %s (kernel %s): %v", f.Output, f.Kernel, f.Err)
		}
		lines = append(lines, line)
	}
	return fmt.Sprintf("%d compilation step(s) failed:\n%s", len(e.Failures), strings.Join(lines, "\n"))
}

// Toolchain compiles source groups and assembly kernels for the layout's
// targets.
type Toolchain struct {
	Layout   artifact.Layout
	Compiler string
	Run      Runner
	Workers  int
	Compress bool
	// WorkDir is the working directory of every command.
	WorkDir  string
	Reporter progress.Reporter
}

type job struct {
	output string
	kernel string
	args   []string
}

// Build compiles every group and assembly kernel. All failures are collected
// and returned together as a *CompilationError.
func (t *Toolchain) Build(ctx context.Context, groups []artifact.Group, kernels []*library.Kernel) error {
	logger := ctxlog.FromContext(ctx)
	if err := os.MkdirAll(t.Layout.LibraryDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create library directory: %w", err)
	}

	var objects, links []job
	for _, g := range groups {
		for _, obj := range t.Layout.SourceObjects(g) {
			objects = append(objects, t.sourceJob(g, obj))
		}
	}
	libs := make(map[string][]*library.Kernel)
	for _, k := range kernels {
		if k.Language != library.Assembly {
			continue
		}
		src, obj, co := t.Layout.AssemblyFiles(k)
		objects = append(objects, job{
			output: obj,
			kernel: k.Name,
			args:   []string{"-x", "assembler", "-target", "amdgcn-amd-amdhsa", "-mcpu=" + k.ISA, "-c", src, "-o", obj},
		})
		links = append(links, job{
			output: co,
			kernel: k.Name,
			args:   []string{"-target", "amdgcn-amd-amdhsa", "-mcpu=" + k.ISA, obj, "-o", co},
		})
		lib := t.Layout.AssemblyLibrary(k)
		libs[lib] = append(libs[lib], k)
	}
	names := make([]string, 0, len(libs))
	for name := range libs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		members := libs[name]
		args := []string{"-target", "amdgcn-amd-amdhsa", "-mcpu=" + members[0].ISA}
		for _, k := range members {
			_, obj, _ := t.Layout.AssemblyFiles(k)
			args = append(args, obj)
		}
		links = append(links, job{output: name, args: append(args, "-o", name)})
	}

	logger.Info("Compiling code objects.", "objects", len(objects), "links", len(links))
	if err := t.runAll(ctx, objects); err != nil {
		return err
	}
	return t.runAll(ctx, links)
}

func (t *Toolchain) sourceJob(g artifact.Group, obj artifact.Object) job {
	args := []string{"-x", "hip", "--cuda-device-only", "--offload-arch=" + obj.Target, "-O3"}
	if t.Compress {
		args = append(args, "--offload-compress")
	}
	return job{output: obj.Path, args: append(args, "-c", g.Source(), "-o", obj.Path)}
}

// runAll runs jobs on a bounded pool and waits for all of them, so one run
// reports every failing step.
func (t *Toolchain) runAll(ctx context.Context, jobs []job) error {
	var (
		mu       sync.Mutex
		failures []Failure
	)
	g, gctx := errgroup.WithContext(ctx)
	if t.Workers > 0 {
		g.SetLimit(t.Workers)
	}
	for _, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := t.Run(gctx, t.WorkDir, t.Compiler, j.args...)
			if t.Reporter != nil {
				t.Reporter.Report(gctx, progress.Event{Stage: progress.StageCompile, Kernel: filepath.Base(j.output), Failed: err != nil})
			}
			if err != nil {
				mu.Lock()
				failures = append(failures, Failure{
					Output:  j.output,
					Kernel:  j.kernel,
					Command: t.Compiler + " " + strings.Join(j.args, " "),
					Log:     string(out),
					Err:     err,
				})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("compilation interrupted: %w", err)
	}
	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].Output < failures[j].Output })
		logger := ctxlog.FromContext(ctx)
		for _, f := range failures {
			logger.Error("Compilation failed.", "file", f.Output, "kernel", f.Kernel, "command", f.Command, "log", f.Log)
		}
		return &CompilationError{Failures: failures}
	}
	return nil
}
