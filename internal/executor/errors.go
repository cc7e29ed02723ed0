package executor

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/kernlib/internal/generator"
	"github.com/specialistvlad/kernlib/internal/library"
)

// Failure identifies a kernel whose generation did not succeed.
type Failure struct {
	Kernel *library.Kernel
	Code   generator.Code
}

func (f Failure) String() string {
	return fmt.Sprintf("[solution %d] %s (kernel %s, code %d)", f.Kernel.SolutionIndex, f.Kernel.SolutionName, f.Kernel.Name, f.Code)
}

func listFailures(failures []Failure) string {
	lines := make([]string, 0, len(failures))
	for _, f := range failures {
		lines = append(lines, "  "+f.String())
	}
	return strings.Join(lines, "\n")
}

// GenerationError lists every kernel that could not be generated at all.
type GenerationError struct {
	Failures []Failure
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%d kernel(s) failed to generate:\n%s", len(e.Failures), listFailures(e.Failures))
}

// BuildErrorsError lists every kernel that generated with a build error.
type BuildErrorsError struct {
	Failures []Failure
}

func (e *BuildErrorsError) Error() string {
	return fmt.Sprintf("kernel compilation failure: %d kernel(s) reported build errors:\n%s", len(e.Failures), listFailures(e.Failures))
}
