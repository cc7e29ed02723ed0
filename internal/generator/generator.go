// Package generator defines the kernel generation boundary and a
// template-driven implementation of it.
package generator

import (
	"context"

	"github.com/specialistvlad/kernlib/internal/library"
)

// Code is the status of one generation attempt.
type Code int

const (
	// OK means the kernel was generated.
	OK Code = 0
	// Fatal means the kernel cannot be generated at all.
	Fatal Code = -2
)

// Result is the outcome of generating one kernel. Any non-zero Code other
// than Fatal is a build error: the text is usable but the kernel must not be
// compiled.
type Result struct {
	KernelIndex    int
	Code           Code
	Source         string
	Header         string
	Assembly       string
	KernelName     string
	CodeObjectFile string
}

// Generator produces code for kernels. Implementations must be safe for
// concurrent use and must not mutate the kernels they are given.
type Generator interface {
	Generate(ctx context.Context, index int, k *library.Kernel) Result
	GenerateHelper(ctx context.Context, h *library.HelperObject) (source, header string, err error)
}
