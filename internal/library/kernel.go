// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the generation units: Kernel and HelperObject.
package library

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Language is the kind of code a kernel is generated as.
type Language string

const (
	Source   Language = "Source"
	Assembly Language = "Assembly"
)

// Kernel is the unit of generation.
type Kernel struct {
	Name     string
	Language Language
	// ISA is the base target name, e.g. "gfx90a".
	ISA string

	// Params are the tuning parameters that define the kernel.
	Params map[string]any
	// InternalArgs are bookkeeping arguments that never affect the generated
	// code and are excluded from KernelKey.
	InternalArgs map[string]any

	// CodeObjectFile names the physical code object the kernel is compiled
	// into. Empty means the default merged file. Stamped once during merge.
	CodeObjectFile string
	// Duplicate marks every assembly kernel after the first that compiles to
	// the same object name. Set once during extraction.
	Duplicate bool

	// SolutionIndex and SolutionName identify the first solution that needed
	// this kernel, for error reporting.
	SolutionIndex int
	SolutionName  string
}

// FileBase is the on-disk name of the kernel's generated files without
// extension.
func (k *Kernel) FileBase() string {
	return k.Name
}

// KernelKey derives the identity of a kernel. It is total and deterministic:
// language, ISA, name and every parameter (sorted by name) contribute, while
// InternalArgs, CodeObjectFile and Duplicate do not. Two kernels with equal
// keys generate identical code.
func KernelKey(k *Kernel) string {
	var b strings.Builder
	fmt.Fprintf(&b, "lang=%s;isa=%s;name=%s", k.Language, k.ISA, k.Name)

	names := make([]string, 0, len(k.Params))
	for name := range k.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, ";%s=%v", name, k.Params[name])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

// HelperObject is a solution-independent kernel, such as a beta-only or
// conversion routine, shared across solutions. Identity is Name.
type HelperObject struct {
	Name   string
	Kind   string
	Params map[string]any
}

// KernelName returns the generated name of the helper.
func (h *HelperObject) KernelName() string {
	return h.Name
}
