// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines Solution, the configuration read from a logic file, and
// Record, the indexed entry a MasterLibrary keeps for it.
package library

// Solution is one tuned kernel configuration as described by a logic file.
type Solution struct {
	Name    string
	Kernels []*Kernel
	Helpers []*HelperObject
}

// KernelKeys returns the keys of every kernel the solution owns.
func (s *Solution) KernelKeys() []string {
	keys := make([]string, 0, len(s.Kernels))
	for _, k := range s.Kernels {
		keys = append(keys, KernelKey(k))
	}
	return keys
}

// Record is a solution's entry in a MasterLibrary.
type Record struct {
	// Index is unique within the library and, because the next index is
	// threaded through every merge, across all libraries of one build.
	Index int
	Name  string
	// Original is the configuration the record was loaded from. Records
	// cloned from the fallback library share it.
	Original *Solution
}

// NewRecord wraps a solution in a record with the given local index.
func NewRecord(index int, s *Solution) *Record {
	return &Record{Index: index, Name: s.Name, Original: s}
}
