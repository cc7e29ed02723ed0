// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package library holds the in-memory model of a kernel library: the tuned
// solutions read from logic files, the kernels they need, and the indexed
// master libraries they are merged into.
//
// # Core Concepts
//
//   - Solution: one tuned kernel configuration as written in a logic file. It
//     owns its Kernels and HelperObjects.
//
//   - Record: the entry a MasterLibrary keeps for a Solution. It carries the
//     globally unique index assigned at merge time and a back-reference to
//     the Solution it came from.
//
//   - Kernel: the unit of generation. Many Records may reach the same Kernel;
//     identity is KernelKey, never pointer equality.
//
//   - MasterLibrary: index to Record, scoped to one architecture, to the
//     fallback pseudo-architecture, or to the merged whole. In lazy-loading
//     mode the Records live in LazyLibraries, one per code-object file.
//
// Records are moved between libraries by Merge. Only the fallback library is
// ever copied (with Clone), because it is merged into every architecture.
package library
