// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines MasterLibrary and the index-threading merge that combines
// libraries loaded from many logic files.
package library

import (
	"fmt"
	"sort"
)

// MasterLibrary maps solution index to Record.
type MasterLibrary struct {
	Architecture string
	Version      string

	Solutions map[int]*Record
	// LazyLibraries is only populated in lazy-loading mode. Each entry is a
	// self-contained placeholder for one code-object file.
	LazyLibraries map[string]*MasterLibrary
}

// New creates an empty library for an architecture.
func New(architecture string) *MasterLibrary {
	return &MasterLibrary{
		Architecture:  architecture,
		Solutions:     make(map[int]*Record),
		LazyLibraries: make(map[string]*MasterLibrary),
	}
}

// Add inserts a record under its current index.
func (l *MasterLibrary) Add(r *Record) error {
	if _, exists := l.Solutions[r.Index]; exists {
		return fmt.Errorf("solution index %d already present in %s library", r.Index, l.Architecture)
	}
	l.Solutions[r.Index] = r
	return nil
}

// Records returns the library's own records ordered by index.
func (l *MasterLibrary) Records() []*Record {
	out := make([]*Record, 0, len(l.Solutions))
	for _, r := range l.Solutions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// LazyNames returns the names of the lazy sub-libraries in sorted order.
func (l *MasterLibrary) LazyNames() []string {
	names := make([]string, 0, len(l.LazyLibraries))
	for name := range l.LazyLibraries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len counts records in the library and all of its lazy sub-libraries.
func (l *MasterLibrary) Len() int {
	n := len(l.Solutions)
	for _, lazy := range l.LazyLibraries {
		n += lazy.Len()
	}
	return n
}

// highWater returns one past the largest index held anywhere in the library.
func (l *MasterLibrary) highWater() int {
	hw := 0
	for idx := range l.Solutions {
		if idx+1 > hw {
			hw = idx + 1
		}
	}
	for _, lazy := range l.LazyLibraries {
		if h := lazy.highWater(); h > hw {
			hw = h
		}
	}
	return hw
}

// Merge moves every record of other into l, renumbering them from
// max(next, highest index in l + 1) in other's index order. Lazy
// sub-libraries are merged by name. other is left empty. The returned value
// is the next free index and must be passed to the following merge.
func (l *MasterLibrary) Merge(other *MasterLibrary, next int) int {
	if other == nil || other == l {
		return next
	}
	cur := max(next, l.highWater())

	for _, r := range other.Records() {
		r.Index = cur
		l.Solutions[cur] = r
		cur++
	}
	other.Solutions = make(map[int]*Record)

	for _, name := range other.LazyNames() {
		src := other.LazyLibraries[name]
		dst, ok := l.LazyLibraries[name]
		if !ok {
			dst = New(src.Architecture)
			dst.Version = src.Version
			l.LazyLibraries[name] = dst
		}
		cur = dst.Merge(src, cur)
	}
	other.LazyLibraries = make(map[string]*MasterLibrary)

	return cur
}

// Clone copies the library structure and its records. The copies share
// their Original solutions with the source records.
func (l *MasterLibrary) Clone() *MasterLibrary {
	c := New(l.Architecture)
	c.Version = l.Version
	for idx, r := range l.Solutions {
		cp := *r
		c.Solutions[idx] = &cp
	}
	for name, lazy := range l.LazyLibraries {
		c.LazyLibraries[name] = lazy.Clone()
	}
	return c
}

// Remove deletes every record, including those in lazy sub-libraries, for
// which drop returns true. It returns how many were removed.
func (l *MasterLibrary) Remove(drop func(*Record) bool) int {
	removed := 0
	for idx, r := range l.Solutions {
		if drop(r) {
			delete(l.Solutions, idx)
			removed++
		}
	}
	for _, lazy := range l.LazyLibraries {
		removed += lazy.Remove(drop)
	}
	return removed
}

// Walk visits the library's own records in index order, then each lazy
// sub-library in name order. lazyName is empty for the library's own records.
func (l *MasterLibrary) Walk(fn func(lazyName string, r *Record)) {
	for _, r := range l.Records() {
		fn("", r)
	}
	for _, name := range l.LazyNames() {
		for _, r := range l.LazyLibraries[name].Records() {
			fn(name, r)
		}
	}
}
