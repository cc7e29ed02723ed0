// Package reconcile checks the files a build produced against the files it
// was expected to produce.
package reconcile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/specialistvlad/kernlib/internal/library"
)

// MismatchError lists every code object that was produced without being
// planned, and every planned one that is missing.
type MismatchError struct {
	Unexpected []string
	Missing    []string
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	b.WriteString("produced code objects do not match the plan")
	for _, p := range e.Unexpected {
		fmt.Fprintf(&b, "\n  unexpected: %s", p)
	}
	for _, p := range e.Missing {
		fmt.Fprintf(&b, "\n  missing: %s", p)
	}
	return b.String()
}

// LazyMismatch is one lazy library whose kernel count is inconsistent.
type LazyMismatch struct {
	Library string
	// Solutions counts distinct kernel names reachable from the library's
	// solutions; Assigned counts kernels placed in its code object.
	Solutions int
	Assigned  int
}

// StructuralError lists every inconsistent lazy library.
type StructuralError struct {
	Mismatches []LazyMismatch
}

func (e *StructuralError) Error() string {
	lines := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		lines = append(lines, fmt.Sprintf("  %s: %d kernels from solutions, %d kernels in code object", m.Library, m.Solutions, m.Assigned))
	}
	return "lazy library validation failed:\n" + strings.Join(lines, "\n")
}

// MissingFilesError lists planned files absent from disk.
type MissingFilesError struct {
	Paths []string
}

func (e *MissingFilesError) Error() string {
	return "missing build outputs:\n  " + strings.Join(e.Paths, "\n  ")
}

// Produced returns every code object below dir: files ending in .hsaco or
// .co.
func Produced(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() && (strings.HasSuffix(path, ".hsaco") || strings.HasSuffix(path, ".co")) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list produced code objects: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// Compare matches planned against actual paths, ignoring case. Unexpected
// paths are always reported. Missing paths are reported unless
// allowMissing is set.
func Compare(planned, actual []string, allowMissing bool) error {
	plannedSet := make(map[string]bool, len(planned))
	for _, p := range planned {
		plannedSet[strings.ToLower(filepath.Clean(p))] = true
	}
	actualSet := make(map[string]bool, len(actual))
	var unexpected []string
	for _, a := range actual {
		key := strings.ToLower(filepath.Clean(a))
		actualSet[key] = true
		if !plannedSet[key] {
			unexpected = append(unexpected, a)
		}
	}
	var missing []string
	if !allowMissing {
		for _, p := range planned {
			if !actualSet[strings.ToLower(filepath.Clean(p))] {
				missing = append(missing, p)
			}
		}
	}
	if len(unexpected) == 0 && len(missing) == 0 {
		return nil
	}
	sort.Strings(unexpected)
	sort.Strings(missing)
	return &MismatchError{Unexpected: unexpected, Missing: missing}
}

// ValidateLazyLibraries checks, for every lazy library, that the number of
// distinct kernel names its solutions use equals the number of kernels
// assigned to its code object.
func ValidateLazyLibraries(masters []*library.MasterLibrary, kernels []*library.Kernel) error {
	assigned := make(map[string]map[string]bool)
	for _, k := range kernels {
		if k.CodeObjectFile == "" {
			continue
		}
		if assigned[k.CodeObjectFile] == nil {
			assigned[k.CodeObjectFile] = make(map[string]bool)
		}
		assigned[k.CodeObjectFile][k.Name] = true
	}

	checked := make(map[string]bool)
	var mismatches []LazyMismatch
	for _, m := range masters {
		for _, name := range m.LazyNames() {
			if checked[name] {
				continue
			}
			checked[name] = true
			used := make(map[string]bool)
			for _, r := range m.LazyLibraries[name].Records() {
				for _, k := range r.Original.Kernels {
					used[k.Name] = true
				}
			}
			if len(used) != len(assigned[name]) {
				mismatches = append(mismatches, LazyMismatch{Library: name, Solutions: len(used), Assigned: len(assigned[name])})
			}
		}
	}
	if len(mismatches) > 0 {
		sort.Slice(mismatches, func(i, j int) bool { return mismatches[i].Library < mismatches[j].Library })
		return &StructuralError{Mismatches: mismatches}
	}
	return nil
}

// CheckExistence reports every path that does not exist.
func CheckExistence(paths []string) error {
	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return &MissingFilesError{Paths: missing}
	}
	return nil
}
