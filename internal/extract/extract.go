// Package extract derives the distinct kernels and helper objects a set of
// solutions needs.
package extract

import (
	"github.com/specialistvlad/kernlib/internal/library"
)

// Set is the deduplicated generation workload of a build.
type Set struct {
	Kernels []*library.Kernel
	Helpers []*library.HelperObject
}

// Kernels walks solutions in order and returns each kernel the first time its
// key is seen, plus each helper the first time its name is seen. Later
// kernels with an equal key are replaced in their solution by the first one,
// so every solution references the canonical kernel. indices supplies the
// solution index recorded on each kernel for error reporting.
func Kernels(solutions []*library.Solution, indices map[*library.Solution]int) Set {
	var set Set
	byKey := make(map[string]*library.Kernel)
	helperSeen := make(map[string]bool)

	for _, s := range solutions {
		for i, k := range s.Kernels {
			key := library.KernelKey(k)
			if canonical, ok := byKey[key]; ok {
				s.Kernels[i] = canonical
				continue
			}
			byKey[key] = k
			k.SolutionName = s.Name
			k.SolutionIndex = indices[s]
			set.Kernels = append(set.Kernels, k)
		}
		for _, h := range s.Helpers {
			name := h.KernelName()
			if helperSeen[name] {
				continue
			}
			helperSeen[name] = true
			set.Helpers = append(set.Helpers, h)
		}
	}
	return set
}

// MarkDuplicates flags every assembly kernel whose object file name was
// already claimed by an earlier assembly kernel and clears the flag on every
// other kernel, so it can be rerun after kernels are removed. It returns the
// number of kernels flagged.
func MarkDuplicates(kernels []*library.Kernel) int {
	seen := make(map[string]bool)
	n := 0
	for _, k := range kernels {
		k.Duplicate = false
		if k.Language != library.Assembly {
			continue
		}
		base := k.FileBase()
		if seen[base] {
			k.Duplicate = true
			n++
			continue
		}
		seen[base] = true
	}
	return n
}
