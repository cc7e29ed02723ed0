package executor

import (
	"github.com/specialistvlad/kernlib/internal/generator"
	"github.com/specialistvlad/kernlib/internal/library"
)

// Scan splits non-successful results into fatal failures and build errors.
// results must be indexed like kernels.
func Scan(kernels []*library.Kernel, results []generator.Result) (fatal, buildErrors []Failure) {
	for i, res := range results {
		switch res.Code {
		case generator.OK:
		case generator.Fatal:
			fatal = append(fatal, Failure{Kernel: kernels[i], Code: res.Code})
		default:
			buildErrors = append(buildErrors, Failure{Kernel: kernels[i], Code: res.Code})
		}
	}
	return fatal, buildErrors
}

// FailedKeys returns the kernel keys of failures.
func FailedKeys(failures ...[]Failure) map[string]bool {
	keys := make(map[string]bool)
	for _, list := range failures {
		for _, f := range list {
			keys[library.KernelKey(f.Kernel)] = true
		}
	}
	return keys
}

// Working is the set of kernels, solutions and results a build carries
// forward. Results is indexed like Kernels.
type Working struct {
	Kernels   []*library.Kernel
	Solutions []*library.Solution
	Results   []generator.Result
}

// Cascade removes every kernel whose key failed, every solution using such a
// kernel, and the results of removed kernels. It does not modify w and
// returns the removed solutions. Applying it again with the same keys removes
// nothing further.
func Cascade(w Working, failed map[string]bool) (Working, map[*library.Solution]bool) {
	removed := make(map[*library.Solution]bool)
	if len(failed) == 0 {
		return w, removed
	}

	var out Working
	for i, k := range w.Kernels {
		if failed[library.KernelKey(k)] {
			continue
		}
		out.Kernels = append(out.Kernels, k)
		if i < len(w.Results) {
			out.Results = append(out.Results, w.Results[i])
		}
	}
	for _, s := range w.Solutions {
		drop := false
		for _, key := range s.KernelKeys() {
			if failed[key] {
				drop = true
				break
			}
		}
		if drop {
			removed[s] = true
			continue
		}
		out.Solutions = append(out.Solutions, s)
	}
	return out, removed
}
