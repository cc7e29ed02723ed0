// Package planner predicts every file a successful build produces, without
// generating or compiling anything.
package planner

import (
	"slices"

	"github.com/specialistvlad/kernlib/internal/artifact"
	"github.com/specialistvlad/kernlib/internal/executor"
	"github.com/specialistvlad/kernlib/internal/generator"
	"github.com/specialistvlad/kernlib/internal/library"
)

// Plan is the predicted output of a build. Every list is sorted.
type Plan struct {
	SourceFiles       []string
	AssemblyFiles     []string
	SourceLibraries   []string
	AssemblyLibraries []string
	Metadata          []string
}

// Libraries returns the compiled code objects of the plan.
func (p Plan) Libraries() []string {
	return sorted(append(append([]string{}, p.SourceLibraries...), p.AssemblyLibraries...))
}

// Manifest returns the paths listed in the build manifest: metadata, then
// source libraries, then assembly libraries.
func (p Plan) Manifest() []string {
	out := append([]string{}, p.Metadata...)
	out = append(out, p.SourceLibraries...)
	return append(out, p.AssemblyLibraries...)
}

// New predicts the plan for the given kernels, helpers and master libraries
// before generation. Source kernels are assumed to produce source text and
// assembly kernels assembly text.
func New(l artifact.Layout, kernels []*library.Kernel, helpers []*library.HelperObject, masters []*library.MasterLibrary) Plan {
	results := make([]generator.Result, len(kernels))
	for i, k := range kernels {
		if k.Language == library.Source {
			results[i].Source = k.Name
		}
	}
	helperCode := make([]executor.HelperCode, 0, len(helpers))
	for _, h := range helpers {
		helperCode = append(helperCode, executor.HelperCode{Helper: h, Source: h.KernelName()})
	}

	return FromFiles(l, executor.GroupFiles(l, kernels, results, helperCode), executor.CompileSet(kernels), masters)
}

// FromFiles computes the plan of source files already grouped for emission
// and the kernels handed to the toolchain.
func FromFiles(l artifact.Layout, files []*executor.File, compile []*library.Kernel, masters []*library.MasterLibrary) Plan {
	var p Plan
	for _, f := range files {
		p.SourceFiles = append(p.SourceFiles, f.Group.Source(), f.Group.Header())
		for _, obj := range l.SourceObjects(f.Group) {
			p.SourceLibraries = append(p.SourceLibraries, obj.Path)
		}
	}
	for _, k := range compile {
		if k.Language != library.Assembly {
			continue
		}
		src, obj, co := l.AssemblyFiles(k)
		p.AssemblyFiles = append(p.AssemblyFiles, src, obj, co)
		p.AssemblyLibraries = append(p.AssemblyLibraries, l.AssemblyLibrary(k))
	}
	p.Metadata = l.MetadataPaths(masters)

	p.SourceFiles = sorted(p.SourceFiles)
	p.AssemblyFiles = sorted(p.AssemblyFiles)
	p.SourceLibraries = sorted(p.SourceLibraries)
	p.AssemblyLibraries = sorted(p.AssemblyLibraries)
	p.Metadata = sorted(p.Metadata)
	return p
}

// sorted sorts and deduplicates paths in place.
func sorted(paths []string) []string {
	slices.Sort(paths)
	return slices.Compact(paths)
}
