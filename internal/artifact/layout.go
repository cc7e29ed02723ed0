// Package artifact names every file a build writes. The output planner, the
// build coordinator and the toolchain all derive paths from one Layout so the
// predicted and produced file sets cannot drift apart.
package artifact

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/kernlib/internal/arch"
	"github.com/specialistvlad/kernlib/internal/config"
	"github.com/specialistvlad/kernlib/internal/library"
)

const (
	libraryDir  = "library"
	assemblyDir = "assembly"
	kernelsBase = "Kernels"
)

// Layout maps build entities to output paths. The zero value is not usable;
// build one with NewLayout.
type Layout struct {
	Output      string
	Prefix      string
	Targets     []string
	Merge       bool
	NumMerged   int
	Lazy        bool
	Separated   bool
	MetadataExt string
}

// NewLayout derives the layout of a build. targets are the selected
// supported targets.
func NewLayout(cfg *config.Build, targets []string) Layout {
	return Layout{
		Output:      cfg.OutputPath,
		Prefix:      cfg.LibraryPrefix,
		Targets:     targets,
		Merge:       cfg.MergeFiles,
		NumMerged:   max(cfg.NumMergedFiles, 1),
		Lazy:        cfg.LazyLibraryLoading,
		Separated:   cfg.Separated(),
		MetadataExt: cfg.LibraryExt(),
	}
}

// Group is one generated source file pair, identified by its path without
// extension.
type Group struct {
	Path string
	// CodeObjectFile is the lazy code object the group compiles into, empty
	// for the default kernel files.
	CodeObjectFile string
}

// Source and Header return the generated file paths of the group.
func (g Group) Source() string { return g.Path + ".cpp" }
func (g Group) Header() string { return g.Path + ".h" }

// Object is one compiled artifact and the target it is built for.
type Object struct {
	Path   string
	Target string
}

func (l Layout) LibraryDir() string  { return filepath.Join(l.Output, libraryDir) }
func (l Layout) AssemblyDir() string { return filepath.Join(l.Output, assemblyDir) }

// SourceDir holds the generated source files. Per-kernel and N-way files
// live in a Kernels subdirectory.
func (l Layout) SourceDir() string {
	if !l.Merge || l.NumMerged > 1 {
		return filepath.Join(l.Output, kernelsBase)
	}
	return l.Output
}

func (l Layout) mergedName(i int) string {
	if l.NumMerged > 1 {
		return fmt.Sprintf("%s%d", kernelsBase, i%l.NumMerged)
	}
	return kernelsBase
}

// SourceGroup returns the file a kernel's source is written to. cyclic is the
// kernel's position among the surviving kernels and spreads them across
// N-way merged files.
func (l Layout) SourceGroup(k *library.Kernel, cyclic int) Group {
	switch {
	case k.CodeObjectFile != "":
		return Group{Path: filepath.Join(l.SourceDir(), k.CodeObjectFile), CodeObjectFile: k.CodeObjectFile}
	case l.Merge:
		return Group{Path: filepath.Join(l.SourceDir(), l.mergedName(cyclic))}
	default:
		return Group{Path: filepath.Join(l.SourceDir(), k.FileBase())}
	}
}

// HelperGroup returns the file a helper object's source is written to.
func (l Layout) HelperGroup(h *library.HelperObject) Group {
	if l.Merge || l.Lazy {
		return Group{Path: filepath.Join(l.SourceDir(), l.mergedName(0))}
	}
	return Group{Path: filepath.Join(l.SourceDir(), h.KernelName())}
}

// FixedGroups are the merged files written even when no kernel lands in
// them.
func (l Layout) FixedGroups() []Group {
	if !l.Merge {
		return nil
	}
	groups := make([]Group, 0, l.NumMerged)
	for i := 0; i < l.NumMerged; i++ {
		groups = append(groups, Group{Path: filepath.Join(l.SourceDir(), l.mergedName(i))})
	}
	return groups
}

// IsFallbackObject reports whether a lazy code object holds fallback
// solutions.
func IsFallbackObject(name string) bool {
	return strings.HasSuffix(name, "_"+arch.Fallback)
}

// SourceObjects returns the code objects compiled from a source group.
func (l Layout) SourceObjects(g Group) []Object {
	lib := l.LibraryDir()
	var out []Object
	switch {
	case g.CodeObjectFile != "" && IsFallbackObject(g.CodeObjectFile):
		for _, t := range l.Targets {
			out = append(out, Object{Path: filepath.Join(lib, g.CodeObjectFile+"_"+t+".hsaco"), Target: t})
		}
	case g.CodeObjectFile != "":
		for _, v := range archVariants(g.CodeObjectFile, l.Targets) {
			out = append(out, Object{Path: filepath.Join(lib, v.name+".hsaco"), Target: v.target})
		}
	default:
		base := filepath.Base(g.Path)
		for _, t := range l.Targets {
			out = append(out, Object{Path: filepath.Join(lib, base+".so-000-"+t+".hsaco"), Target: t})
		}
	}
	return out
}

// AssemblyFiles are the per-kernel assembly intermediates: source, object
// and code object.
func (l Layout) AssemblyFiles(k *library.Kernel) (src, obj, co string) {
	base := filepath.Join(l.AssemblyDir(), k.FileBase())
	return base + ".s", base + ".o", base + ".co"
}

// AssemblyLibrary returns the code object library an assembly kernel is
// linked into.
func (l Layout) AssemblyLibrary(k *library.Kernel) string {
	lib := l.LibraryDir()
	switch {
	case l.Lazy && k.CodeObjectFile != "" && !IsFallbackObject(k.CodeObjectFile):
		return filepath.Join(lib, k.CodeObjectFile+".co")
	case l.Lazy && k.CodeObjectFile != "":
		return filepath.Join(lib, k.CodeObjectFile+"_"+k.ISA+".co")
	case l.Merge:
		return filepath.Join(lib, l.Prefix+"_"+k.ISA+".co")
	default:
		return filepath.Join(lib, k.FileBase()+"_"+k.ISA+".co")
	}
}

// MasterName is the metadata file name of a master library without
// extension.
func (l Layout) MasterName(m *library.MasterLibrary) string {
	switch {
	case !l.Separated:
		return l.Prefix
	case l.Lazy:
		return l.Prefix + "_lazy_" + m.Architecture
	default:
		return l.Prefix + "_" + m.Architecture
	}
}

// MetadataPath names a metadata file.
func (l Layout) MetadataPath(name string) string {
	return filepath.Join(l.LibraryDir(), name+l.MetadataExt)
}

// MetadataPaths returns one path per master library and one per lazy
// sub-library it owns.
func (l Layout) MetadataPaths(masters []*library.MasterLibrary) []string {
	var out []string
	for _, m := range masters {
		out = append(out, l.MetadataPath(l.MasterName(m)))
		for _, name := range m.LazyNames() {
			out = append(out, l.MetadataPath(name))
		}
	}
	return out
}

func (l Layout) ManifestPath() string {
	return filepath.Join(l.LibraryDir(), l.Prefix+"Manifest.txt")
}

func (l Layout) MatchTablePath() string {
	return filepath.Join(l.LibraryDir(), "MatchTable"+l.MetadataExt)
}

type variant struct {
	name   string
	target string
}

// archVariants expands a name ending in an architecture into one name per
// target of that architecture. A name whose architecture is itself a target
// is returned unchanged.
func archVariants(name string, targets []string) []variant {
	i := strings.LastIndex(name, "gfx")
	if i < 0 {
		return nil
	}
	suffix := name[i:]
	for _, t := range targets {
		if t == suffix {
			return []variant{{name: name, target: t}}
		}
	}
	var out []variant
	for _, t := range targets {
		if strings.HasPrefix(t, suffix) {
			out = append(out, variant{name: name + t[len(suffix):], target: t})
		}
	}
	return out
}

// ExpandArchVariants returns the file names of the per-target variants of
// name with ext appended.
func ExpandArchVariants(name string, targets []string, ext string) []string {
	var out []string
	for _, v := range archVariants(name, targets) {
		out = append(out, v.name+ext)
	}
	return out
}
