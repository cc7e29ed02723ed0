// Package logic reads logic files: declarative descriptions of the tuned
// solutions available for one architecture.
//
// A logic file looks like:
//
//	version: "4.33.0"
//	architecture: gfx90a
//	problemType: HHS_BH
//	solutions:
//	  - name: Cijk_Ailk_Bljk_HHS_BH_MT128x128x32
//	    kernelLanguage: Assembly
//	    params: {MacroTile0: 128, MacroTile1: 128, DepthU: 32}
//	    internalArgs: {SolutionIndex: 0}
//	    helpers:
//	      - {name: C_BetaOnly_HH, kind: BetaOnly}
//
// JSON logic files use the same field names. A solution without an explicit
// kernels list owns exactly one kernel described by its own fields.
package logic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/kernlib/internal/arch"
	"github.com/specialistvlad/kernlib/internal/config"
	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/specialistvlad/kernlib/internal/library"
	"gopkg.in/yaml.v3"
)

type logicFile struct {
	Version      string          `yaml:"version"`
	Architecture string          `yaml:"architecture"`
	ProblemType  string          `yaml:"problemType"`
	Solutions    []logicSolution `yaml:"solutions"`
}

type logicSolution struct {
	logicKernel `yaml:",inline"`
	Kernels     []logicKernel `yaml:"kernels"`
	Helpers     []logicHelper `yaml:"helpers"`
}

type logicKernel struct {
	Name           string         `yaml:"name"`
	KernelLanguage string         `yaml:"kernelLanguage"`
	ISA            string         `yaml:"isa"`
	Params         map[string]any `yaml:"params"`
	InternalArgs   map[string]any `yaml:"internalArgs"`
}

type logicHelper struct {
	Name   string         `yaml:"name"`
	Kind   string         `yaml:"kind"`
	Params map[string]any `yaml:"params"`
}

// Loaded is the result of loading one logic file. An empty Architecture means
// the file does not take part in this build and must be skipped.
type Loaded struct {
	Architecture string
	Library      *library.MasterLibrary
	Source       string
}

// Loader parses logic files for one build. It is safe for concurrent use.
type Loader struct {
	cfg *config.Build
}

// NewLoader creates a loader bound to a build configuration.
func NewLoader(cfg *config.Build) *Loader {
	return &Loader{cfg: cfg}
}

// Load parses one logic file into a library. In lazy-loading mode the
// solutions are placed in a single lazy sub-library named after the problem
// type and architecture; otherwise they are the library's own records.
func (l *Loader) Load(ctx context.Context, path string) (Loaded, error) {
	logger := ctxlog.FromContext(ctx).With("file", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, fmt.Errorf("failed to read logic file %s: %w", path, err)
	}
	var lf logicFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return Loaded{}, fmt.Errorf("failed to parse logic file %s: %w", path, err)
	}

	if !arch.Accept(lf.Architecture, l.cfg.Architectures) {
		logger.Debug("Skipping logic file for unselected architecture.", "arch", lf.Architecture)
		return Loaded{Source: path}, nil
	}

	lib := library.New(lf.Architecture)
	lib.Version = lf.Version
	target := lib
	if l.cfg.LazyLibraryLoading {
		name := l.lazyName(lf, path)
		target = library.New(lf.Architecture)
		target.Version = lf.Version
		lib.LazyLibraries[name] = target
	}

	for i, ls := range lf.Solutions {
		sol, err := buildSolution(lf, ls)
		if err != nil {
			return Loaded{}, fmt.Errorf("logic file %s, solution %d: %w", path, i, err)
		}
		if err := target.Add(library.NewRecord(i, sol)); err != nil {
			return Loaded{}, fmt.Errorf("logic file %s: %w", path, err)
		}
	}

	logger.Debug("Logic file loaded.", "arch", lf.Architecture, "count", len(lf.Solutions))
	return Loaded{Architecture: lf.Architecture, Library: lib, Source: path}, nil
}

// lazyName names the code-object file a logic file's solutions are compiled
// into in lazy-loading mode.
func (l *Loader) lazyName(lf logicFile, path string) string {
	problem := lf.ProblemType
	if problem == "" {
		problem = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return fmt.Sprintf("%s_%s_%s", l.cfg.LibraryPrefix, problem, lf.Architecture)
}

func buildSolution(lf logicFile, ls logicSolution) (*library.Solution, error) {
	if ls.Name == "" {
		return nil, fmt.Errorf("solution has no name")
	}
	sol := &library.Solution{Name: ls.Name}

	specs := ls.Kernels
	if len(specs) == 0 {
		specs = []logicKernel{ls.logicKernel}
	}
	for _, spec := range specs {
		k, err := buildKernel(lf, ls.logicKernel, spec)
		if err != nil {
			return nil, err
		}
		sol.Kernels = append(sol.Kernels, k)
	}
	for _, h := range ls.Helpers {
		if h.Name == "" {
			return nil, fmt.Errorf("helper kernel of solution %s has no name", ls.Name)
		}
		sol.Helpers = append(sol.Helpers, &library.HelperObject{Name: h.Name, Kind: h.Kind, Params: h.Params})
	}
	return sol, nil
}

// buildKernel fills unset kernel fields from the owning solution and file.
func buildKernel(lf logicFile, parent, spec logicKernel) (*library.Kernel, error) {
	k := &library.Kernel{
		Name:         firstNonEmpty(spec.Name, parent.Name),
		Language:     library.Language(firstNonEmpty(spec.KernelLanguage, parent.KernelLanguage, string(library.Assembly))),
		ISA:          firstNonEmpty(spec.ISA, parent.ISA),
		Params:       spec.Params,
		InternalArgs: spec.InternalArgs,
	}
	if k.ISA == "" && lf.Architecture != arch.Fallback {
		k.ISA = lf.Architecture
	}
	switch k.Language {
	case library.Assembly:
		if k.ISA == "" {
			return nil, fmt.Errorf("assembly kernel %s has no isa", k.Name)
		}
	case library.Source:
	default:
		return nil, fmt.Errorf("kernel %s has unknown kernelLanguage %q", k.Name, k.Language)
	}
	return k, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
