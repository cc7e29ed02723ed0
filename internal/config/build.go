package config

import (
	"errors"
	"fmt"
	"runtime"
)

// Library metadata formats.
const (
	FormatYAML    = "yaml"
	FormatMsgpack = "msgpack"
	FormatJSON    = "json"
)

// DefaultLibraryPrefix names the metadata files, the manifest and the merged
// assembly code objects.
const DefaultLibraryPrefix = "KernelLibrary"

// Build is the complete, immutable configuration of one library build.
type Build struct {
	LogicPath  string
	OutputPath string

	// Architectures are the names requested by the user; Targets are the
	// supported offload targets they resolve to, filled in by app.NewConfig.
	Architectures []string
	Targets       []string

	MergeFiles            bool
	NumMergedFiles        int
	SeparateArchitectures bool
	LazyLibraryLoading    bool

	ErrorTolerant           bool
	ValidateLibrary         bool
	GenerateSourcesAndExit  bool
	GenerateManifestAndExit bool
	GenerateSolutionTable   bool
	StableSolutionOrder     bool

	LogicFormat   string
	LibraryFormat string
	LogicFilter   string
	Experimental  bool

	Jobs         int
	KeepBuildTmp bool
	Version      string
	CxxCompiler  string
	Compress     bool
	ProgressURL  string

	LibraryPrefix string
}

// Defaults returns the configuration used when neither a config file nor a
// flag sets a value.
func Defaults() Build {
	return Build{
		Architectures:         []string{"all"},
		MergeFiles:            true,
		NumMergedFiles:        1,
		GenerateSolutionTable: true,
		LogicFormat:           FormatYAML,
		LibraryFormat:         FormatMsgpack,
		LogicFilter:           "*",
		Jobs:                  -1,
		CxxCompiler:           "amdclang++",
		Compress:              true,
		LibraryPrefix:         DefaultLibraryPrefix,
	}
}

// Validate checks option combinations.
func (b *Build) Validate() error {
	var errs []error
	if b.LogicPath == "" {
		errs = append(errs, errors.New("logic path is required"))
	}
	if b.OutputPath == "" {
		errs = append(errs, errors.New("output path is required"))
	}
	if b.NumMergedFiles < 1 {
		errs = append(errs, fmt.Errorf("num-merged-files must be at least 1, got %d", b.NumMergedFiles))
	}
	if b.LazyLibraryLoading && !(b.MergeFiles && b.SeparateArchitectures) {
		errs = append(errs, errors.New("--lazy-library-loading requires --merge-files and --separate-architectures enabled"))
	}
	switch b.LogicFormat {
	case FormatYAML, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unrecognized logic format %q", b.LogicFormat))
	}
	switch b.LibraryFormat {
	case FormatYAML, FormatMsgpack:
	default:
		errs = append(errs, fmt.Errorf("unrecognized library format %q", b.LibraryFormat))
	}
	if b.LibraryPrefix == "" {
		errs = append(errs, errors.New("library prefix must not be empty"))
	}
	return errors.Join(errs...)
}

// Separated reports whether libraries are kept per architecture.
func (b *Build) Separated() bool {
	return b.SeparateArchitectures || b.LazyLibraryLoading
}

// LogicExt is the file extension of logic files.
func (b *Build) LogicExt() string {
	if b.LogicFormat == FormatJSON {
		return ".json"
	}
	return ".yaml"
}

// LibraryExt is the file extension of library metadata files.
func (b *Build) LibraryExt() string {
	if b.LibraryFormat == FormatYAML {
		return ".yaml"
	}
	return ".dat"
}

// Workers resolves Jobs into a worker count; zero or negative means every
// available CPU.
func (b *Build) Workers() int {
	if b.Jobs <= 0 {
		return runtime.NumCPU()
	}
	return b.Jobs
}
