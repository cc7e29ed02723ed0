package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/kernlib/internal/arch"
	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// fileRoot is the top-level schema of a build config file.
type fileRoot struct {
	Build  *fileBuild `hcl:"build,block"`
	Remain hcl.Body   `hcl:",remain"`
}

// fileBuild mirrors Build with optional attributes. A nil field leaves the
// corresponding value untouched.
type fileBuild struct {
	LogicPath               *string `hcl:"logic_path,optional"`
	OutputPath              *string `hcl:"output_path,optional"`
	Architecture            *string `hcl:"architecture,optional"`
	MergeFiles              *bool   `hcl:"merge_files,optional"`
	NumMergedFiles          *int    `hcl:"num_merged_files,optional"`
	SeparateArchitectures   *bool   `hcl:"separate_architectures,optional"`
	LazyLibraryLoading      *bool   `hcl:"lazy_library_loading,optional"`
	ErrorTolerant           *bool   `hcl:"error_tolerant,optional"`
	ValidateLibrary         *bool   `hcl:"validate_library,optional"`
	GenerateSourcesAndExit  *bool   `hcl:"generate_sources_and_exit,optional"`
	GenerateManifestAndExit *bool   `hcl:"generate_manifest_and_exit,optional"`
	GenerateSolutionTable   *bool   `hcl:"generate_solution_table,optional"`
	StableSolutionOrder     *bool   `hcl:"stable_solution_order,optional"`
	LogicFormat             *string `hcl:"logic_format,optional"`
	LibraryFormat           *string `hcl:"library_format,optional"`
	LogicFilter             *string `hcl:"logic_filter,optional"`
	Experimental            *bool   `hcl:"experimental,optional"`
	Jobs                    *int    `hcl:"jobs,optional"`
	KeepBuildTmp            *bool   `hcl:"keep_build_tmp,optional"`
	Version                 *string `hcl:"version,optional"`
	CxxCompiler             *string `hcl:"cxx_compiler,optional"`
	Compress                *bool   `hcl:"compress,optional"`
	ProgressURL             *string `hcl:"progress_url,optional"`
	LibraryPrefix           *string `hcl:"library_prefix,optional"`
}

// LoadFile decodes the build block of an HCL config file onto b. Attribute
// expressions may reference the process environment as env.NAME.
func LoadFile(ctx context.Context, path string, b *Build) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading build config file.", "file", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(file.Body, envEvalContext(), &root)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}
	if root.Build == nil {
		logger.Warn("Config file has no build block.", "file", path)
		return nil
	}
	root.Build.apply(b)
	logger.Debug("Build config file applied.", "file", path)
	return nil
}

func (f *fileBuild) apply(b *Build) {
	setString(&b.LogicPath, f.LogicPath)
	setString(&b.OutputPath, f.OutputPath)
	if f.Architecture != nil {
		b.Architectures = arch.Split(*f.Architecture)
	}
	setBool(&b.MergeFiles, f.MergeFiles)
	setInt(&b.NumMergedFiles, f.NumMergedFiles)
	setBool(&b.SeparateArchitectures, f.SeparateArchitectures)
	setBool(&b.LazyLibraryLoading, f.LazyLibraryLoading)
	setBool(&b.ErrorTolerant, f.ErrorTolerant)
	setBool(&b.ValidateLibrary, f.ValidateLibrary)
	setBool(&b.GenerateSourcesAndExit, f.GenerateSourcesAndExit)
	setBool(&b.GenerateManifestAndExit, f.GenerateManifestAndExit)
	setBool(&b.GenerateSolutionTable, f.GenerateSolutionTable)
	setBool(&b.StableSolutionOrder, f.StableSolutionOrder)
	setString(&b.LogicFormat, f.LogicFormat)
	setString(&b.LibraryFormat, f.LibraryFormat)
	setString(&b.LogicFilter, f.LogicFilter)
	setBool(&b.Experimental, f.Experimental)
	setInt(&b.Jobs, f.Jobs)
	setBool(&b.KeepBuildTmp, f.KeepBuildTmp)
	setString(&b.Version, f.Version)
	setString(&b.CxxCompiler, f.CxxCompiler)
	setBool(&b.Compress, f.Compress)
	setString(&b.ProgressURL, f.ProgressURL)
	setString(&b.LibraryPrefix, f.LibraryPrefix)
}

// envEvalContext exposes the process environment to config expressions.
func envEvalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" || !utf8.ValidString(v) {
			continue
		}
		vars[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(vars)},
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
