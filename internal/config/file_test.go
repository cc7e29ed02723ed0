package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kernlib.hcl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_AppliesAttributes(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	path := writeConfig(t, `
build {
  logic_path             = "logic"
  architecture           = "gfx90a;gfx942"
  merge_files            = true
  separate_architectures = true
  lazy_library_loading   = true
  num_merged_files       = 4
  library_format         = "yaml"
  jobs                   = 8
}
`)

	b := Defaults()
	require.NoError(t, LoadFile(ctx, path, &b))

	assert.Equal(t, "logic", b.LogicPath)
	assert.Equal(t, []string{"gfx90a", "gfx942"}, b.Architectures)
	assert.True(t, b.SeparateArchitectures)
	assert.True(t, b.LazyLibraryLoading)
	assert.Equal(t, 4, b.NumMergedFiles)
	assert.Equal(t, FormatYAML, b.LibraryFormat)
	assert.Equal(t, 8, b.Jobs)

	// Attributes absent from the file keep their defaults.
	assert.Equal(t, "amdclang++", b.CxxCompiler)
	assert.True(t, b.GenerateSolutionTable)
}

func TestLoadFile_InterpolatesEnvironment(t *testing.T) {
	t.Setenv("KERNLIB_TEST_ROCM", "/opt/rocm-6.2")
	ctx := ctxlog.Discard(context.Background())
	path := writeConfig(t, `
build {
  cxx_compiler = "${env.KERNLIB_TEST_ROCM}/bin/amdclang++"
}
`)

	b := Defaults()
	require.NoError(t, LoadFile(ctx, path, &b))
	assert.Equal(t, "/opt/rocm-6.2/bin/amdclang++", b.CxxCompiler)
}

func TestLoadFile_Errors(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	t.Run("syntax error", func(t *testing.T) {
		b := Defaults()
		err := LoadFile(ctx, writeConfig(t, "build {\n  jobs = \n"), &b)
		assert.ErrorContains(t, err, "failed to parse config file")
	})

	t.Run("type mismatch", func(t *testing.T) {
		b := Defaults()
		err := LoadFile(ctx, writeConfig(t, "build {\n  jobs = \"many\"\n}\n"), &b)
		assert.ErrorContains(t, err, "failed to decode config file")
	})

	t.Run("missing build block is not an error", func(t *testing.T) {
		b := Defaults()
		require.NoError(t, LoadFile(ctx, writeConfig(t, "# empty\n"), &b))
		assert.Equal(t, Defaults().Jobs, b.Jobs)
	})
}

func TestBuild_Validate(t *testing.T) {
	valid := func() Build {
		b := Defaults()
		b.LogicPath = "logic"
		b.OutputPath = "out"
		return b
	}

	t.Run("defaults are valid", func(t *testing.T) {
		b := valid()
		assert.NoError(t, b.Validate())
	})

	t.Run("lazy loading requires merge and separate", func(t *testing.T) {
		b := valid()
		b.LazyLibraryLoading = true
		assert.ErrorContains(t, b.Validate(), "--lazy-library-loading requires")

		b.SeparateArchitectures = true
		assert.NoError(t, b.Validate())
	})

	t.Run("every problem is reported", func(t *testing.T) {
		b := valid()
		b.NumMergedFiles = 0
		b.LibraryFormat = "xml"
		err := b.Validate()
		assert.ErrorContains(t, err, "num-merged-files")
		assert.ErrorContains(t, err, "xml")
	})
}

func TestBuild_Extensions(t *testing.T) {
	b := Defaults()
	assert.Equal(t, ".dat", b.LibraryExt())
	assert.Equal(t, ".yaml", b.LogicExt())

	b.LibraryFormat = FormatYAML
	b.LogicFormat = FormatJSON
	assert.Equal(t, ".yaml", b.LibraryExt())
	assert.Equal(t, ".json", b.LogicExt())
}
