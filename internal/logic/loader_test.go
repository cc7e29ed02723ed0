package logic

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/kernlib/internal/config"
	"github.com/specialistvlad/kernlib/internal/ctxlog"
	"github.com/specialistvlad/kernlib/internal/library"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gfx90aLogic = `
version: "4.33.0"
architecture: gfx90a
problemType: HHS_BH
solutions:
  - name: Cijk_MT128x128
    params: {MacroTile0: 128, MacroTile1: 128}
    internalArgs: {SolutionIndex: 0}
    helpers:
      - {name: C_BetaOnly_HH, kind: BetaOnly}
  - name: Cijk_MT64x64
    kernelLanguage: Source
    params: {MacroTile0: 64}
`

func writeLogic(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testBuild(mut func(*config.Build)) *config.Build {
	b := config.Defaults()
	b.LogicPath = "logic"
	b.OutputPath = "out"
	if mut != nil {
		mut(&b)
	}
	return &b
}

func TestLoad_Solutions(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	path := writeLogic(t, "HH.yaml", gfx90aLogic)

	got, err := NewLoader(testBuild(nil)).Load(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, "gfx90a", got.Architecture)
	assert.Equal(t, path, got.Source)
	assert.Equal(t, "4.33.0", got.Library.Version)
	require.Len(t, got.Library.Solutions, 2)
	assert.Empty(t, got.Library.LazyLibraries)

	first := got.Library.Solutions[0].Original
	assert.Equal(t, "Cijk_MT128x128", first.Name)
	require.Len(t, first.Kernels, 1)
	k := first.Kernels[0]
	assert.Equal(t, library.Assembly, k.Language)
	assert.Equal(t, "gfx90a", k.ISA)
	assert.Equal(t, "Cijk_MT128x128", k.Name)
	assert.Equal(t, 0, k.InternalArgs["SolutionIndex"])
	require.Len(t, first.Helpers, 1)
	assert.Equal(t, "C_BetaOnly_HH", first.Helpers[0].KernelName())

	assert.Equal(t, library.Source, got.Library.Solutions[1].Original.Kernels[0].Language)
}

func TestLoad_JSON(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	path := writeLogic(t, "SS.json", `{"architecture": "gfx942", "solutions": [{"name": "S0", "params": {"DepthU": 16}}]}`)

	got, err := NewLoader(testBuild(func(b *config.Build) { b.LogicFormat = config.FormatJSON })).Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "gfx942", got.Architecture)
	assert.Equal(t, "S0", got.Library.Solutions[0].Name)
}

func TestLoad_SkipsUnselectedArchitecture(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	path := writeLogic(t, "HH.yaml", gfx90aLogic)

	got, err := NewLoader(testBuild(func(b *config.Build) { b.Architectures = []string{"gfx942"} })).Load(ctx, path)
	require.NoError(t, err)
	assert.Empty(t, got.Architecture)
	assert.Nil(t, got.Library)
}

func TestLoad_LazyPlacement(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	lazy := testBuild(func(b *config.Build) {
		b.SeparateArchitectures = true
		b.LazyLibraryLoading = true
	})

	t.Run("architecture file", func(t *testing.T) {
		got, err := NewLoader(lazy).Load(ctx, writeLogic(t, "HH.yaml", gfx90aLogic))
		require.NoError(t, err)
		assert.Empty(t, got.Library.Solutions)
		require.Contains(t, got.Library.LazyLibraries, "KernelLibrary_HHS_BH_gfx90a")
		assert.Equal(t, 2, got.Library.LazyLibraries["KernelLibrary_HHS_BH_gfx90a"].Len())
	})

	t.Run("fallback file named from file when problem type missing", func(t *testing.T) {
		content := "architecture: fallback\nsolutions:\n  - {name: F0, kernelLanguage: Source}\n"
		got, err := NewLoader(lazy).Load(ctx, writeLogic(t, "Generic.yaml", content))
		require.NoError(t, err)
		assert.Equal(t, "fallback", got.Architecture)
		assert.Contains(t, got.Library.LazyLibraries, "KernelLibrary_Generic_fallback")
	})
}

func TestLoad_Errors(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	loader := NewLoader(testBuild(nil))

	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "malformed", content: "architecture: [", wantErr: "failed to parse logic file"},
		{name: "unnamed solution", content: "architecture: gfx90a\nsolutions:\n  - {params: {}}\n", wantErr: "has no name"},
		{name: "assembly fallback without isa", content: "architecture: fallback\nsolutions:\n  - {name: F0}\n", wantErr: "has no isa"},
		{name: "unknown language", content: "architecture: gfx90a\nsolutions:\n  - {name: X, kernelLanguage: OpenCL}\n", wantErr: "unknown kernelLanguage"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loader.Load(ctx, writeLogic(t, "bad.yaml", tc.content))
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := loader.Load(ctx, filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorContains(t, err, "failed to read logic file")
	})
}
