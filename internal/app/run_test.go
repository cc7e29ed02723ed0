package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/specialistvlad/kernlib/internal/config"
	"github.com/specialistvlad/kernlib/internal/executor"
	"github.com/specialistvlad/kernlib/internal/generator"
	"github.com/specialistvlad/kernlib/internal/libio"
	"github.com/specialistvlad/kernlib/internal/library"
	"github.com/specialistvlad/kernlib/internal/merge"
	"github.com/specialistvlad/kernlib/internal/reconcile"
	"github.com/specialistvlad/kernlib/internal/testutil"
	"github.com/specialistvlad/kernlib/internal/toolchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompiler creates every file passed to -o.
type fakeCompiler struct {
	calls atomic.Int32
	fail  string
}

func (f *fakeCompiler) run(_ context.Context, _, _ string, args ...string) ([]byte, error) {
	f.calls.Add(1)
	out := ""
	for i, a := range args {
		if a == "-o" && i+1 < len(args) {
			out = args[i+1]
		}
	}
	if f.fail != "" && strings.Contains(out, f.fail) {
		return []byte("error: " + out), errors.New("exit status 1")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, err
	}
	return nil, os.WriteFile(out, []byte("co"), 0o644)
}

// failingGenerator fails one kernel and delegates the rest.
type failingGenerator struct {
	generator.Generator
	fail string
}

func (g failingGenerator) Generate(ctx context.Context, index int, k *library.Kernel) generator.Result {
	if k.Name == g.fail {
		return generator.Result{KernelIndex: index, Code: generator.Fatal, KernelName: k.Name}
	}
	return g.Generator.Generate(ctx, index, k)
}

// emptyGenerator returns no text, without an error, for the named kernels.
type emptyGenerator struct {
	generator.Generator
	empty map[string]bool
}

func (g emptyGenerator) Generate(ctx context.Context, index int, k *library.Kernel) generator.Result {
	if g.empty[k.Name] {
		return generator.Result{KernelIndex: index, KernelName: k.Name}
	}
	return g.Generator.Generate(ctx, index, k)
}

func writeFixtures(t *testing.T, root string) {
	t.Helper()
	testutil.WriteLogic(t, root, "gfx90a/HH.yaml", testutil.Logic{
		Version:      "4.33.0",
		Architecture: "gfx90a",
		ProblemType:  "HH",
		Solutions: []testutil.Solution{
			{Name: "S90_asm", Params: map[string]any{"MT": 128}, Helpers: []testutil.Helper{{Name: "H1", Kind: "BetaOnly"}}},
			{Name: "S90_src", KernelLanguage: "Source", Params: map[string]any{"MT": 64}, Helpers: []testutil.Helper{{Name: "H2", Kind: "Conversion"}}},
		},
	})
	testutil.WriteLogic(t, root, "gfx942/HH.yaml", testutil.Logic{
		Version:      "4.33.0",
		Architecture: "gfx942",
		ProblemType:  "HH",
		Solutions: []testutil.Solution{
			{Name: "S942_asm", Params: map[string]any{"MT": 256}},
			{Name: "S942_src", KernelLanguage: "Source", Params: map[string]any{"MT": 32}, Helpers: []testutil.Helper{{Name: "H1", Kind: "BetaOnly"}}},
		},
	})
	testutil.WriteLogic(t, root, "fallback/HH.yaml", testutil.Logic{
		Architecture: "fallback",
		ProblemType:  "HH",
		Solutions:    []testutil.Solution{{Name: "F_src", KernelLanguage: "Source", Params: map[string]any{"MT": 16}}},
	})
	testutil.WriteLogic(t, root, "Experimental/gfx942/New.yaml", testutil.Logic{
		Architecture: "gfx942",
		Solutions:    []testutil.Solution{{Name: "", Params: map[string]any{"broken": true}}},
	})
}

type harness struct {
	cfg  *Config
	logs *testutil.SafeBuffer
	cc   *fakeCompiler
}

func newHarness(t *testing.T, mut func(*config.Build)) *harness {
	t.Helper()
	root := t.TempDir()
	logicDir := filepath.Join(root, "logic")
	writeFixtures(t, logicDir)

	b := config.Defaults()
	b.LogicPath = logicDir
	b.OutputPath = filepath.Join(root, "out")
	b.Architectures = []string{"gfx90a", "gfx942"}
	b.Jobs = 4
	if mut != nil {
		mut(&b)
	}
	cfg, err := NewConfig(Config{Build: b, LogFormat: "text", LogLevel: "debug"})
	require.NoError(t, err)
	return &harness{cfg: cfg, logs: &testutil.SafeBuffer{}, cc: &fakeCompiler{}}
}

func (h *harness) run(opts ...Option) error {
	opts = append([]Option{WithRunner(h.cc.run)}, opts...)
	return NewApp(h.logs, h.cfg, opts...).Run(context.Background())
}

func (h *harness) libraryDir() string {
	return filepath.Join(h.cfg.Build.OutputPath, "library")
}

func TestRun_PlanMatchesProducedFiles(t *testing.T) {
	testCases := []struct {
		name         string
		mut          func(*config.Build)
		wantMetadata []string
	}{
		{
			name:         "single merged library",
			wantMetadata: []string{"KernelLibrary.dat"},
		},
		{
			name:         "n-way merge",
			mut:          func(b *config.Build) { b.NumMergedFiles = 3 },
			wantMetadata: []string{"KernelLibrary.dat"},
		},
		{
			name:         "one file per kernel",
			mut:          func(b *config.Build) { b.MergeFiles = false },
			wantMetadata: []string{"KernelLibrary.dat"},
		},
		{
			name: "separate architectures",
			mut: func(b *config.Build) {
				b.SeparateArchitectures = true
				b.LibraryFormat = config.FormatYAML
			},
			wantMetadata: []string{"KernelLibrary_gfx90a.yaml", "KernelLibrary_gfx942.yaml"},
		},
		{
			name: "lazy loading",
			mut: func(b *config.Build) {
				b.SeparateArchitectures = true
				b.LazyLibraryLoading = true
				b.ValidateLibrary = true
			},
			wantMetadata: []string{
				"KernelLibrary_HH_fallback.dat",
				"KernelLibrary_HH_gfx90a.dat",
				"KernelLibrary_HH_gfx942.dat",
				"KernelLibrary_lazy_gfx90a.dat",
				"KernelLibrary_lazy_gfx942.dat",
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.mut)

			require.NoError(t, h.run(), h.logs.String())

			manifest, err := libio.ReadManifest(filepath.Join(h.libraryDir(), "KernelLibraryManifest.txt"))
			require.NoError(t, err)
			var plannedObjects, metadata []string
			for _, p := range manifest {
				if strings.HasSuffix(p, ".hsaco") || strings.HasSuffix(p, ".co") {
					plannedObjects = append(plannedObjects, p)
				} else {
					metadata = append(metadata, filepath.Base(p))
				}
			}
			produced, err := reconcile.Produced(h.libraryDir())
			require.NoError(t, err)
			assert.ElementsMatch(t, plannedObjects, produced)
			assert.Equal(t, tc.wantMetadata, metadata)
			for _, m := range metadata {
				assert.FileExists(t, filepath.Join(h.libraryDir(), m))
			}
			assert.FileExists(t, filepath.Join(h.libraryDir(), "MatchTable"+h.cfg.Build.LibraryExt()))
			assert.NoDirExists(t, filepath.Join(h.cfg.Build.OutputPath, "build_tmp"))
			testutil.AssertStageRan(t, h.logs.String(), "generate")
			testutil.AssertStageRan(t, h.logs.String(), "done")
		})
	}
}

func TestRun_FailFastWritesNoLibrary(t *testing.T) {
	h := newHarness(t, nil)

	err := h.run(WithGenerator(failingGenerator{Generator: generator.NewTemplate(), fail: "S942_src"}))

	var genErr *executor.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, err.Error(), "S942_src")
	assert.Contains(t, h.logs.String(), "Kernel generation failed.")
	assert.Zero(t, h.cc.calls.Load())
	assert.NoFileExists(t, filepath.Join(h.cfg.Build.OutputPath, "Kernels.cpp"))
	assert.NoFileExists(t, filepath.Join(h.libraryDir(), "KernelLibrary.dat"))
	assert.NoFileExists(t, filepath.Join(h.libraryDir(), "MatchTable.dat"))
}

func TestRun_ErrorTolerant(t *testing.T) {
	h := newHarness(t, func(b *config.Build) {
		b.ErrorTolerant = true
		b.LibraryFormat = config.FormatYAML
	})

	require.NoError(t, h.run(WithGenerator(failingGenerator{Generator: generator.NewTemplate(), fail: "S942_src"})), h.logs.String())

	var doc libio.Document
	require.NoError(t, libio.ReadFile(filepath.Join(h.libraryDir(), "KernelLibrary.yaml"), config.FormatYAML, &doc))
	var names []string
	for _, s := range doc.Solutions {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{"S90_asm", "S90_src", "S942_asm", "F_src"}, names)

	var matches merge.MatchTable
	require.NoError(t, libio.ReadFile(filepath.Join(h.libraryDir(), "MatchTable.yaml"), config.FormatYAML, &matches))
	assert.Len(t, matches, 4)
}

func TestRun_ManifestAndExit(t *testing.T) {
	h := newHarness(t, func(b *config.Build) { b.GenerateManifestAndExit = true })

	require.NoError(t, h.run())

	files := testutil.ListFiles(t, h.cfg.Build.OutputPath)
	assert.Equal(t, []string{filepath.Join(h.libraryDir(), "KernelLibraryManifest.txt")}, files)
	assert.Zero(t, h.cc.calls.Load())
}

func TestRun_SourcesOnly(t *testing.T) {
	h := newHarness(t, func(b *config.Build) { b.GenerateSourcesAndExit = true })

	require.NoError(t, h.run(), h.logs.String())

	assert.Zero(t, h.cc.calls.Load())
	assert.FileExists(t, filepath.Join(h.cfg.Build.OutputPath, "Kernels.cpp"))
	assert.FileExists(t, filepath.Join(h.libraryDir(), "KernelLibrary.dat"))
	produced, err := reconcile.Produced(h.libraryDir())
	require.NoError(t, err)
	assert.Empty(t, produced)
}

func TestRun_CompilationFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.cc.fail = "KernelLibrary_gfx942.co"

	err := h.run()

	var compErr *toolchain.CompilationError
	require.ErrorAs(t, err, &compErr)
	assert.Contains(t, err.Error(), "KernelLibrary_gfx942.co")
	assert.NoFileExists(t, filepath.Join(h.libraryDir(), "KernelLibrary.dat"))
}

func TestRun_UnexpectedArtifact(t *testing.T) {
	h := newHarness(t, nil)
	testutil.WriteFiles(t, h.libraryDir(), map[string]string{"Stale_gfx942.co": ""})

	err := h.run()

	var mm *reconcile.MismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, []string{filepath.Join(h.libraryDir(), "Stale_gfx942.co")}, mm.Unexpected)
	assert.Empty(t, mm.Missing)
}

func TestRun_NoLogicFiles(t *testing.T) {
	h := newHarness(t, func(b *config.Build) { b.LogicFilter = "Nothing*" })

	err := h.run()
	assert.ErrorContains(t, err, `no logic files matching "Nothing*"`)
}

func TestRun_RepeatedBuildsSucceed(t *testing.T) {
	for i := range 20 {
		h := newHarness(t, nil)
		require.NoError(t, h.run(), "build %d: %s", i, h.logs.String())
	}
}

func TestRun_EmptyGeneratedText(t *testing.T) {
	testCases := []struct {
		name string
		mut  func(*config.Build)
	}{
		{name: "one file per kernel", mut: func(b *config.Build) { b.MergeFiles = false }},
		{name: "single merged library"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.mut)
			gen := emptyGenerator{Generator: generator.NewTemplate(), empty: map[string]bool{"S90_src": true, "S942_asm": true}}

			require.NoError(t, h.run(WithGenerator(gen)), h.logs.String())

			produced, err := reconcile.Produced(h.libraryDir())
			require.NoError(t, err)
			for _, p := range produced {
				assert.NotContains(t, filepath.Base(p), "S90_src")
			}
			assert.NoFileExists(t, filepath.Join(h.cfg.Build.OutputPath, "assembly", "S942_asm.s"))
			assert.NoFileExists(t, filepath.Join(h.cfg.Build.OutputPath, "Kernels", "S90_src.cpp"))
			assert.FileExists(t, filepath.Join(h.libraryDir(), "KernelLibrary.dat"))
		})
	}
}
