package reconcile

import (
	"path/filepath"
	"testing"

	"github.com/specialistvlad/kernlib/internal/library"
	"github.com/specialistvlad/kernlib/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	planned := []string{"/out/library/Kernels.so-000-gfx942.hsaco", "/out/library/KernelLibrary_gfx942.co"}

	t.Run("equal sets ignoring case", func(t *testing.T) {
		actual := []string{"/out/library/kernels.so-000-GFX942.hsaco", "/out/library/KernelLibrary_gfx942.co"}
		assert.NoError(t, Compare(planned, actual, false))
	})

	t.Run("every offender is listed", func(t *testing.T) {
		actual := []string{"/out/library/Stray.co", "/out/library/Extra.hsaco"}
		err := Compare(planned, actual, false)

		var mm *MismatchError
		require.ErrorAs(t, err, &mm)
		assert.Equal(t, []string{"/out/library/Extra.hsaco", "/out/library/Stray.co"}, mm.Unexpected)
		assert.Equal(t, []string{"/out/library/KernelLibrary_gfx942.co", "/out/library/Kernels.so-000-gfx942.hsaco"}, mm.Missing)
		assert.Contains(t, err.Error(), "unexpected: /out/library/Stray.co")
	})

	t.Run("sources only tolerates missing objects", func(t *testing.T) {
		assert.NoError(t, Compare(planned, nil, true))
	})

	t.Run("sources only still rejects unexpected objects", func(t *testing.T) {
		err := Compare(planned, []string{"/out/library/Stray.co"}, true)
		var mm *MismatchError
		require.ErrorAs(t, err, &mm)
		assert.Empty(t, mm.Missing)
	})
}

func TestProduced(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"Kernels.so-000-gfx942.hsaco": "",
		"Lib_gfx942.co":               "",
		"KernelLibrary.dat":           "",
		"KernelLibraryManifest.txt":   "",
	})

	got, err := Produced(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "Kernels.so-000-gfx942.hsaco"), filepath.Join(dir, "Lib_gfx942.co")}, got)

	got, err = Produced(filepath.Join(dir, "absent"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestValidateLazyLibraries(t *testing.T) {
	k0 := &library.Kernel{Name: "K0", CodeObjectFile: "Lib_A"}
	k1 := &library.Kernel{Name: "K1", CodeObjectFile: "Lib_A"}
	k2 := &library.Kernel{Name: "K2", CodeObjectFile: "Lib_B"}

	master := library.New("gfx942")
	libA, libB := library.New("gfx942"), library.New("gfx942")
	require.NoError(t, libA.Add(library.NewRecord(0, &library.Solution{Name: "S0", Kernels: []*library.Kernel{k0, k1}})))
	require.NoError(t, libA.Add(library.NewRecord(1, &library.Solution{Name: "S1", Kernels: []*library.Kernel{k0}})))
	require.NoError(t, libB.Add(library.NewRecord(2, &library.Solution{Name: "S2", Kernels: []*library.Kernel{k2}})))
	master.LazyLibraries["Lib_A"] = libA
	master.LazyLibraries["Lib_B"] = libB

	assert.NoError(t, ValidateLazyLibraries([]*library.MasterLibrary{master}, []*library.Kernel{k0, k1, k2}))

	k1.CodeObjectFile = "Lib_B"
	err := ValidateLazyLibraries([]*library.MasterLibrary{master}, []*library.Kernel{k0, k1, k2})

	var se *StructuralError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []LazyMismatch{
		{Library: "Lib_A", Solutions: 2, Assigned: 1},
		{Library: "Lib_B", Solutions: 1, Assigned: 2},
	}, se.Mismatches)
	assert.Contains(t, err.Error(), "Lib_A: 2 kernels from solutions, 1 kernels in code object")
}

func TestCheckExistence(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"present.dat": ""})

	assert.NoError(t, CheckExistence([]string{filepath.Join(dir, "present.dat")}))

	err := CheckExistence([]string{filepath.Join(dir, "present.dat"), filepath.Join(dir, "gone.dat")})
	var mf *MissingFilesError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, []string{filepath.Join(dir, "gone.dat")}, mf.Paths)
}
