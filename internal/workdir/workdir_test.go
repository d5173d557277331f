package workdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManager_CleanupRemovesEverything(t *testing.T) {
	base := t.TempDir()
	m, err := New(base, "test-run")
	require.NoError(t, err)
	require.DirExists(t, m.Root())

	sub, err := m.Subdir("slices")
	require.NoError(t, err)

	f := filepath.Join(sub, "clip.mp4")
	require.NoError(t, os.WriteFile(f, []byte("data"), 0o644))
	m.Register(f)

	m.Cleanup()
	require.NoDirExists(t, m.Root())
}

func TestManager_CleanupIsIdempotent(t *testing.T) {
	m, err := New(t.TempDir(), "run")
	require.NoError(t, err)
	m.Cleanup()
	m.Cleanup() // second call must be a no-op
}

func TestManager_RemoveDeletesEarly(t *testing.T) {
	m, err := New(t.TempDir(), "run")
	require.NoError(t, err)
	defer m.Cleanup()

	f := m.Path("partial.mp4")
	require.NoError(t, os.WriteFile(f, []byte("partial"), 0o644))
	m.Register(f)

	m.Remove(f)
	require.NoFileExists(t, f)
}

func TestManager_ConcurrentRunsAreDisjoint(t *testing.T) {
	base := t.TempDir()
	m1, err := New(base, "run-a")
	require.NoError(t, err)
	m2, err := New(base, "run-b")
	require.NoError(t, err)

	require.NotEqual(t, m1.Root(), m2.Root())

	f := m2.Path("keep.mp4")
	require.NoError(t, os.WriteFile(f, []byte("keep"), 0o644))
	m2.Register(f)

	m1.Cleanup()
	require.FileExists(t, f)
	m2.Cleanup()
}
