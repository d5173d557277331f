package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplaceExt(t *testing.T) {
	require.Equal(t, filepath.Join("a", "ep.srt"), ReplaceExt(filepath.Join("a", "ep.mkv"), ".srt"))
	require.Equal(t, filepath.Join("a", "ep.srt"), ReplaceExt(filepath.Join("a", "ep.mkv"), "srt"))
	require.Equal(t, "ep.srt", ReplaceExt("ep", ".srt"))
}

func TestStripExt(t *testing.T) {
	require.Equal(t, "ep", StripExt("/media/ep.mkv"))
	require.Equal(t, "ep", StripExt("ep"))
}

func TestFindByExtAndSibling(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ep1.MKV"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ep1.srt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	found, err := FindByExt(dir, ".mkv")
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.Equal(t, filepath.Join(dir, "ep1.srt"), Sibling(found[0], ".srt"))
	require.Empty(t, Sibling(filepath.Join(dir, "notes.txt"), ".srt"))
}
