package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/jobs"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/pipeline"
)

func writeEpisodeFiles(t *testing.T, dir, base string, withSub bool) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, base+".mkv"), []byte("video"), 0o644))
	if withSub {
		require.NoError(t, os.WriteFile(filepath.Join(dir, base+".srt"), []byte("1\n00:00:01,000 --> 00:00:02,000\nhi\n"), 0o644))
	}
}

func TestScanOnce_EnqueuesPairedEpisodes(t *testing.T) {
	dir := t.TempDir()
	writeEpisodeFiles(t, dir, "ep1", true)
	writeEpisodeFiles(t, dir, "ep2", true)
	writeEpisodeFiles(t, dir, "ep3", false) // no subtitle track

	queue := jobs.NewQueue(1, nil)
	scanner := pipeline.NewScanner(pipeline.ScanConfig{
		MediaDirs: []string{dir},
		Languages: []string{"ko"},
		Format:    "long",
	}, queue, nil)

	require.Equal(t, 2, scanner.ScanOnce())

	listed := queue.List()
	require.Len(t, listed, 2)
	for _, job := range listed {
		require.Equal(t, "scan", job.Source)
		require.Equal(t, []string{"ko"}, job.Payload.Languages)
		require.NotEmpty(t, job.Payload.SubtitleFile)
	}
}

func TestScanOnce_SkipsAlreadySeen(t *testing.T) {
	dir := t.TempDir()
	writeEpisodeFiles(t, dir, "ep1", true)

	queue := jobs.NewQueue(1, nil)
	scanner := pipeline.NewScanner(pipeline.ScanConfig{MediaDirs: []string{dir}, Languages: []string{"ko"}}, queue, nil)

	require.Equal(t, 1, scanner.ScanOnce())
	require.Equal(t, 0, scanner.ScanOnce())
}
