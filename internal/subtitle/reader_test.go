package subtitle

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleSRT = `1
00:00:10,000 --> 00:00:12,500
You're out of your depth.

2
00:00:12,800 --> 00:00:15,000
I'm just getting started.

3
00:00:15,200 --> 00:00:18,000
Fine. Have it your way.
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "episode.srt")
	require.NoError(t, os.WriteFile(path, []byte(sampleSRT), 0o644))
	return path
}

func TestReader_ParsesLines(t *testing.T) {
	path := writeSample(t)

	f, err := NewReader(path).Read()
	require.NoError(t, err)
	require.Len(t, f.Lines, 3)
	require.Equal(t, "SRT", f.Format)

	first := f.Lines[0]
	require.Equal(t, 1, first.Index)
	require.Equal(t, 10*time.Second, first.StartTime)
	require.Equal(t, 12*time.Second+500*time.Millisecond, first.EndTime)
	require.Equal(t, "You're out of your depth.", first.Text)
}

func TestReader_SkipsMalformedCues(t *testing.T) {
	const withBroken = `1
00:00:10,000 --> 00:00:12,500
You're out of your depth.

2
not a timing line
garbage

00:00:15.200 --> 00:00:18.000
Fine. Have it your way.
`
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.srt")
	require.NoError(t, os.WriteFile(path, []byte(withBroken), 0o644))

	f, err := NewReader(path).Read()
	require.NoError(t, err)
	require.Len(t, f.Lines, 2)

	// survivors are renumbered; the last cue has no counter and uses dot
	// millisecond separators
	last := f.Lines[1]
	require.Equal(t, 2, last.Index)
	require.Equal(t, 15*time.Second+200*time.Millisecond, last.StartTime)
	require.Equal(t, "Fine. Have it your way.", last.Text)
}

func TestReader_FailsWhenNothingParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.srt")
	require.NoError(t, os.WriteFile(path, []byte("just some prose\nwith no cues\n"), 0o644))

	_, err := NewReader(path).Read()
	require.Error(t, err)
}

func TestReader_RejectsNonSRT(t *testing.T) {
	_, err := NewReader("/tmp/whatever.vtt").Read()
	require.Error(t, err)
}

func TestWriter_RoundTrip(t *testing.T) {
	path := writeSample(t)
	f, err := NewReader(path).Read()
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.srt")
	require.NoError(t, NewWriter().Write(out, f))

	again, err := NewReader(out).Read()
	require.NoError(t, err)
	require.Equal(t, f.Lines, again.Lines)
}

func TestFile_Window(t *testing.T) {
	path := writeSample(t)
	f, err := NewReader(path).Read()
	require.NoError(t, err)

	lines := f.Window(12*time.Second, 16*time.Second)
	require.Len(t, lines, 3)

	lines = f.Window(13*time.Second, 15*time.Second)
	require.Len(t, lines, 1)
	require.Equal(t, 2, lines[0].Index)
}
