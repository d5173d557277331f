package subtitle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func makeLines(n int) []Line {
	lines := make([]Line, n)
	for i := range lines {
		lines[i] = Line{
			Index:     i + 1,
			StartTime: time.Duration(i) * 2 * time.Second,
			EndTime:   time.Duration(i)*2*time.Second + time.Second,
			Text:      "line",
		}
	}
	return lines
}

func TestChunkLines_CoversAllLines(t *testing.T) {
	lines := makeLines(120)
	chunks := ChunkLines(lines, 50, 0)

	require.Len(t, chunks, 3)
	require.Equal(t, 0, chunks[0].BaseIndex)
	require.Equal(t, 50, chunks[1].BaseIndex)
	require.Equal(t, 100, chunks[2].BaseIndex)
	require.Len(t, chunks[2].Lines, 20)
}

func TestChunkLines_Overlap(t *testing.T) {
	lines := makeLines(100)
	chunks := ChunkLines(lines, 50, 10)

	require.Equal(t, 0, chunks[0].BaseIndex)
	require.Equal(t, 40, chunks[1].BaseIndex)
	// overlapping region appears in both chunks
	require.Equal(t, chunks[0].Lines[40], chunks[1].Lines[0])
}

func TestChunkLines_Empty(t *testing.T) {
	require.Nil(t, ChunkLines(nil, 50, 0))
}

func TestChunkLines_BaseIndexMapsToEpisode(t *testing.T) {
	lines := makeLines(60)
	chunks := ChunkLines(lines, 50, 0)

	// chunk-local index 3 of the second chunk is episode index 53
	local := 3
	episodeIdx := chunks[1].BaseIndex + local
	require.Equal(t, lines[episodeIdx], chunks[1].Lines[local])
}
