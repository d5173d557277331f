package subtitle

// ChunkLines splits an episode's line array into analysis chunks of at most
// size lines. Adjacent chunks share overlap lines so that an expression whose
// context straddles a chunk boundary is still visible to one chunk in full.
func ChunkLines(lines []Line, size, overlap int) []Chunk {
	if size <= 0 {
		size = 50
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if len(lines) == 0 {
		return nil
	}

	var chunks []Chunk
	step := size - overlap
	for start := 0; start < len(lines); start += step {
		end := start + size
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, Chunk{
			BaseIndex: start,
			Lines:     lines[start:end],
		})
		if end == len(lines) {
			break
		}
	}
	return chunks
}
