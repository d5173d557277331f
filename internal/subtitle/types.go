package subtitle

import (
	"time"

	"golang.org/x/text/language"
)

// Reader is the interface for reading subtitle files
type Reader interface {
	Read() (*File, error)
}

// Writer is the interface for writing subtitle files
type Writer interface {
	Write(path string, subtitle *File) error
}

// Line represents a single timed subtitle line
type Line struct {
	Index     int           // subtitle index
	StartTime time.Duration // start time
	EndTime   time.Duration // end time
	Text      string        // subtitle text
}

// File represents a parsed subtitle track
type File struct {
	Lines    []Line
	Language language.Tag
	Format   string // e.g. SRT
}

// Window returns the lines whose display range overlaps [start, end)
func (f *File) Window(start, end time.Duration) []Line {
	var out []Line
	for _, line := range f.Lines {
		if line.EndTime <= start || line.StartTime >= end {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Chunk is a contiguous window of lines handed to the analysis collaborator.
// BaseIndex is the offset of Lines[0] in the episode's full line array, so
// index-referenced analysis output can be mapped back to episode positions.
type Chunk struct {
	BaseIndex int
	Lines     []Line
}
