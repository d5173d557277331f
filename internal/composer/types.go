package composer

import (
	"time"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/expression"
)

// SegmentKind names the role of one segment in a learning clip
type SegmentKind string

const (
	// SegmentContext is the full scene with burned-in subtitles
	SegmentContext SegmentKind = "context"
	// SegmentRepeat is the expression window played several times in a row
	SegmentRepeat SegmentKind = "expression-repeat"
	// SegmentTransition is a short blank beat between scene and slide
	SegmentTransition SegmentKind = "transition"
	// SegmentSlide is the narrated explanation card
	SegmentSlide SegmentKind = "slide"
)

// Format selects the output shape
type Format string

const (
	// FormatLong is a landscape clip with segments played back to back
	FormatLong Format = "long"
	// FormatShort is a portrait clip for short-form platforms
	FormatShort Format = "short"
)

// ShortLayout selects how a short-form clip arranges its content
type ShortLayout string

const (
	// LayoutStacked shows the scene on top and the slide below,
	// both visible for the whole clip
	LayoutStacked ShortLayout = "stacked"
	// LayoutSequential plays the segments back to back like the long
	// form, just in the portrait frame
	LayoutSequential ShortLayout = "sequential"
)

// Segment is one rendered piece of a learning clip, already normalized to
// the target frame.
type Segment struct {
	Kind     SegmentKind
	Path     string
	Duration time.Duration
}

// Sequence is one finished learning clip for one expression in one
// language.
type Sequence struct {
	Expression *expression.Analysis
	Language   string
	Segments   []Segment
	OutputPath string
	Duration   time.Duration
}

// SegmentTotal sums the planned segment durations
func (s *Sequence) SegmentTotal() time.Duration {
	var total time.Duration
	for _, seg := range s.Segments {
		total += seg.Duration
	}
	return total
}
