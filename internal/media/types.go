package media

import (
	"context"
	"errors"
	"time"
)

// AssetKind distinguishes extracted slice types
type AssetKind string

const (
	KindVideo AssetKind = "video"
	KindAudio AssetKind = "audio"
)

// Asset is an extracted or generated media slice. It is written exactly
// once by its producer and read-only afterwards; language variants are new
// files, never overwrites.
type Asset struct {
	Path       string
	Kind       AssetKind
	Duration   time.Duration
	Width      int
	Height     int
	SampleRate int
}

// ProbeInfo is the measured shape of a media file
type ProbeInfo struct {
	Duration   time.Duration
	Width      int
	Height     int
	FPS        float64
	SampleRate int
	HasVideo   bool
	HasAudio   bool
}

// FrameSpec pins the resolution and frame rate a segment is normalized to
type FrameSpec struct {
	Width  int
	Height int
	FPS    int
}

// SlideSpec describes a narrated explanation slide
type SlideSpec struct {
	Frame       FrameSpec
	Expression  string
	Translation string
	Similar     []string
	AudioPath   string
	Duration    time.Duration
}

// StackSpec describes a vertical two-pane composition: a context-derived
// top half above a slide-derived bottom half. The audio track comes from
// the top input, which carries the full sequential program.
type StackSpec struct {
	Frame    FrameSpec
	Top      string
	Bottom   string
	Duration time.Duration
}

// ErrEmptyOutput marks an encoder invocation that exited zero but produced
// a missing or zero-duration file.
var ErrEmptyOutput = errors.New("encoder produced empty output")

// ErrEncoderFailed marks a non-zero encoder exit
var ErrEncoderFailed = errors.New("encoder failed")

// Encoder is the boundary to the external media encoder. All invocations
// reset output presentation timestamps to zero so concatenation never
// inherits the source timeline.
type Encoder interface {
	// Slice cuts [start, start+dur) out of the original source media,
	// padded by the configured buffer tolerance.
	Slice(ctx context.Context, input string, start, dur time.Duration, output string) error
	// ExtractRange cuts an exact sub-range out of an already-sliced asset
	// whose timeline starts at zero. No padding is applied.
	ExtractRange(ctx context.Context, input string, start, dur time.Duration, output string) error
	Probe(ctx context.Context, path string) (ProbeInfo, error)
	// Concat joins normalized video segments without re-encoding
	Concat(ctx context.Context, inputs []string, output string) error
	// ConcatAudio joins audio files, re-encoding to one uniform codec
	ConcatAudio(ctx context.Context, inputs []string, output string) error
	Normalize(ctx context.Context, input string, spec FrameSpec, output string) error
	BurnSubtitles(ctx context.Context, input, subtitlePath, output string) error
	RenderSlide(ctx context.Context, spec SlideSpec, output string) error
	// Blank renders a black clip with silent audio, used for transitions
	// and inter-repeat gaps
	Blank(ctx context.Context, spec FrameSpec, dur time.Duration, output string) error
	Silence(ctx context.Context, dur time.Duration, output string) error
	StackVertical(ctx context.Context, spec StackSpec, output string) error
}
