package media

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/workdir"
	"github.com/taigi0315/study-english-with-suits-sub006/pkg/log"
)

// Slicer extracts context slices from the source media under a shared
// concurrency bound. All slicing of one pipeline run goes through one
// Slicer so the encoder fan-out stays capped.
type Slicer struct {
	enc Encoder
	wd  *workdir.Manager
	sem *semaphore.Weighted
}

// NewSlicer creates a slicer with a hard ceiling on concurrent encoder
// subprocesses
func NewSlicer(enc Encoder, wd *workdir.Manager, maxConcurrency int) *Slicer {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Slicer{
		enc: enc,
		wd:  wd,
		sem: semaphore.NewWeighted(int64(maxConcurrency)),
	}
}

// Slice cuts [start, start+dur) out of input. key identifies the slice
// inside the run (context-window identity, not derived text), so repeated
// requests for the same window land on the same path. On any failure the
// partial output is deleted immediately and no asset is returned.
func (s *Slicer) Slice(ctx context.Context, input, key string, start, dur time.Duration) (*Asset, error) {
	if dur <= 0 {
		return nil, fmt.Errorf("non-positive slice duration %s for %s", dur, key)
	}

	dir, err := s.wd.Subdir("slices")
	if err != nil {
		return nil, err
	}
	output := dir + "/" + key + ".mp4"

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("slice %s not started: %w", key, err)
	}
	defer s.sem.Release(1)

	log.Debug("slicing %s [%s +%s] from %s", key, start, dur, input)
	if err := s.enc.Slice(ctx, input, start, dur, output); err != nil {
		s.discard(output)
		return nil, fmt.Errorf("slice %s: %w", key, err)
	}

	asset, err := s.verify(ctx, output)
	if err != nil {
		s.discard(output)
		return nil, fmt.Errorf("slice %s: %w", key, err)
	}

	s.wd.Register(output)
	return asset, nil
}

// verify confirms the encoder actually produced playable output
func (s *Slicer) verify(ctx context.Context, output string) (*Asset, error) {
	if _, err := os.Stat(output); err != nil {
		return nil, fmt.Errorf("%w: missing file", ErrEmptyOutput)
	}

	info, err := s.enc.Probe(ctx, output)
	if err != nil {
		return nil, err
	}
	if info.Duration <= 0 {
		return nil, fmt.Errorf("%w: zero duration", ErrEmptyOutput)
	}

	return &Asset{
		Path:       output,
		Kind:       KindVideo,
		Duration:   info.Duration,
		Width:      info.Width,
		Height:     info.Height,
		SampleRate: info.SampleRate,
	}, nil
}

func (s *Slicer) discard(output string) {
	if err := os.Remove(output); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove partial slice %s: %v", output, err)
	}
}
