package media_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/media"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/media/mediatest"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/scheduler"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/workdir"
)

func newSlicerEnv(t *testing.T, enc media.Encoder, limit int) (*media.Slicer, *workdir.Manager) {
	t.Helper()
	wd, err := workdir.New(t.TempDir(), "slicer-test")
	require.NoError(t, err)
	t.Cleanup(wd.Cleanup)
	return media.NewSlicer(enc, wd, limit), wd
}

func TestSlicer_RoundTripDuration(t *testing.T) {
	enc := mediatest.NewFakeEncoder()
	s, _ := newSlicerEnv(t, enc, 2)

	requested := 15 * time.Second
	asset, err := s.Slice(context.Background(), "episode.mkv", "ctx-10000-25000", 10*time.Second, requested)
	require.NoError(t, err)
	require.FileExists(t, asset.Path)

	// re-measuring must yield the requested duration within tolerance
	info, err := enc.Probe(context.Background(), asset.Path)
	require.NoError(t, err)
	require.InDelta(t, requested.Seconds(), info.Duration.Seconds(), 0.4)
}

func TestSlicer_ConcurrencyCeiling(t *testing.T) {
	const ceiling = 2
	enc := mediatest.NewFakeEncoder()
	enc.Delay = 20 * time.Millisecond
	s, _ := newSlicerEnv(t, enc, ceiling)

	tasks := make([]scheduler.Task[*media.Asset], 12)
	for i := range tasks {
		key := fmt.Sprintf("ctx-%d", i)
		tasks[i] = scheduler.Task[*media.Asset]{
			Name: key,
			Run: func(ctx context.Context) (*media.Asset, error) {
				return s.Slice(ctx, "episode.mkv", key, 0, 5*time.Second)
			},
		}
	}

	// scheduler allows more goroutines than the slicer's encoder bound
	results := scheduler.Run(context.Background(), tasks, scheduler.Options{MaxConcurrency: 12})
	require.Equal(t, 0, scheduler.FailureCount(results))
	require.LessOrEqual(t, enc.Peak(), int64(ceiling))
}

func TestSlicer_FailureRemovesPartialOutput(t *testing.T) {
	enc := mediatest.NewFakeEncoder()
	enc.FailOn = func(op, output string) error {
		if op == "slice" {
			// simulate a partial write before the encoder dies
			_ = os.WriteFile(output, []byte("partial"), 0o644)
			return errors.New("encoder exploded")
		}
		return nil
	}
	s, wd := newSlicerEnv(t, enc, 1)

	_, err := s.Slice(context.Background(), "episode.mkv", "ctx-bad", 0, 5*time.Second)
	require.Error(t, err)
	require.NoFileExists(t, filepath.Join(wd.Root(), "slices", "ctx-bad.mp4"))
}

func TestSlicer_RejectsNonPositiveDuration(t *testing.T) {
	enc := mediatest.NewFakeEncoder()
	s, _ := newSlicerEnv(t, enc, 1)

	_, err := s.Slice(context.Background(), "episode.mkv", "ctx-zero", 10*time.Second, 0)
	require.Error(t, err)
	require.Equal(t, 0, enc.CallCount("slice"))
}
