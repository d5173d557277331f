package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSliceArgs_AppliesBufferPadding(t *testing.T) {
	f := NewFFmpeg(FFmpegOptions{Padding: 200 * time.Millisecond})

	args := f.sliceArgs("in.mkv", 10*time.Second, 15*time.Second, "out.mp4")

	require.Equal(t, "9.800", argAfter(t, args, "-ss"))
	// requested duration plus pre and post padding
	require.Equal(t, "15.400", argAfter(t, args, "-t"))
	require.Contains(t, args, "-avoid_negative_ts")
	require.Contains(t, args, "make_zero")
}

func TestSliceArgs_ClampsNegativeSeek(t *testing.T) {
	f := NewFFmpeg(FFmpegOptions{Padding: 500 * time.Millisecond})

	args := f.sliceArgs("in.mkv", 100*time.Millisecond, 2*time.Second, "out.mp4")

	require.Equal(t, "0.000", argAfter(t, args, "-ss"))
	// only the available pre-padding is added
	require.Equal(t, "2.600", argAfter(t, args, "-t"))
}

func TestExtractArgs_NoPadding(t *testing.T) {
	f := NewFFmpeg(FFmpegOptions{Padding: 200 * time.Millisecond})

	args := f.extractArgs("context.mp4", 4*time.Second, 2500*time.Millisecond, "repeat.mp4")

	require.Equal(t, "4.000", argAfter(t, args, "-ss"))
	require.Equal(t, "2.500", argAfter(t, args, "-t"))
}

func TestNormalizeArgs_ResetsTimestamps(t *testing.T) {
	f := NewFFmpeg(FFmpegOptions{})

	args := f.normalizeArgs("in.mp4", FrameSpec{Width: 1280, Height: 720, FPS: 30}, "out.mp4")

	vf := argAfter(t, args, "-vf")
	require.Contains(t, vf, "scale=1280:720")
	require.Contains(t, vf, "fps=30")
	require.Contains(t, vf, "setpts=PTS-STARTPTS")
	require.Contains(t, argAfter(t, args, "-af"), "asetpts=PTS-STARTPTS")
}

func TestStackArgs_HalvesFrameAndMapsTopAudio(t *testing.T) {
	f := NewFFmpeg(FFmpegOptions{})

	spec := StackSpec{
		Frame:    FrameSpec{Width: 1080, Height: 1920, FPS: 30},
		Top:      "top.mp4",
		Bottom:   "slide.mp4",
		Duration: 42 * time.Second,
	}
	args := f.stackArgs(spec, "out.mp4")

	filter := argAfter(t, args, "-filter_complex")
	require.Contains(t, filter, "scale=1080:960")
	require.Contains(t, filter, "vstack=inputs=2")
	require.Contains(t, filter, "tpad=stop_mode=clone")
	require.Contains(t, args, "0:a")
	require.Equal(t, "42.000", argAfter(t, args, "-t"))
}

func TestParseProbeOutput(t *testing.T) {
	raw := []byte(`{
		"format": {"duration": "15.400000"},
		"streams": [
			{"codec_type": "video", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001"},
			{"codec_type": "audio", "sample_rate": "48000"}
		]
	}`)

	info, err := parseProbeOutput(raw)
	require.NoError(t, err)
	require.InDelta(t, 15.4, info.Duration.Seconds(), 0.001)
	require.True(t, info.HasVideo)
	require.True(t, info.HasAudio)
	require.Equal(t, 1920, info.Width)
	require.InDelta(t, 29.97, info.FPS, 0.01)
	require.Equal(t, 48000, info.SampleRate)
}

func TestEscapeFilterPath(t *testing.T) {
	require.Equal(t, `C\:\\subs\\it\'s.srt`, escapeFilterPath(`C:\subs\it's.srt`))
}

func argAfter(t *testing.T, args []string, flag string) string {
	t.Helper()
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	t.Fatalf("flag %s not found in %v", flag, args)
	return ""
}
