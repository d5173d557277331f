package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/taigi0315/study-english-with-suits-sub006/pkg/log"
)

// FFmpegOptions configures the external encoder wrapper
type FFmpegOptions struct {
	FFmpegCmd  string
	FFprobeCmd string
	// Padding is the buffer tolerance applied before and after a source
	// slice so frame-inaccurate seeks never clip dialogue.
	Padding time.Duration
	CRF     int
	Preset  string
}

// FFmpeg invokes ffmpeg/ffprobe as subprocesses
type FFmpeg struct {
	ffmpegCmd  string
	ffprobeCmd string
	padding    time.Duration
	crf        int
	preset     string
}

// NewFFmpeg creates the encoder wrapper with defaults filled in
func NewFFmpeg(opts FFmpegOptions) *FFmpeg {
	if opts.FFmpegCmd == "" {
		opts.FFmpegCmd = "ffmpeg"
	}
	if opts.FFprobeCmd == "" {
		opts.FFprobeCmd = "ffprobe"
	}
	if opts.CRF == 0 {
		opts.CRF = 23
	}
	if opts.Preset == "" {
		opts.Preset = "veryfast"
	}
	return &FFmpeg{
		ffmpegCmd:  opts.FFmpegCmd,
		ffprobeCmd: opts.FFprobeCmd,
		padding:    opts.Padding,
		crf:        opts.CRF,
		preset:     opts.Preset,
	}
}

// Check verifies both binaries are resolvable. A missing encoder is a
// configuration failure, not a per-task one.
func (f *FFmpeg) Check() error {
	if _, err := exec.LookPath(f.ffmpegCmd); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	if _, err := exec.LookPath(f.ffprobeCmd); err != nil {
		return fmt.Errorf("ffprobe not found: %w", err)
	}
	return nil
}

// Slice cuts a padded window out of the original source media
func (f *FFmpeg) Slice(ctx context.Context, input string, start, dur time.Duration, output string) error {
	return f.run(ctx, f.sliceArgs(input, start, dur, output))
}

func (f *FFmpeg) sliceArgs(input string, start, dur time.Duration, output string) []string {
	paddedStart := start - f.padding
	if paddedStart < 0 {
		paddedStart = 0
	}
	paddedDur := dur + (start - paddedStart) + f.padding

	return []string{
		"-y",
		"-ss", formatSeconds(paddedStart),
		"-t", formatSeconds(paddedDur),
		"-i", input,
		"-c:v", "libx264",
		"-preset", f.preset,
		"-crf", strconv.Itoa(f.crf),
		"-c:a", "aac",
		"-avoid_negative_ts", "make_zero",
		"-movflags", "+faststart",
		output,
	}
}

// ExtractRange cuts an exact range out of an already-reset asset
func (f *FFmpeg) ExtractRange(ctx context.Context, input string, start, dur time.Duration, output string) error {
	return f.run(ctx, f.extractArgs(input, start, dur, output))
}

func (f *FFmpeg) extractArgs(input string, start, dur time.Duration, output string) []string {
	return []string{
		"-y",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(dur),
		"-i", input,
		"-c:v", "libx264",
		"-preset", f.preset,
		"-crf", strconv.Itoa(f.crf),
		"-c:a", "aac",
		"-avoid_negative_ts", "make_zero",
		output,
	}
}

// Probe measures a media file via ffprobe
func (f *FFmpeg) Probe(ctx context.Context, path string) (ProbeInfo, error) {
	cmdPath, err := exec.LookPath(f.ffprobeCmd)
	if err != nil {
		return ProbeInfo{}, fmt.Errorf("ffprobe not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, cmdPath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return ProbeInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	return parseProbeOutput(output)
}

func parseProbeOutput(output []byte) (ProbeInfo, error) {
	var probeResult struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType  string `json:"codec_type"`
			Width      int    `json:"width"`
			Height     int    `json:"height"`
			RFrameRate string `json:"r_frame_rate"`
			SampleRate string `json:"sample_rate"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(output, &probeResult); err != nil {
		return ProbeInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := ProbeInfo{}
	if seconds, err := strconv.ParseFloat(probeResult.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(seconds * float64(time.Second))
	}

	for _, stream := range probeResult.Streams {
		switch stream.CodecType {
		case "video":
			info.HasVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			info.FPS = parseFrameRate(stream.RFrameRate)
		case "audio":
			info.HasAudio = true
			if rate, err := strconv.Atoi(stream.SampleRate); err == nil {
				info.SampleRate = rate
			}
		}
	}

	return info, nil
}

func parseFrameRate(raw string) float64 {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// Concat joins already-normalized video segments via the concat demuxer.
// Inputs share codec and frame parameters, so streams are copied.
func (f *FFmpeg) Concat(ctx context.Context, inputs []string, output string) error {
	listPath := output + ".list"
	if err := writeConcatList(listPath, inputs); err != nil {
		return err
	}
	defer os.Remove(listPath)

	return f.run(ctx, []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-fflags", "+genpts",
		"-c", "copy",
		"-movflags", "+faststart",
		output,
	})
}

// ConcatAudio joins audio files, re-encoding to AAC so mixed narration and
// silence sources produce one uniform track
func (f *FFmpeg) ConcatAudio(ctx context.Context, inputs []string, output string) error {
	listPath := output + ".list"
	if err := writeConcatList(listPath, inputs); err != nil {
		return err
	}
	defer os.Remove(listPath)

	return f.run(ctx, []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:a", "aac",
		"-ar", "44100",
		output,
	})
}

func writeConcatList(listPath string, inputs []string) error {
	var sb strings.Builder
	for _, input := range inputs {
		sb.WriteString("file '")
		sb.WriteString(strings.ReplaceAll(input, "'", `'\''`))
		sb.WriteString("'\n")
	}
	if err := os.WriteFile(listPath, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	return nil
}

// Normalize rescales a segment to the target frame spec and resets its
// timestamps. Must run before concatenation, never after.
func (f *FFmpeg) Normalize(ctx context.Context, input string, spec FrameSpec, output string) error {
	return f.run(ctx, f.normalizeArgs(input, spec, output))
}

func (f *FFmpeg) normalizeArgs(input string, spec FrameSpec, output string) []string {
	vf := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,fps=%d,setpts=PTS-STARTPTS",
		spec.Width, spec.Height, spec.Width, spec.Height, spec.FPS)

	return []string{
		"-y",
		"-i", input,
		"-vf", vf,
		"-af", "aresample=async=1:first_pts=0,asetpts=PTS-STARTPTS",
		"-c:v", "libx264",
		"-preset", f.preset,
		"-crf", strconv.Itoa(f.crf),
		"-c:a", "aac",
		"-ar", "44100",
		output,
	}
}

// BurnSubtitles renders a subtitle file into the video stream
func (f *FFmpeg) BurnSubtitles(ctx context.Context, input, subtitlePath, output string) error {
	return f.run(ctx, []string{
		"-y",
		"-i", input,
		"-vf", fmt.Sprintf("subtitles=%s", escapeFilterPath(subtitlePath)),
		"-c:v", "libx264",
		"-preset", f.preset,
		"-crf", strconv.Itoa(f.crf),
		"-c:a", "copy",
		output,
	})
}

// RenderSlide draws the explanation card over a solid background and muxes
// the narration timeline under it. The video duration is the caller's
// derived narration total plus tail padding, not a guess.
func (f *FFmpeg) RenderSlide(ctx context.Context, spec SlideSpec, output string) error {
	textPath := output + ".txt"
	if err := os.WriteFile(textPath, []byte(slideText(spec)), 0o644); err != nil {
		return fmt.Errorf("failed to write slide text: %w", err)
	}
	defer os.Remove(textPath)

	vf := fmt.Sprintf(
		"drawtext=textfile=%s:fontcolor=white:fontsize=%d:line_spacing=18:x=(w-text_w)/2:y=(h-text_h)/2",
		escapeFilterPath(textPath), spec.Frame.Height/18)

	return f.run(ctx, []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=0x101820:s=%dx%d:r=%d", spec.Frame.Width, spec.Frame.Height, spec.Frame.FPS),
		"-i", spec.AudioPath,
		"-vf", vf,
		"-map", "0:v",
		"-map", "1:a",
		"-t", formatSeconds(spec.Duration),
		"-c:v", "libx264",
		"-preset", f.preset,
		"-crf", strconv.Itoa(f.crf),
		"-c:a", "aac",
		output,
	})
}

func slideText(spec SlideSpec) string {
	var sb strings.Builder
	sb.WriteString(spec.Expression)
	if spec.Translation != "" {
		sb.WriteString("\n\n")
		sb.WriteString(spec.Translation)
	}
	if len(spec.Similar) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString("Similar: ")
		sb.WriteString(strings.Join(spec.Similar, " / "))
	}
	return sb.String()
}

// Blank renders a black clip with silent audio
func (f *FFmpeg) Blank(ctx context.Context, spec FrameSpec, dur time.Duration, output string) error {
	return f.run(ctx, []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=black:s=%dx%d:r=%d", spec.Width, spec.Height, spec.FPS),
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=stereo",
		"-t", formatSeconds(dur),
		"-c:v", "libx264",
		"-preset", f.preset,
		"-crf", strconv.Itoa(f.crf),
		"-c:a", "aac",
		output,
	})
}

// Silence renders a silent audio file of the given length
func (f *FFmpeg) Silence(ctx context.Context, dur time.Duration, output string) error {
	return f.run(ctx, []string{
		"-y",
		"-f", "lavfi",
		"-i", "anullsrc=r=44100:cl=stereo",
		"-t", formatSeconds(dur),
		"-c:a", "aac",
		output,
	})
}

// StackVertical composes the two-pane short-form frame
func (f *FFmpeg) StackVertical(ctx context.Context, spec StackSpec, output string) error {
	return f.run(ctx, f.stackArgs(spec, output))
}

func (f *FFmpeg) stackArgs(spec StackSpec, output string) []string {
	half := spec.Frame.Height / 2
	filter := fmt.Sprintf(
		"[0:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,fps=%d,setpts=PTS-STARTPTS[top];"+
			"[1:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,fps=%d,"+
			"tpad=stop_mode=clone:stop_duration=%s,setpts=PTS-STARTPTS[bottom];"+
			"[top][bottom]vstack=inputs=2[v]",
		spec.Frame.Width, half, spec.Frame.Width, half, spec.Frame.FPS,
		spec.Frame.Width, half, spec.Frame.Width, half, spec.Frame.FPS,
		formatSeconds(spec.Duration), // clone the last frame so panes never run dry
	)

	return []string{
		"-y",
		"-i", spec.Top,
		"-i", spec.Bottom,
		"-filter_complex", filter,
		"-map", "[v]",
		"-map", "0:a",
		"-t", formatSeconds(spec.Duration),
		"-c:v", "libx264",
		"-preset", f.preset,
		"-crf", strconv.Itoa(f.crf),
		"-c:a", "aac",
		output,
	}
}

// run executes one ffmpeg invocation. On context cancellation ffmpeg gets
// SIGINT so it finalizes the file it is writing instead of leaving a
// corrupt truncation; the caller deletes unwanted output afterwards.
func (f *FFmpeg) run(ctx context.Context, args []string) error {
	cmdPath, err := exec.LookPath(f.ffmpegCmd)
	if err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}

	cmd := exec.CommandContext(ctx, cmdPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 10 * time.Second

	log.Debug("running %s %s", f.ffmpegCmd, strings.Join(args, " "))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %v: %s", ErrEncoderFailed, err, tail(stderr.String(), 400))
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// escapeFilterPath escapes a path for use inside an ffmpeg filter argument
func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, `:`, `\:`)
	p = strings.ReplaceAll(p, `'`, `\'`)
	return p
}
