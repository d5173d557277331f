// Package composer assembles analyzed expressions and sliced scene assets
// into finished learning clips: scene with burned subtitles, repeated
// expression, transition beat, narrated slide.
package composer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/expression"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/media"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/subtitle"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/workdir"
	"github.com/taigi0315/study-english-with-suits-sub006/pkg/log"
)

// Narrator synthesizes slide narration audio
type Narrator interface {
	Synthesize(ctx context.Context, text, lang, outputPath string) error
}

// Config tunes clip assembly
type Config struct {
	RepeatCount        int
	RepeatGap          time.Duration
	TailPadding        time.Duration
	TransitionDuration time.Duration

	LongFrame  media.FrameSpec
	ShortFrame media.FrameSpec

	Format      Format
	ShortLayout ShortLayout

	OutputDir string
}

func (c Config) withDefaults() Config {
	if c.RepeatCount <= 0 {
		c.RepeatCount = 2
	}
	if c.RepeatGap <= 0 {
		c.RepeatGap = 500 * time.Millisecond
	}
	if c.TailPadding <= 0 {
		c.TailPadding = 300 * time.Millisecond
	}
	if c.TransitionDuration <= 0 {
		c.TransitionDuration = time.Second
	}
	if c.LongFrame == (media.FrameSpec{}) {
		c.LongFrame = media.FrameSpec{Width: 1920, Height: 1080, FPS: 30}
	}
	if c.ShortFrame == (media.FrameSpec{}) {
		c.ShortFrame = media.FrameSpec{Width: 1080, Height: 1920, FPS: 30}
	}
	if c.Format == "" {
		c.Format = FormatLong
	}
	if c.ShortLayout == "" {
		c.ShortLayout = LayoutStacked
	}
	return c
}

// Composer turns one context group at a time into per-language sequences.
// Language-neutral intermediates (the repeat unit cut from the raw scene)
// are cached by context identity and shared across languages; language-
// bound intermediates (burned subtitles) are cached per context and
// language.
type Composer struct {
	enc      media.Encoder
	wd       *workdir.Manager
	narrator Narrator
	subs     *subtitle.File
	cfg      Config

	sf      singleflight.Group
	mu      sync.Mutex
	burned  map[string]string // contextKey|lang -> burned scene path
	units   map[string]string // contextKey|index -> raw repeat unit path
	unitDur map[string]time.Duration
	blanks  map[string]string // frame+duration -> blank clip path
	silence map[time.Duration]string
}

// New creates a composer. subs is the original episode track used for
// burn-in windows.
func New(enc media.Encoder, wd *workdir.Manager, narrator Narrator, subs *subtitle.File, cfg Config) *Composer {
	return &Composer{
		enc:      enc,
		wd:       wd,
		narrator: narrator,
		subs:     subs,
		cfg:      cfg.withDefaults(),
		burned:   make(map[string]string),
		units:    make(map[string]string),
		unitDur:  make(map[string]time.Duration),
		blanks:   make(map[string]string),
		silence:  make(map[time.Duration]string),
	}
}

// MemberFailure records one group member whose sequence build failed
type MemberFailure struct {
	Expression *expression.Analysis
	Err        error
}

// ComposeGroup renders one finished clip per group member for one
// language. A member whose build fails is reported in the failure list
// while its siblings keep their clips; the error return is reserved for
// group-level problems. The raw scene asset is never mutated; every
// language variant is a new file.
func (c *Composer) ComposeGroup(
	ctx context.Context,
	group *expression.Group,
	scene *media.Asset,
	lang string,
) ([]*Sequence, []MemberFailure, error) {
	if scene == nil {
		return nil, nil, fmt.Errorf("no scene asset for context %s", group.ContextKey())
	}

	dir, err := c.wd.Subdir("compose")
	if err != nil {
		return nil, nil, err
	}

	var sequences []*Sequence
	var failures []MemberFailure
	for _, member := range group.Members {
		seq, err := c.composeOne(ctx, dir, group, member, scene, lang)
		if err != nil {
			log.Warn("expression %d (%s) failed, continuing with the rest of the group: %v", member.Index, lang, err)
			failures = append(failures, MemberFailure{
				Expression: member,
				Err:        fmt.Errorf("expression %d (%s): %w", member.Index, lang, err),
			})
			continue
		}
		sequences = append(sequences, seq)
	}
	return sequences, failures, nil
}

func (c *Composer) composeOne(
	ctx context.Context,
	dir string,
	group *expression.Group,
	member *expression.Analysis,
	scene *media.Asset,
	lang string,
) (*Sequence, error) {
	frame := c.cfg.LongFrame
	if c.cfg.Format == FormatShort {
		frame = c.cfg.ShortFrame
		if c.cfg.ShortLayout == LayoutStacked {
			// both panes render at half height and stack to the full frame
			frame = media.FrameSpec{Width: frame.Width, Height: frame.Height / 2, FPS: frame.FPS}
		}
	}

	contextSeg, err := c.contextSegment(ctx, dir, group, member, scene, lang, frame)
	if err != nil {
		return nil, err
	}
	repeatSeg, err := c.repeatSegment(ctx, dir, group, member, scene, lang, frame)
	if err != nil {
		return nil, err
	}
	transitionSeg, err := c.transitionSegment(ctx, dir, frame)
	if err != nil {
		return nil, err
	}
	slideSeg, err := c.slideSegment(ctx, dir, member, lang, frame)
	if err != nil {
		return nil, err
	}

	seq := &Sequence{
		Expression: member,
		Language:   lang,
		Segments:   []Segment{contextSeg, repeatSeg, transitionSeg, slideSeg},
	}

	output := filepath.Join(c.cfg.OutputDir, fmt.Sprintf("expr-%03d-%s-%s.mp4", member.Index, lang, c.cfg.Format))
	if c.cfg.Format == FormatShort && c.cfg.ShortLayout == LayoutStacked {
		err = c.renderStacked(ctx, dir, seq, slideSeg, frame, output)
	} else {
		err = c.renderSequential(ctx, seq, output)
	}
	if err != nil {
		return nil, err
	}

	info, err := c.enc.Probe(ctx, output)
	if err != nil {
		return nil, fmt.Errorf("probe of finished clip failed: %w", err)
	}
	seq.OutputPath = output
	seq.Duration = info.Duration

	if drift := (seq.Duration - c.expectedDuration(seq)).Abs(); drift > c.durationTolerance(frame) {
		return nil, fmt.Errorf("clip %s drifted %s from its planned duration", output, drift)
	}
	log.Info("composed %s (%s, %s)", output, lang, seq.Duration)
	return seq, nil
}

// renderSequential concatenates the normalized segments back to back
func (c *Composer) renderSequential(ctx context.Context, seq *Sequence, output string) error {
	inputs := make([]string, len(seq.Segments))
	for i, seg := range seq.Segments {
		inputs[i] = seg.Path
	}
	if err := c.enc.Concat(ctx, inputs, output); err != nil {
		return fmt.Errorf("concat failed: %w", err)
	}
	return nil
}

// renderStacked puts the full sequential program in the top pane and keeps
// the slide visible in the bottom pane for the whole clip. Audio comes from
// the top pane, which already carries scene sound and narration in order.
func (c *Composer) renderStacked(
	ctx context.Context,
	dir string,
	seq *Sequence,
	slide Segment,
	pane media.FrameSpec,
	output string,
) error {
	program := filepath.Join(dir, fmt.Sprintf("program-%03d-%s.mp4", seq.Expression.Index, seq.Language))
	if err := c.renderSequential(ctx, seq, program); err != nil {
		return err
	}
	c.wd.Register(program)

	spec := media.StackSpec{
		Frame:    media.FrameSpec{Width: pane.Width, Height: pane.Height * 2, FPS: pane.FPS},
		Top:      program,
		Bottom:   slide.Path,
		Duration: seq.SegmentTotal(),
	}
	if err := c.enc.StackVertical(ctx, spec, output); err != nil {
		return fmt.Errorf("stack failed: %w", err)
	}
	return nil
}

func (c *Composer) expectedDuration(seq *Sequence) time.Duration {
	return seq.SegmentTotal()
}

func (c *Composer) durationTolerance(frame media.FrameSpec) time.Duration {
	fps := frame.FPS
	if fps <= 0 {
		fps = 30
	}
	// a frame and a half absorbs concat rounding
	return time.Duration(float64(time.Second) * 1.5 / float64(fps))
}

// contextSegment burns the window's subtitles into the scene and
// normalizes it. Burned scenes are cached by context identity plus
// language so every member of the group shares one encode.
func (c *Composer) contextSegment(
	ctx context.Context,
	dir string,
	group *expression.Group,
	member *expression.Analysis,
	scene *media.Asset,
	lang string,
	frame media.FrameSpec,
) (Segment, error) {
	key := group.ContextKey() + "|" + lang

	v, err, _ := c.sf.Do("burn|"+key, func() (any, error) {
		c.mu.Lock()
		cached, ok := c.burned[key]
		c.mu.Unlock()
		if ok {
			return cached, nil
		}

		srtPath := filepath.Join(dir, fmt.Sprintf("ctx-%s-%s.srt", group.ContextKey(), lang))
		if err := c.writeWindowSubtitles(srtPath, group, member, lang); err != nil {
			return "", err
		}
		c.wd.Register(srtPath)

		path := filepath.Join(dir, fmt.Sprintf("ctx-%s-%s.mp4", group.ContextKey(), lang))
		if err := c.enc.BurnSubtitles(ctx, scene.Path, srtPath, path); err != nil {
			return "", fmt.Errorf("subtitle burn failed: %w", err)
		}
		c.wd.Register(path)

		c.mu.Lock()
		c.burned[key] = path
		c.mu.Unlock()
		return path, nil
	})
	if err != nil {
		return Segment{}, err
	}
	burned := v.(string)

	normalized := filepath.Join(dir, fmt.Sprintf("ctx-%s-%s-%dx%d.mp4", group.ContextKey(), lang, frame.Width, frame.Height))
	if err := c.enc.Normalize(ctx, burned, frame, normalized); err != nil {
		return Segment{}, fmt.Errorf("scene normalize failed: %w", err)
	}
	c.wd.Register(normalized)

	return Segment{Kind: SegmentContext, Path: normalized, Duration: scene.Duration}, nil
}

// writeWindowSubtitles emits the context window's lines shifted to the
// sliced scene's zero-based timeline. When the language has translated
// dialogue covering the window, the translated text is burned instead.
func (c *Composer) writeWindowSubtitles(path string, group *expression.Group, member *expression.Analysis, lang string) error {
	var window []subtitle.Line
	if c.subs != nil {
		window = c.subs.Window(group.ContextStart, group.ContextEnd)
	}

	var translated []string
	if tr, ok := member.Translation(lang); ok && len(tr.DialogueLines) == len(window) {
		translated = tr.DialogueLines
	}

	shifted := make([]subtitle.Line, len(window))
	for i, line := range window {
		text := line.Text
		if translated != nil {
			text = translated[i]
		}
		start := line.StartTime - group.ContextStart
		if start < 0 {
			start = 0
		}
		end := line.EndTime - group.ContextStart
		if end > group.ContextDuration() {
			end = group.ContextDuration()
		}
		shifted[i] = subtitle.Line{Index: i + 1, StartTime: start, EndTime: end, Text: text}
	}

	return subtitle.NewWriter().Write(path, &subtitle.File{Lines: shifted, Format: "SRT"})
}

// repeatSegment plays the expression window several times with short
// blank beats between plays. The unit clip is cut from the raw scene
// asset, so every language shares the identical bytes.
func (c *Composer) repeatSegment(
	ctx context.Context,
	dir string,
	group *expression.Group,
	member *expression.Analysis,
	scene *media.Asset,
	lang string,
	frame media.FrameSpec,
) (Segment, error) {
	unit, unitDur, err := c.repeatUnit(ctx, dir, group, member, scene)
	if err != nil {
		return Segment{}, err
	}

	normalized := filepath.Join(dir, fmt.Sprintf("unit-%s-%d-%s-%dx%d.mp4", group.ContextKey(), member.Index, lang, frame.Width, frame.Height))
	if err := c.enc.Normalize(ctx, unit, frame, normalized); err != nil {
		return Segment{}, fmt.Errorf("repeat unit normalize failed: %w", err)
	}
	c.wd.Register(normalized)

	gap, err := c.blank(ctx, dir, frame, c.cfg.RepeatGap)
	if err != nil {
		return Segment{}, err
	}

	var inputs []string
	for i := 0; i < c.cfg.RepeatCount; i++ {
		if i > 0 {
			inputs = append(inputs, gap)
		}
		inputs = append(inputs, normalized)
	}

	out := filepath.Join(dir, fmt.Sprintf("repeat-%s-%d-%s.mp4", group.ContextKey(), member.Index, lang))
	if err := c.enc.Concat(ctx, inputs, out); err != nil {
		return Segment{}, fmt.Errorf("repeat concat failed: %w", err)
	}
	c.wd.Register(out)

	total := time.Duration(c.cfg.RepeatCount)*unitDur + time.Duration(c.cfg.RepeatCount-1)*c.cfg.RepeatGap
	return Segment{Kind: SegmentRepeat, Path: out, Duration: total}, nil
}

// repeatUnit cuts the expression window out of the sliced scene using
// offsets relative to the scene's start. The cut is cached by context
// identity plus member index, never by expression text.
func (c *Composer) repeatUnit(
	ctx context.Context,
	dir string,
	group *expression.Group,
	member *expression.Analysis,
	scene *media.Asset,
) (string, time.Duration, error) {
	key := fmt.Sprintf("%s|%d", group.ContextKey(), member.Index)

	v, err, _ := c.sf.Do("unit|"+key, func() (any, error) {
		c.mu.Lock()
		cached, ok := c.units[key]
		c.mu.Unlock()
		if ok {
			return cached, nil
		}

		relStart, relEnd := member.RelativeWindow()
		if relStart < 0 {
			relStart = 0
		}
		if relEnd > scene.Duration {
			relEnd = scene.Duration
		}
		dur := relEnd - relStart
		if dur <= 0 {
			return "", fmt.Errorf("expression window is empty inside its scene")
		}

		path := filepath.Join(dir, fmt.Sprintf("unit-%s-%d.mp4", group.ContextKey(), member.Index))
		if err := c.enc.ExtractRange(ctx, scene.Path, relStart, dur, path); err != nil {
			return "", fmt.Errorf("expression extract failed: %w", err)
		}
		c.wd.Register(path)

		c.mu.Lock()
		c.units[key] = path
		c.unitDur[key] = dur
		c.mu.Unlock()
		return path, nil
	})
	if err != nil {
		return "", 0, err
	}

	c.mu.Lock()
	dur := c.unitDur[key]
	c.mu.Unlock()
	return v.(string), dur, nil
}

func (c *Composer) transitionSegment(ctx context.Context, dir string, frame media.FrameSpec) (Segment, error) {
	path, err := c.blank(ctx, dir, frame, c.cfg.TransitionDuration)
	if err != nil {
		return Segment{}, err
	}
	return Segment{Kind: SegmentTransition, Path: path, Duration: c.cfg.TransitionDuration}, nil
}

// blank returns a black clip with silent audio, cached per frame and
// duration
func (c *Composer) blank(ctx context.Context, dir string, frame media.FrameSpec, dur time.Duration) (string, error) {
	key := fmt.Sprintf("%dx%d@%d|%d", frame.Width, frame.Height, frame.FPS, dur.Milliseconds())

	v, err, _ := c.sf.Do("blank|"+key, func() (any, error) {
		c.mu.Lock()
		cached, ok := c.blanks[key]
		c.mu.Unlock()
		if ok {
			return cached, nil
		}

		path := filepath.Join(dir, fmt.Sprintf("blank-%s.mp4", strings.ReplaceAll(key, "|", "-")))
		if err := c.enc.Blank(ctx, frame, dur, path); err != nil {
			return "", fmt.Errorf("blank render failed: %w", err)
		}
		c.wd.Register(path)

		c.mu.Lock()
		c.blanks[key] = path
		c.mu.Unlock()
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// slideSegment renders the narrated explanation card. The narration is
// spoken RepeatCount times with gaps, and the card stays up for the whole
// narration timeline plus the tail padding.
func (c *Composer) slideSegment(
	ctx context.Context,
	dir string,
	member *expression.Analysis,
	lang string,
	frame media.FrameSpec,
) (Segment, error) {
	tr, _ := member.Translation(lang)

	narration := filepath.Join(dir, fmt.Sprintf("narration-%03d-%s.mp3", member.Index, lang))
	if err := c.narrator.Synthesize(ctx, c.narrationText(member, tr), lang, narration); err != nil {
		return Segment{}, fmt.Errorf("narration failed: %w", err)
	}
	c.wd.Register(narration)

	info, err := c.enc.Probe(ctx, narration)
	if err != nil {
		return Segment{}, fmt.Errorf("narration probe failed: %w", err)
	}

	audio := narration
	audioDur := info.Duration
	if c.cfg.RepeatCount > 1 {
		gap, err := c.silenceClip(ctx, dir, c.cfg.RepeatGap)
		if err != nil {
			return Segment{}, err
		}
		var inputs []string
		for i := 0; i < c.cfg.RepeatCount; i++ {
			if i > 0 {
				inputs = append(inputs, gap)
			}
			inputs = append(inputs, narration)
		}
		audio = filepath.Join(dir, fmt.Sprintf("narration-%03d-%s-program.m4a", member.Index, lang))
		if err := c.enc.ConcatAudio(ctx, inputs, audio); err != nil {
			return Segment{}, fmt.Errorf("narration concat failed: %w", err)
		}
		c.wd.Register(audio)
		audioDur = time.Duration(c.cfg.RepeatCount)*info.Duration + time.Duration(c.cfg.RepeatCount-1)*c.cfg.RepeatGap
	}

	dur := audioDur + c.cfg.TailPadding
	out := filepath.Join(dir, fmt.Sprintf("slide-%03d-%s.mp4", member.Index, lang))
	spec := media.SlideSpec{
		Frame:       frame,
		Expression:  member.Expression,
		Translation: tr.Expression,
		Similar:     member.SimilarExpressions,
		AudioPath:   audio,
		Duration:    dur,
	}
	if err := c.enc.RenderSlide(ctx, spec, out); err != nil {
		return Segment{}, fmt.Errorf("slide render failed: %w", err)
	}
	c.wd.Register(out)

	return Segment{Kind: SegmentSlide, Path: out, Duration: dur}, nil
}

func (c *Composer) narrationText(member *expression.Analysis, tr expression.Translation) string {
	if tr.Expression == "" {
		return member.Expression
	}
	return fmt.Sprintf("%s. %s", member.Expression, tr.Expression)
}

func (c *Composer) silenceClip(ctx context.Context, dir string, dur time.Duration) (string, error) {
	v, err, _ := c.sf.Do(fmt.Sprintf("silence|%d", dur.Milliseconds()), func() (any, error) {
		c.mu.Lock()
		cached, ok := c.silence[dur]
		c.mu.Unlock()
		if ok {
			return cached, nil
		}

		path := filepath.Join(dir, fmt.Sprintf("silence-%dms.m4a", dur.Milliseconds()))
		if err := c.enc.Silence(ctx, dur, path); err != nil {
			return "", fmt.Errorf("silence render failed: %w", err)
		}
		c.wd.Register(path)

		c.mu.Lock()
		c.silence[dur] = path
		c.mu.Unlock()
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
