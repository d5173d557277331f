package composer_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/composer"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/expression"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/media"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/media/mediatest"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/subtitle"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/workdir"
)

type fakeNarrator struct {
	enc *mediatest.FakeEncoder
	dur time.Duration

	mu    sync.Mutex
	calls int
}

func (n *fakeNarrator) Synthesize(_ context.Context, _, _, outputPath string) error {
	if err := os.WriteFile(outputPath, []byte("audio"), 0o644); err != nil {
		return err
	}
	n.enc.SetDuration(outputPath, n.dur)
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	return nil
}

type fixture struct {
	enc      *mediatest.FakeEncoder
	narrator *fakeNarrator
	wd       *workdir.Manager
	scene    *media.Asset
	group    *expression.Group
	outDir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	enc := mediatest.NewFakeEncoder()
	wd, err := workdir.New(t.TempDir(), "test")
	require.NoError(t, err)
	t.Cleanup(wd.Cleanup)

	scenePath := filepath.Join(t.TempDir(), "scene.mp4")
	require.NoError(t, os.WriteFile(scenePath, []byte("scene"), 0o644))
	enc.SetDuration(scenePath, 15*time.Second)

	a := &expression.Analysis{
		Expression:      "out of your depth",
		Index:           1,
		ContextStart:    10 * time.Second,
		ContextEnd:      25 * time.Second,
		ExpressionStart: 14 * time.Second,
		ExpressionEnd:   16*time.Second + 500*time.Millisecond,
	}
	require.NoError(t, a.AddTranslation("ko", expression.Translation{Expression: "역부족이야"}))

	return &fixture{
		enc:      enc,
		narrator: &fakeNarrator{enc: enc, dur: 3 * time.Second},
		wd:       wd,
		scene:    &media.Asset{Path: scenePath, Kind: media.KindVideo, Duration: 15 * time.Second},
		group:    &expression.Group{ContextStart: 10 * time.Second, ContextEnd: 25 * time.Second, Members: []*expression.Analysis{a}},
		outDir:   t.TempDir(),
	}
}

func (f *fixture) subs() *subtitle.File {
	return &subtitle.File{Lines: []subtitle.Line{
		{Index: 1, StartTime: 11 * time.Second, EndTime: 13 * time.Second, Text: "You're in over your head."},
		{Index: 2, StartTime: 14 * time.Second, EndTime: 17 * time.Second, Text: "You're out of your depth here."},
	}, Format: "SRT"}
}

func (f *fixture) composer(cfg composer.Config) *composer.Composer {
	cfg.OutputDir = f.outDir
	return composer.New(f.enc, f.wd, f.narrator, f.subs(), cfg)
}

func TestComposeGroup_LongForm(t *testing.T) {
	f := newFixture(t)
	c := f.composer(composer.Config{
		RepeatCount:        2,
		RepeatGap:          500 * time.Millisecond,
		TailPadding:        300 * time.Millisecond,
		TransitionDuration: time.Second,
		Format:             composer.FormatLong,
	})

	seqs, fails, err := c.ComposeGroup(context.Background(), f.group, f.scene, "ko")
	require.NoError(t, err)
	require.Empty(t, fails)
	require.Len(t, seqs, 1)

	seq := seqs[0]
	require.Len(t, seq.Segments, 4)
	require.Equal(t, composer.SegmentContext, seq.Segments[0].Kind)
	require.Equal(t, composer.SegmentRepeat, seq.Segments[1].Kind)
	require.Equal(t, composer.SegmentTransition, seq.Segments[2].Kind)
	require.Equal(t, composer.SegmentSlide, seq.Segments[3].Kind)

	// 2.5s expression played twice with one 0.5s gap
	require.Equal(t, 5*time.Second+500*time.Millisecond, seq.Segments[1].Duration)
	// 3s narration twice with one 0.5s gap, plus 0.3s tail
	require.Equal(t, 6*time.Second+800*time.Millisecond, seq.Segments[3].Duration)

	require.Equal(t, seq.SegmentTotal(), seq.Duration)
	require.FileExists(t, seq.OutputPath)
}

func TestComposeGroup_SharesRawUnitAcrossLanguages(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.group.Members[0].AddTranslation("ja", expression.Translation{Expression: "力不足だ"}))
	c := f.composer(composer.Config{Format: composer.FormatLong})

	_, _, err := c.ComposeGroup(context.Background(), f.group, f.scene, "ko")
	require.NoError(t, err)
	_, _, err = c.ComposeGroup(context.Background(), f.group, f.scene, "ja")
	require.NoError(t, err)

	// the expression window is cut from the raw scene exactly once and
	// the bytes are shared; subtitles are burned once per language
	require.Equal(t, 1, f.enc.CallCount("extract"))
	require.Equal(t, 2, f.enc.CallCount("burn"))
}

func TestComposeGroup_BurnCachedWithinLanguage(t *testing.T) {
	f := newFixture(t)
	second := &expression.Analysis{
		Expression:      "in over your head",
		Index:           2,
		ContextStart:    10 * time.Second,
		ContextEnd:      25 * time.Second,
		ExpressionStart: 11 * time.Second,
		ExpressionEnd:   13 * time.Second,
	}
	require.NoError(t, second.AddTranslation("ko", expression.Translation{Expression: "감당이 안 돼"}))
	f.group.Members = append(f.group.Members, second)

	c := f.composer(composer.Config{Format: composer.FormatLong})
	seqs, fails, err := c.ComposeGroup(context.Background(), f.group, f.scene, "ko")
	require.NoError(t, err)
	require.Empty(t, fails)
	require.Len(t, seqs, 2)

	// both members share one burned scene but cut their own windows
	require.Equal(t, 1, f.enc.CallCount("burn"))
	require.Equal(t, 2, f.enc.CallCount("extract"))
}

func TestComposeGroup_StackedShort(t *testing.T) {
	f := newFixture(t)
	c := f.composer(composer.Config{
		Format:      composer.FormatShort,
		ShortLayout: composer.LayoutStacked,
		ShortFrame:  media.FrameSpec{Width: 1080, Height: 1920, FPS: 30},
	})

	seqs, fails, err := c.ComposeGroup(context.Background(), f.group, f.scene, "ko")
	require.NoError(t, err)
	require.Empty(t, fails)
	require.Len(t, seqs, 1)

	require.Equal(t, 1, f.enc.CallCount("stack"))
	require.Equal(t, seqs[0].SegmentTotal(), seqs[0].Duration)
}

func TestComposeGroup_SlideFailureReportsMember(t *testing.T) {
	f := newFixture(t)
	f.enc.FailOn = func(op, _ string) error {
		if op == "slide" {
			return media.ErrEncoderFailed
		}
		return nil
	}
	c := f.composer(composer.Config{Format: composer.FormatLong})

	seqs, fails, err := c.ComposeGroup(context.Background(), f.group, f.scene, "ko")
	require.NoError(t, err)
	require.Empty(t, seqs)
	require.Len(t, fails, 1)
	require.ErrorIs(t, fails[0].Err, media.ErrEncoderFailed)
}

func TestComposeGroup_MemberFailureDoesNotStopSiblings(t *testing.T) {
	f := newFixture(t)
	second := &expression.Analysis{
		Expression:      "in over your head",
		Index:           2,
		ContextStart:    10 * time.Second,
		ContextEnd:      25 * time.Second,
		ExpressionStart: 11 * time.Second,
		ExpressionEnd:   13 * time.Second,
	}
	require.NoError(t, second.AddTranslation("ko", expression.Translation{Expression: "감당이 안 돼"}))
	f.group.Members = append(f.group.Members, second)

	// only the first member's slide render fails
	f.enc.FailOn = func(op, output string) error {
		if op == "slide" && strings.Contains(output, "slide-001") {
			return media.ErrEncoderFailed
		}
		return nil
	}
	c := f.composer(composer.Config{Format: composer.FormatLong})

	seqs, fails, err := c.ComposeGroup(context.Background(), f.group, f.scene, "ko")
	require.NoError(t, err)
	require.Len(t, seqs, 1)
	require.Equal(t, 2, seqs[0].Expression.Index)
	require.FileExists(t, seqs[0].OutputPath)

	require.Len(t, fails, 1)
	require.Equal(t, 1, fails[0].Expression.Index)
	require.ErrorIs(t, fails[0].Err, media.ErrEncoderFailed)
}

func TestBatchSequences_Greedy(t *testing.T) {
	seqs := make([]*composer.Sequence, 7)
	for i := range seqs {
		seqs[i] = &composer.Sequence{Duration: 40 * time.Second}
	}

	batches := composer.BatchSequences(seqs, 180*time.Second)
	require.Len(t, batches, 2)
	require.Len(t, batches[0], 4)
	require.Len(t, batches[1], 3)
}

func TestBatchSequences_OversizeSkipped(t *testing.T) {
	seqs := []*composer.Sequence{
		{Duration: 40 * time.Second},
		{Duration: 400 * time.Second},
		{Duration: 40 * time.Second},
	}

	batches := composer.BatchSequences(seqs, 180*time.Second)
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
}
