package expression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/subtitle"
)

func episodeLines() []subtitle.Line {
	return []subtitle.Line{
		{Index: 1, StartTime: 10 * time.Second, EndTime: 13 * time.Second, Text: "You're out of your depth."},
		{Index: 2, StartTime: 14 * time.Second, EndTime: 17 * time.Second, Text: "I'm just getting started."},
		{Index: 3, StartTime: 18 * time.Second, EndTime: 25 * time.Second, Text: "Fine. Have it your way."},
	}
}

func TestResolve_AbsoluteTimestamps(t *testing.T) {
	raw := Raw{
		Expression:             "out of your depth",
		ContextStartSeconds:    10,
		ContextEndSeconds:      25,
		ExpressionStartSeconds: 14,
		ExpressionEndSeconds:   16.5,
		Scene:                  "tension",
	}

	res, err := Resolve(raw, episodeLines(), 0)
	require.NoError(t, err)
	require.False(t, res.Dropped)

	a := res.Analysis
	require.Equal(t, 10*time.Second, a.ContextStart)
	require.Equal(t, 25*time.Second, a.ContextEnd)
	require.Equal(t, 14*time.Second, a.ExpressionStart)
	require.Equal(t, 16*time.Second+500*time.Millisecond, a.ExpressionEnd)
	require.Equal(t, SceneTension, a.Scene)

	// spec'd timing invariant
	require.LessOrEqual(t, a.ContextStart, a.ExpressionStart)
	require.Less(t, a.ExpressionStart, a.ExpressionEnd)
	require.LessOrEqual(t, a.ExpressionEnd, a.ContextEnd)
}

func TestResolve_IndexReferenced(t *testing.T) {
	raw := Raw{
		Expression:             "just getting started",
		IndexBased:             true,
		FirstLine:              0,
		LastLine:               2,
		ExpressionStartSeconds: 14,
		ExpressionEndSeconds:   17,
	}

	res, err := Resolve(raw, episodeLines(), 0)
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, res.Analysis.ContextStart)
	require.Equal(t, 25*time.Second, res.Analysis.ContextEnd)
}

func TestResolve_IndexOutOfRange(t *testing.T) {
	raw := Raw{
		Expression: "broken",
		IndexBased: true,
		FirstLine:  0,
		LastLine:   7,
	}

	_, err := Resolve(raw, episodeLines(), 0)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestResolve_ClampsExpressionStart(t *testing.T) {
	raw := Raw{
		Expression:             "early bird",
		ContextStartSeconds:    10,
		ContextEndSeconds:      25,
		ExpressionStartSeconds: 8, // before the window, must clamp not fail
		ExpressionEndSeconds:   12,
	}

	res, err := Resolve(raw, episodeLines(), 0)
	require.NoError(t, err)
	require.False(t, res.Dropped)
	require.Equal(t, 10*time.Second, res.Analysis.ExpressionStart)
}

func TestResolve_DropsEmptyWindowAfterClamp(t *testing.T) {
	raw := Raw{
		Expression:             "vanishing",
		ContextStartSeconds:    10,
		ContextEndSeconds:      25,
		ExpressionStartSeconds: 9,
		ExpressionEndSeconds:   10, // clamps to [10, 10] -> zero duration
	}

	res, err := Resolve(raw, episodeLines(), 0)
	require.NoError(t, err)
	require.True(t, res.Dropped)
	require.Nil(t, res.Analysis)
}

func TestResolve_DropsReversedWindow(t *testing.T) {
	raw := Raw{
		Expression:             "backwards",
		ContextStartSeconds:    10,
		ContextEndSeconds:      25,
		ExpressionStartSeconds: 16,
		ExpressionEndSeconds:   14,
	}

	res, err := Resolve(raw, episodeLines(), 0)
	require.NoError(t, err)
	require.True(t, res.Dropped)
}

func TestResolveAll_SkipsDroppedKeepsRest(t *testing.T) {
	raws := []Raw{
		{Expression: "good", ContextStartSeconds: 10, ContextEndSeconds: 25, ExpressionStartSeconds: 14, ExpressionEndSeconds: 16.5},
		{Expression: "bad", ContextStartSeconds: 10, ContextEndSeconds: 25, ExpressionStartSeconds: 16, ExpressionEndSeconds: 16},
		{Expression: "also good", ContextStartSeconds: 30, ContextEndSeconds: 40, ExpressionStartSeconds: 31, ExpressionEndSeconds: 33},
	}

	analyses, err := ResolveAll(raws, episodeLines())
	require.NoError(t, err)
	require.Len(t, analyses, 2)
	require.Equal(t, "good", analyses[0].Expression)
	require.Equal(t, 0, analyses[0].Index)
	require.Equal(t, "also good", analyses[1].Expression)
	require.Equal(t, 1, analyses[1].Index)
}

func TestRelativeWindow(t *testing.T) {
	a := &Analysis{
		ContextStart:    10 * time.Second,
		ContextEnd:      25 * time.Second,
		ExpressionStart: 14 * time.Second,
		ExpressionEnd:   16*time.Second + 500*time.Millisecond,
	}

	start, end := a.RelativeWindow()
	require.Equal(t, 4*time.Second, start)
	require.Equal(t, 6*time.Second+500*time.Millisecond, end)
}
