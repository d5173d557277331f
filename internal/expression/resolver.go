package expression

import (
	"errors"
	"fmt"
	"time"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/subtitle"
	"github.com/taigi0315/study-english-with-suits-sub006/pkg/log"
)

// ErrIndexOutOfRange is returned when an index-referenced record points
// outside the episode's dialogue array.
var ErrIndexOutOfRange = errors.New("dialogue line index out of range")

// Raw is an expression record as produced by the analysis collaborator,
// before timing validation. The context window is referenced either by line
// indices into the episode array (FirstLine/LastLine, when IndexBased is
// true) or by absolute seconds. Expression bounds are always absolute
// seconds in the episode timeline.
type Raw struct {
	Expression string

	IndexBased bool
	FirstLine  int
	LastLine   int

	ContextStartSeconds float64
	ContextEndSeconds   float64

	ExpressionStartSeconds float64
	ExpressionEndSeconds   float64

	DialogueLines      []string
	Scene              string
	Difficulty         int
	SimilarExpressions []string
	Keywords           []string

	// Translation produced by the analysis run itself, in TranslationLang
	TranslationLang string
	Translation     *Translation
}

// Resolved is the outcome of timing resolution for one raw record.
// Dropped records carry no Analysis and are skipped upstream without
// failing the batch.
type Resolved struct {
	Analysis   *Analysis
	Dropped    bool
	DropReason string
}

// Resolve validates one raw record against the episode's timed lines and
// produces an Analysis with monotonic, in-window timing. It returns an
// error only for structurally broken input (bad indices); contradictory
// timing is corrected where possible and otherwise reported as dropped.
func Resolve(raw Raw, lines []subtitle.Line, episodeIndex int) (Resolved, error) {
	contextStart, contextEnd, err := resolveContext(raw, lines)
	if err != nil {
		return Resolved{}, err
	}
	if contextEnd <= contextStart {
		return dropped("context window has non-positive duration"), nil
	}

	exprStart := secondsToDuration(raw.ExpressionStartSeconds)
	exprEnd := secondsToDuration(raw.ExpressionEndSeconds)

	if exprStart < contextStart {
		log.Warn("expression %q starts %.2fs before its context window, clamping",
			raw.Expression, (contextStart - exprStart).Seconds())
		exprStart = contextStart
	}
	if exprEnd > contextEnd {
		log.Warn("expression %q ends %.2fs after its context window, clamping",
			raw.Expression, (exprEnd - contextEnd).Seconds())
		exprEnd = contextEnd
	}

	if exprEnd-exprStart <= 0 {
		return dropped("expression window empty after clamping"), nil
	}

	a := &Analysis{
		Expression:         raw.Expression,
		Index:              episodeIndex,
		ContextStart:       contextStart,
		ContextEnd:         contextEnd,
		ExpressionStart:    exprStart,
		ExpressionEnd:      exprEnd,
		DialogueLines:      raw.DialogueLines,
		Scene:              ParseSceneType(raw.Scene),
		Difficulty:         raw.Difficulty,
		SimilarExpressions: raw.SimilarExpressions,
		Keywords:           raw.Keywords,
	}

	if raw.Translation != nil && raw.TranslationLang != "" {
		if err := a.AddTranslation(raw.TranslationLang, *raw.Translation); err != nil {
			return Resolved{}, err
		}
	}

	return Resolved{Analysis: a}, nil
}

// ResolveAll resolves a batch of raw records. Dropped records are logged
// and skipped; index errors abort because they indicate a broken contract
// with the analysis collaborator, not a bad single record.
func ResolveAll(raws []Raw, lines []subtitle.Line) ([]*Analysis, error) {
	analyses := make([]*Analysis, 0, len(raws))
	for _, raw := range raws {
		res, err := Resolve(raw, lines, len(analyses))
		if err != nil {
			return nil, fmt.Errorf("resolve expression %q: %w", raw.Expression, err)
		}
		if res.Dropped {
			log.Warn("dropping expression %q: %s", raw.Expression, res.DropReason)
			continue
		}
		analyses = append(analyses, res.Analysis)
	}
	return analyses, nil
}

func resolveContext(raw Raw, lines []subtitle.Line) (time.Duration, time.Duration, error) {
	if !raw.IndexBased {
		return secondsToDuration(raw.ContextStartSeconds), secondsToDuration(raw.ContextEndSeconds), nil
	}
	if raw.FirstLine < 0 || raw.FirstLine >= len(lines) {
		return 0, 0, fmt.Errorf("first line %d of %d lines: %w", raw.FirstLine, len(lines), ErrIndexOutOfRange)
	}
	if raw.LastLine < raw.FirstLine || raw.LastLine >= len(lines) {
		return 0, 0, fmt.Errorf("last line %d of %d lines: %w", raw.LastLine, len(lines), ErrIndexOutOfRange)
	}
	return lines[raw.FirstLine].StartTime, lines[raw.LastLine].EndTime, nil
}

func dropped(reason string) Resolved {
	return Resolved{Dropped: true, DropReason: reason}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
