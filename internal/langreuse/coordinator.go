// Package langreuse fans one analyzed episode out across target
// languages. The expensive language-neutral work (analysis, scene
// slicing, expression cuts) happens once; each language only adds its
// own translation, burn-in and narration on top.
package langreuse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/composer"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/expression"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/media"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/scheduler"
	"github.com/taigi0315/study-english-with-suits-sub006/pkg/log"
)

// ErrReuseMismatch marks a language pass that expected a shared scene
// asset which is missing or does not match its context window.
var ErrReuseMismatch = errors.New("shared scene asset mismatch")

// Translator produces the per-language payload for one expression
type Translator interface {
	Translate(ctx context.Context, a *expression.Analysis, lang string) (expression.Translation, error)
}

// Options tunes the fan-out
type Options struct {
	// AnalysisLanguage is the language the analyzer already translated
	// into; that language never hits the translator.
	AnalysisLanguage string
	MaxConcurrency   int
	TaskTimeout      time.Duration
}

// Coordinator runs the per-language passes over shared groups and assets
type Coordinator struct {
	composer   *composer.Composer
	translator Translator
	opts       Options
}

// New creates a coordinator
func New(c *composer.Composer, t Translator, opts Options) *Coordinator {
	return &Coordinator{composer: c, translator: t, opts: opts}
}

// ExpressionFailure records one expression that produced no clip in one
// language pass
type ExpressionFailure struct {
	Index      int
	Expression string
	ContextKey string
	Err        error
}

// LanguageResult is the outcome of one language pass
type LanguageResult struct {
	Language  string
	Sequences []*composer.Sequence
	// Failures lists the expressions that produced nothing even when the
	// pass as a whole succeeded
	Failures []ExpressionFailure
	Err      error
}

// languagePass is the value one fan-out task yields
type languagePass struct {
	sequences []*composer.Sequence
	failures  []ExpressionFailure
}

// FanOut runs one pass per target language. scenes maps context keys to
// the shared raw scene assets sliced before fan-out. A failed language
// never stops its siblings.
func (c *Coordinator) FanOut(
	ctx context.Context,
	groups []*expression.Group,
	scenes map[string]*media.Asset,
	langs []string,
) []LanguageResult {
	tasks := make([]scheduler.Task[languagePass], len(langs))
	for i, lang := range langs {
		lang := lang
		tasks[i] = scheduler.Task[languagePass]{
			Name: "language-" + lang,
			Run: func(taskCtx context.Context) (languagePass, error) {
				return c.runLanguage(taskCtx, groups, scenes, lang)
			},
		}
	}

	results := scheduler.Run(ctx, tasks, scheduler.Options{
		MaxConcurrency: c.opts.MaxConcurrency,
		TaskTimeout:    c.opts.TaskTimeout,
	})

	out := make([]LanguageResult, len(results))
	for i, res := range results {
		out[i] = LanguageResult{
			Language:  langs[i],
			Sequences: res.Value.sequences,
			Failures:  res.Value.failures,
			Err:       res.Err,
		}
	}
	return out
}

// runLanguage translates what the language still lacks and composes every
// group. Failed expressions are reported individually and skipped; the
// pass fails only when no expression produced anything.
func (c *Coordinator) runLanguage(
	ctx context.Context,
	groups []*expression.Group,
	scenes map[string]*media.Asset,
	lang string,
) (languagePass, error) {
	var pass languagePass

	for _, group := range groups {
		seqs, fails, err := c.runGroup(ctx, group, scenes, lang)
		if err != nil {
			log.Warn("language %s: context %s failed: %v", lang, group.ContextKey(), err)
			for _, member := range group.Members {
				pass.failures = append(pass.failures, ExpressionFailure{
					Index:      member.Index,
					Expression: member.Expression,
					ContextKey: group.ContextKey(),
					Err:        err,
				})
			}
			continue
		}
		pass.sequences = append(pass.sequences, seqs...)
		pass.failures = append(pass.failures, fails...)
	}

	if len(pass.sequences) == 0 && len(pass.failures) > 0 {
		return pass, fmt.Errorf("language %s produced no clips, %d expressions failed", lang, len(pass.failures))
	}
	return pass, nil
}

// runGroup composes one group. The error return covers group-level
// problems (missing scene, failed translation); member-level build
// failures come back in the failure list with their siblings' sequences.
func (c *Coordinator) runGroup(
	ctx context.Context,
	group *expression.Group,
	scenes map[string]*media.Asset,
	lang string,
) ([]*composer.Sequence, []ExpressionFailure, error) {
	scene, ok := scenes[group.ContextKey()]
	if !ok || scene == nil {
		return nil, nil, fmt.Errorf("%w: no scene for context %s", ErrReuseMismatch, group.ContextKey())
	}
	if scene.Duration <= 0 {
		return nil, nil, fmt.Errorf("%w: scene %s has no duration", ErrReuseMismatch, scene.Path)
	}

	for _, member := range group.Members {
		if err := c.ensureTranslation(ctx, member, lang); err != nil {
			return nil, nil, err
		}
	}

	seqs, memberFails, err := c.composer.ComposeGroup(ctx, group, scene, lang)
	if err != nil {
		return nil, nil, err
	}
	fails := make([]ExpressionFailure, 0, len(memberFails))
	for _, mf := range memberFails {
		fails = append(fails, ExpressionFailure{
			Index:      mf.Expression.Index,
			Expression: mf.Expression.Expression,
			ContextKey: group.ContextKey(),
			Err:        mf.Err,
		})
	}
	return seqs, fails, nil
}

// ensureTranslation fills in the language payload unless it already
// exists. The analysis language is covered by the analyzer itself, so it
// short-circuits without a translator call.
func (c *Coordinator) ensureTranslation(ctx context.Context, member *expression.Analysis, lang string) error {
	if _, ok := member.Translation(lang); ok {
		return nil
	}
	if lang == c.opts.AnalysisLanguage {
		// the analyzer normally covers this; fall through to the
		// translator only when its record lacked the payload
		log.Debug("expression %d missing its analysis-language payload, translating", member.Index)
	}
	if c.translator == nil {
		return fmt.Errorf("no translator configured and expression %d lacks %s", member.Index, lang)
	}

	tr, err := c.translator.Translate(ctx, member, lang)
	if err != nil {
		return fmt.Errorf("translation of expression %d to %s failed: %w", member.Index, lang, err)
	}
	if err := member.AddTranslation(lang, tr); err != nil {
		// another pass won the race; the stored payload wins
		log.Debug("translation race on expression %d lang %s: %v", member.Index, lang, err)
	}
	return nil
}
