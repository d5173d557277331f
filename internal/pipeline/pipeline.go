// Package pipeline orchestrates one episode end to end: parse the
// subtitle track, mine expressions, slice the shared scenes, then fan the
// composition out across every target language.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/analyzer"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/composer"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/expression"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/langreuse"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/media"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/persistence"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/scheduler"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/subtitle"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/workdir"
	"github.com/taigi0315/study-english-with-suits-sub006/pkg/log"
)

// Recorder persists run progress. Optional; a nil recorder disables
// persistence without changing behavior.
type Recorder interface {
	StartRun(ctx context.Context, run persistence.Run) error
	FinishRun(ctx context.Context, runID, status, errMsg string) error
	SaveClip(ctx context.Context, rec persistence.ClipRecord) error
}

// Config tunes one pipeline instance
type Config struct {
	WorkDir   string
	OutputDir string

	Languages        []string
	AnalysisLanguage string

	MaxConcurrency int
	TaskTimeout    time.Duration

	// MaxBatchDuration enables per-language batch files when positive
	MaxBatchDuration time.Duration

	Analyzer analyzer.Options
	Composer composer.Config
}

// Pipeline wires the collaborators of an episode run. Create once, run
// many episodes; every run gets its own working directory.
type Pipeline struct {
	enc        media.Encoder
	chat       analyzer.ChatClient
	narrator   composer.Narrator
	translator langreuse.Translator
	recorder   Recorder
	cfg        Config
}

// New creates a pipeline
func New(
	enc media.Encoder,
	chat analyzer.ChatClient,
	narrator composer.Narrator,
	translator langreuse.Translator,
	recorder Recorder,
	cfg Config,
) (*Pipeline, error) {
	if enc == nil {
		return nil, NewError(KindConfig, "encoder is required")
	}
	if chat == nil {
		return nil, NewError(KindConfig, "chat client is required")
	}
	if narrator == nil {
		return nil, NewError(KindConfig, "narrator is required")
	}
	if len(cfg.Languages) == 0 {
		return nil, NewError(KindConfig, "at least one target language is required")
	}
	if cfg.OutputDir == "" {
		return nil, NewError(KindConfig, "output directory is required")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	cfg.Analyzer.TargetLanguage = cfg.AnalysisLanguage
	return &Pipeline{
		enc:        enc,
		chat:       chat,
		narrator:   narrator,
		translator: translator,
		recorder:   recorder,
		cfg:        cfg,
	}, nil
}

// Run compiles one episode into learning clips for every configured
// language. Intermediates live in a run-scoped working directory that is
// removed on every outcome; only files under OutputDir survive.
func (p *Pipeline) Run(ctx context.Context, mediaFile, subtitleFile string, meta analyzer.EpisodeMeta) (*RunResult, error) {
	if err := p.validateInputs(mediaFile, subtitleFile); err != nil {
		return nil, err
	}

	runID := uuid.NewString()[:8]
	wd, err := workdir.New(p.cfg.WorkDir, runID)
	if err != nil {
		return nil, WrapError(err, KindConfig, "failed to create working directory")
	}
	defer wd.Cleanup()

	p.recordStart(ctx, runID, mediaFile)
	result, err := p.run(ctx, runID, wd, mediaFile, subtitleFile, meta)
	p.recordFinish(ctx, runID, err)
	return result, err
}

func (p *Pipeline) run(
	ctx context.Context,
	runID string,
	wd *workdir.Manager,
	mediaFile, subtitleFile string,
	meta analyzer.EpisodeMeta,
) (*RunResult, error) {
	subs, err := subtitle.NewReader(subtitleFile).Read()
	if err != nil {
		return nil, WrapError(err, KindValidation, "failed to read subtitle track").WithContext("path", subtitleFile)
	}
	log.Info("run %s: %d subtitle lines, detected language %s", runID, len(subs.Lines), subs.Language)

	analyses, err := analyzer.New(p.chat, p.cfg.Analyzer).AnalyzeEpisode(ctx, subs, meta)
	if err != nil {
		return nil, WrapError(err, KindAnalysis, "episode analysis failed")
	}
	result := &RunResult{RunID: runID, Expressions: len(analyses), LanguageErrors: make(map[string]error)}
	if len(analyses) == 0 {
		log.Info("run %s: no teachable expressions found", runID)
		return result, nil
	}

	groups := expression.GroupByContext(analyses)
	scenes := p.sliceScenes(ctx, wd, mediaFile, groups)
	if len(scenes) == 0 {
		return nil, NewError(KindEncoder, "no scene could be sliced").WithContext("groups", len(groups))
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, WrapError(err, KindConfig, "failed to create output directory")
	}

	composerCfg := p.cfg.Composer
	composerCfg.OutputDir = p.cfg.OutputDir
	comp := composer.New(p.enc, wd, p.narrator, subs, composerCfg)

	coord := langreuse.New(comp, p.translator, langreuse.Options{
		AnalysisLanguage: p.cfg.AnalysisLanguage,
		MaxConcurrency:   p.cfg.MaxConcurrency,
		TaskTimeout:      p.cfg.TaskTimeout,
	})

	langResults := coord.FanOut(ctx, groups, scenes, p.cfg.Languages)
	for _, lr := range langResults {
		if lr.Err != nil {
			log.Error("run %s: language %s failed (%s): %v", runID, lr.Language, Classify(lr.Err), lr.Err)
			result.LanguageErrors[lr.Language] = lr.Err
			p.recordLanguageFailure(ctx, runID, lr.Language, lr.Err)
			continue
		}
		for _, seq := range lr.Sequences {
			clip := ClipResult{
				Index:      seq.Expression.Index,
				Expression: seq.Expression.Expression,
				ContextKey: expression.ContextKey(seq.Expression.ContextStart, seq.Expression.ContextEnd),
				Language:   lr.Language,
				OutputPath: seq.OutputPath,
				Duration:   seq.Duration,
			}
			result.Clips = append(result.Clips, clip)
			p.recordClip(ctx, runID, clip)
		}
		for _, fail := range lr.Failures {
			failure := ClipFailure{
				Index:      fail.Index,
				Expression: fail.Expression,
				ContextKey: fail.ContextKey,
				Language:   lr.Language,
				Reason:     fail.Err.Error(),
			}
			log.Warn("run %s: expression %d (%s) produced no clip: %s", runID, failure.Index, failure.Language, failure.Reason)
			result.Failures = append(result.Failures, failure)
			p.recordClipFailure(ctx, runID, failure)
		}
	}

	if len(result.Clips) == 0 {
		return result, NewError(KindUnknown, "every language pass failed").WithContext("languages", len(p.cfg.Languages))
	}

	if p.cfg.MaxBatchDuration > 0 {
		result.BatchOutputs = p.writeBatches(ctx, comp, langResults)
	}

	log.Info("run %s: %d clips across %d languages", runID, len(result.Clips), len(p.cfg.Languages))
	return result, nil
}

// sliceScenes cuts every group's context window from the source exactly
// once, under the scheduler's ceiling. A failed slice drops its group with
// a warning; the surviving groups still run.
func (p *Pipeline) sliceScenes(
	ctx context.Context,
	wd *workdir.Manager,
	mediaFile string,
	groups []*expression.Group,
) map[string]*media.Asset {
	slicer := media.NewSlicer(p.enc, wd, p.cfg.MaxConcurrency)

	tasks := make([]scheduler.Task[*media.Asset], len(groups))
	for i, group := range groups {
		group := group
		tasks[i] = scheduler.Task[*media.Asset]{
			Name: "slice-" + group.ContextKey(),
			Run: func(taskCtx context.Context) (*media.Asset, error) {
				return slicer.Slice(taskCtx, mediaFile, group.ContextKey(), group.ContextStart, group.ContextDuration())
			},
		}
	}

	results := scheduler.Run(ctx, tasks, scheduler.Options{
		MaxConcurrency: p.cfg.MaxConcurrency,
		TaskTimeout:    p.cfg.TaskTimeout,
	})

	scenes := make(map[string]*media.Asset, len(groups))
	for i, res := range results {
		if res.Failed() {
			log.Warn("scene %s failed, its expressions are skipped: %v", groups[i].ContextKey(), res.Err)
			continue
		}
		scenes[groups[i].ContextKey()] = res.Value
	}
	return scenes
}

// writeBatches concatenates each language's clips into batch files capped
// at MaxBatchDuration. Batch failures never fail the run; the individual
// clips already exist.
func (p *Pipeline) writeBatches(ctx context.Context, comp *composer.Composer, langResults []langreuse.LanguageResult) map[string][]string {
	out := make(map[string][]string)
	for _, lr := range langResults {
		if lr.Err != nil || len(lr.Sequences) == 0 {
			continue
		}
		batches := composer.BatchSequences(lr.Sequences, p.cfg.MaxBatchDuration)
		for i, batch := range batches {
			path := filepath.Join(p.cfg.OutputDir, fmt.Sprintf("batch-%s-%02d.mp4", lr.Language, i+1))
			if err := comp.WriteBatch(ctx, batch, path); err != nil {
				log.Warn("batch %s failed: %v", path, err)
				continue
			}
			out[lr.Language] = append(out[lr.Language], path)
		}
	}
	return out
}

func (p *Pipeline) validateInputs(mediaFile, subtitleFile string) error {
	if _, err := os.Stat(mediaFile); err != nil {
		return WrapError(err, KindValidation, "media file is not readable").WithContext("path", mediaFile)
	}
	if _, err := os.Stat(subtitleFile); err != nil {
		return WrapError(err, KindValidation, "subtitle file is not readable").WithContext("path", subtitleFile)
	}
	return nil
}

func (p *Pipeline) recordStart(ctx context.Context, runID, mediaFile string) {
	if p.recorder == nil {
		return
	}
	err := p.recorder.StartRun(ctx, persistence.Run{
		ID:        runID,
		MediaFile: mediaFile,
		Status:    "running",
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Warn("failed to record run start: %v", err)
	}
}

func (p *Pipeline) recordFinish(ctx context.Context, runID string, runErr error) {
	if p.recorder == nil {
		return
	}
	status, msg := "success", ""
	if runErr != nil {
		status, msg = "failed", runErr.Error()
	}
	if err := p.recorder.FinishRun(ctx, runID, status, msg); err != nil {
		log.Warn("failed to record run finish: %v", err)
	}
}

func (p *Pipeline) recordClip(ctx context.Context, runID string, clip ClipResult) {
	if p.recorder == nil {
		return
	}
	err := p.recorder.SaveClip(ctx, persistence.ClipRecord{
		RunID:      runID,
		ContextKey: clip.ContextKey,
		Index:      clip.Index,
		Expression: clip.Expression,
		Language:   clip.Language,
		OutputPath: clip.OutputPath,
		Duration:   clip.Duration,
		Status:     "success",
	})
	if err != nil {
		log.Warn("failed to record clip %s: %v", clip.OutputPath, err)
	}
}

func (p *Pipeline) recordClipFailure(ctx context.Context, runID string, fail ClipFailure) {
	if p.recorder == nil {
		return
	}
	err := p.recorder.SaveClip(ctx, persistence.ClipRecord{
		RunID:      runID,
		ContextKey: fail.ContextKey,
		Index:      fail.Index,
		Expression: fail.Expression,
		Language:   fail.Language,
		Status:     "failed",
		Error:      fail.Reason,
	})
	if err != nil {
		log.Warn("failed to record expression failure: %v", err)
	}
}

func (p *Pipeline) recordLanguageFailure(ctx context.Context, runID, lang string, cause error) {
	if p.recorder == nil {
		return
	}
	err := p.recorder.SaveClip(ctx, persistence.ClipRecord{
		RunID:    runID,
		Language: lang,
		Status:   "failed",
		Error:    cause.Error(),
	})
	if err != nil {
		log.Warn("failed to record language failure: %v", err)
	}
}
