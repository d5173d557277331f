// langclips compiles TV episodes into short language-learning clips.
//
// One-shot mode processes a single episode:
//
//	langclips -video episode.mkv -subtitle episode.srt -languages ko,ja
//
// Watch mode scans media directories on a schedule and queues every new
// episode that has a sibling subtitle track:
//
//	langclips -watch
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/analyzer"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/composer"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/config"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/jobs"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/langreuse"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/llm"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/media"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/persistence"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/pipeline"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/tts"
	"github.com/taigi0315/study-english-with-suits-sub006/pkg/file"
	"github.com/taigi0315/study-english-with-suits-sub006/pkg/log"
)

func main() {
	_ = godotenv.Load()

	video := flag.String("video", "", "video file to process (one-shot mode)")
	subtitleFile := flag.String("subtitle", "", "subtitle file (default: sibling .srt of -video)")
	languages := flag.String("languages", "", "comma-separated target languages (overrides TARGET_LANGUAGES)")
	format := flag.String("format", "", "output format: long or short (overrides OUTPUT_FORMAT)")
	watch := flag.Bool("watch", false, "watch media directories on a cron schedule")
	title := flag.String("title", "", "show title passed to the analysis prompt")
	flag.Parse()

	cfg, err := config.NewFromEnv(func(c *config.Config) {
		if *languages != "" {
			c.Pipeline.TargetLanguages = splitList(*languages)
		}
		if *format != "" {
			c.Pipeline.OutputFormat = *format
		}
	})
	if err != nil {
		log.Error("configuration error: %v", err)
		os.Exit(1)
	}

	enc := media.NewFFmpeg(media.FFmpegOptions{
		Padding: time.Duration(cfg.Pipeline.BufferToleranceMs) * time.Millisecond,
	})
	if err := enc.Check(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}

	store, err := persistence.NewSQLiteStore(cfg.State.DBPath)
	if err != nil {
		log.Error("failed to open state store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	p, err := buildPipeline(cfg, enc, store)
	if err != nil {
		log.Error("failed to build pipeline: %v", err)
		os.Exit(1)
	}

	if *watch {
		runWatch(cfg, p, store)
		return
	}

	if *video == "" {
		log.Error("either -video or -watch is required")
		flag.Usage()
		os.Exit(2)
	}
	sub := *subtitleFile
	if sub == "" {
		sub = file.Sibling(*video, ".srt")
		if sub == "" {
			log.Error("no subtitle file found next to %s, pass -subtitle", *video)
			os.Exit(1)
		}
	}

	result, err := p.Run(context.Background(), *video, sub, analyzer.EpisodeMeta{Title: *title})
	if err != nil {
		log.Error("run failed: %v", err)
		os.Exit(1)
	}
	log.Info("done: %d expressions, %d clips in %s", result.Expressions, result.ClipCount(), cfg.Pipeline.OutputDir)
	for _, fail := range result.Failures {
		log.Warn("expression %d (%s) produced no clip: %s", fail.Index, fail.Language, fail.Reason)
	}
	for lang, cause := range result.LanguageErrors {
		log.Warn("language %s produced nothing: %v", lang, cause)
	}
}

func buildPipeline(cfg *config.Config, enc media.Encoder, store *persistence.SQLiteStore) (*pipeline.Pipeline, error) {
	llmClient, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, err
	}

	narrator, err := tts.NewClient(&tts.Config{
		APIKey:  cfg.TTS.APIKey,
		APIURL:  cfg.TTS.APIURL,
		Voice:   cfg.TTS.Voice,
		Timeout: cfg.TTS.Timeout,
	})
	if err != nil {
		return nil, err
	}

	return pipeline.New(
		enc,
		llmClient,
		narrator,
		langreuse.NewLLMTranslator(llmClient),
		store,
		pipeline.Config{
			WorkDir:          cfg.Pipeline.WorkDir,
			OutputDir:        cfg.Pipeline.OutputDir,
			Languages:        cfg.Pipeline.TargetLanguages,
			AnalysisLanguage: cfg.Pipeline.AnalysisLanguage,
			MaxConcurrency:   cfg.Pipeline.MaxConcurrency,
			TaskTimeout:      time.Duration(cfg.Pipeline.TaskTimeoutSec) * time.Second,
			MaxBatchDuration: time.Duration(cfg.Pipeline.MaxBatchMinutes) * time.Minute,
			Composer: composer.Config{
				RepeatCount:        cfg.Pipeline.RepeatCount,
				RepeatGap:          time.Duration(cfg.Pipeline.RepeatGapMs) * time.Millisecond,
				TailPadding:        time.Duration(cfg.Pipeline.TailPaddingMs) * time.Millisecond,
				TransitionDuration: time.Duration(cfg.Pipeline.TransitionMs) * time.Millisecond,
				Format:             composer.Format(cfg.Pipeline.OutputFormat),
				ShortLayout:        composer.ShortLayout(cfg.Pipeline.ShortLayout),
			},
		},
	)
}

func runWatch(cfg *config.Config, p *pipeline.Pipeline, store *persistence.SQLiteStore) {
	if len(cfg.Watch.MediaDirs) == 0 {
		log.Error("MEDIA_DIRS is required for watch mode")
		os.Exit(1)
	}

	queue := jobs.NewQueue(cfg.State.JobWorkers, store)
	queue.Start(func(ctx context.Context, job *jobs.EpisodeJob) error {
		_, err := p.Run(ctx, job.Payload.MediaFile, job.Payload.SubtitleFile, analyzer.EpisodeMeta{})
		return err
	})

	c := cron.New()
	scanner := pipeline.NewScanner(pipeline.ScanConfig{
		MediaDirs: cfg.Watch.MediaDirs,
		CronExpr:  cfg.Watch.CronExpr,
		Languages: cfg.Pipeline.TargetLanguages,
		Format:    cfg.Pipeline.OutputFormat,
	}, queue, c)

	if err := scanner.Schedule(); err != nil {
		log.Error("failed to schedule scan: %v", err)
		os.Exit(1)
	}
	scanner.ScanOnce()
	c.Start()
	log.Info("watching %s on schedule %q", strings.Join(cfg.Watch.MediaDirs, ", "), cfg.Watch.CronExpr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info("shutting down")
	<-c.Stop().Done()
	queue.Stop()
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	ret := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ret = append(ret, trimmed)
		}
	}
	return ret
}
