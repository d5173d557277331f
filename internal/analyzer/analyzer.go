// Package analyzer drives the LLM analysis collaborator over chunked
// subtitle lines and turns its raw records into validated expression
// analyses.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/expression"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/scheduler"
	"github.com/taigi0315/study-english-with-suits-sub006/internal/subtitle"
	"github.com/taigi0315/study-english-with-suits-sub006/pkg/log"
)

// Analyzer extracts teachable expressions from an episode's subtitles
type Analyzer struct {
	client ChatClient
	opts   Options
}

// New creates an analyzer with defaults filled in
func New(client ChatClient, opts Options) *Analyzer {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 50
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.TaskTimeoutSec <= 0 {
		opts.TaskTimeoutSec = 180
	}
	return &Analyzer{client: client, opts: opts}
}

// AnalyzeEpisode fans one analysis task per subtitle chunk out under the
// scheduler's concurrency ceiling and resolves every returned record
// against the episode's timed lines. A failed chunk contributes an empty
// result and never poisons its siblings.
func (a *Analyzer) AnalyzeEpisode(
	ctx context.Context,
	file *subtitle.File,
	meta EpisodeMeta,
) ([]*expression.Analysis, error) {
	if file == nil || len(file.Lines) == 0 {
		return nil, fmt.Errorf("no subtitle lines to analyze")
	}

	chunks := subtitle.ChunkLines(file.Lines, a.opts.ChunkSize, a.opts.ChunkOverlap)
	log.Info("analyzing %d lines in %d chunks", len(file.Lines), len(chunks))

	tasks := make([]scheduler.Task[[]expression.Raw], len(chunks))
	for i, chunk := range chunks {
		chunk := chunk
		tasks[i] = scheduler.Task[[]expression.Raw]{
			Name: fmt.Sprintf("analyze-chunk-%d", i),
			Run: func(taskCtx context.Context) ([]expression.Raw, error) {
				return a.analyzeChunk(taskCtx, chunk, meta)
			},
		}
	}

	results := scheduler.Run(ctx, tasks, scheduler.Options{
		MaxConcurrency: a.opts.MaxConcurrency,
		TaskTimeout:    time.Duration(a.opts.TaskTimeoutSec) * time.Second,
	})

	var raws []expression.Raw
	for _, res := range results {
		if res.Failed() {
			log.Warn("chunk analysis %s failed, skipping its window: %v", res.Name, res.Err)
			continue
		}
		raws = append(raws, res.Value...)
	}

	raws = dedupe(raws)

	analyses, err := expression.ResolveAll(raws, file.Lines)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve analysis output: %w", err)
	}
	log.Info("resolved %d expressions from %d raw records", len(analyses), len(raws))
	return analyses, nil
}

// analyzeChunk runs one chunk through the collaborator and maps chunk-
// local line indices back to episode positions via the chunk's base index.
func (a *Analyzer) analyzeChunk(
	ctx context.Context,
	chunk subtitle.Chunk,
	meta EpisodeMeta,
) ([]expression.Raw, error) {
	content, err := a.client.SimpleChat(ctx, a.buildUserPrompt(chunk), a.buildSystemPrompt(meta))
	if err != nil {
		return nil, fmt.Errorf("chunk analysis failed: %w", err)
	}

	records, err := parseRecords(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse analysis output: %w", err)
	}

	raws := make([]expression.Raw, 0, len(records))
	for _, rec := range records {
		raws = append(raws, rec.toRaw(chunk.BaseIndex, a.opts.TargetLanguage))
	}
	return raws, nil
}

func (rec record) toRaw(baseIndex int, targetLang string) expression.Raw {
	raw := expression.Raw{
		Expression:             rec.Expression,
		ContextStartSeconds:    rec.ContextStart,
		ContextEndSeconds:      rec.ContextEnd,
		ExpressionStartSeconds: rec.ExpressionStart,
		ExpressionEndSeconds:   rec.ExpressionEnd,
		DialogueLines:          rec.DialogueLines,
		Scene:                  rec.SceneType,
		Difficulty:             rec.Difficulty,
		SimilarExpressions:     rec.SimilarExpressions,
		Keywords:               rec.Keywords,
	}

	if rec.FirstLine != nil && rec.LastLine != nil {
		raw.IndexBased = true
		raw.FirstLine = *rec.FirstLine + baseIndex
		raw.LastLine = *rec.LastLine + baseIndex
	}

	if targetLang != "" && rec.TranslatedExpression != "" {
		raw.TranslationLang = targetLang
		raw.Translation = &expression.Translation{
			DialogueLines:   rec.TranslatedDialogueLines,
			Expression:      rec.TranslatedExpression,
			ContextDialogue: rec.TranslatedContextDialogue,
			Keywords:        rec.TranslatedKeywords,
		}
	}
	return raw
}

// parseRecords tolerates markdown fencing around the JSON array
func parseRecords(content string) ([]record, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in analysis output")
	}

	var records []record
	if err := json.Unmarshal([]byte(content[start:end+1]), &records); err != nil {
		return nil, fmt.Errorf("invalid analysis JSON: %w", err)
	}
	return records, nil
}

// dedupe collapses duplicates that chunk overlap produces. Identity is the
// expression text plus its timing reference, never a sanitized name.
func dedupe(raws []expression.Raw) []expression.Raw {
	seen := make(map[string]bool, len(raws))
	out := make([]expression.Raw, 0, len(raws))
	for _, raw := range raws {
		var key string
		if raw.IndexBased {
			key = fmt.Sprintf("%s|%d-%d", raw.Expression, raw.FirstLine, raw.LastLine)
		} else {
			key = fmt.Sprintf("%s|%.3f-%.3f", raw.Expression, raw.ContextStartSeconds, raw.ContextEndSeconds)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, raw)
	}
	return out
}

func (a *Analyzer) buildSystemPrompt(meta EpisodeMeta) string {
	var prompt strings.Builder

	prompt.WriteString("You are an English teacher who mines TV dialogue for idiomatic expressions worth teaching. ")
	prompt.WriteString("Select short expressions a learner should master, with the scene that makes them memorable.\n\n")

	prompt.WriteString("=== EPISODE INFORMATION ===\n")
	if meta.Title != "" {
		prompt.WriteString(fmt.Sprintf("Show Title: %s\n", meta.Title))
	}
	if meta.Season > 0 {
		prompt.WriteString(fmt.Sprintf("Season %d, Episode %d\n", meta.Season, meta.Episode))
	}
	if len(meta.Genre) > 0 {
		prompt.WriteString(fmt.Sprintf("Genre: %s\n", strings.Join(meta.Genre, ", ")))
	}
	if meta.Plot != "" {
		prompt.WriteString(fmt.Sprintf("Plot Summary: %s\n", meta.Plot))
	}

	prompt.WriteString("\n=== SELECTION GUIDELINES ===\n")
	prompt.WriteString("1. Pick 1-4 idiomatic expressions per chunk; skip chunks with nothing teachable\n")
	prompt.WriteString("2. The context window must cover the full exchange around the expression\n")
	prompt.WriteString("3. expression_start/expression_end are absolute seconds and must lie inside the context window\n")
	if a.opts.TargetLanguage != "" {
		prompt.WriteString(fmt.Sprintf("4. Provide translated_* fields in %s\n", a.opts.TargetLanguage))
	}

	prompt.WriteString("\n=== OUTPUT FORMAT ===\n")
	prompt.WriteString("Return ONLY a JSON array. Each element:\n")
	prompt.WriteString(`{"expression": "...", "first_line": 0, "last_line": 3, "expression_start": 14.0, "expression_end": 16.5, ` +
		`"dialogue_lines": ["..."], "scene_type": "humor|drama|tension|romance|conflict|daily", "difficulty": 1, ` +
		`"similar_expressions": ["..."], "keywords": ["..."], "translated_dialogue_lines": ["..."], ` +
		`"translated_expression": "...", "translated_context_dialogue": "...", "translated_keywords": ["..."]}` + "\n")
	prompt.WriteString("first_line/last_line are indices into the numbered lines of this chunk.\n")

	return prompt.String()
}

func (a *Analyzer) buildUserPrompt(chunk subtitle.Chunk) string {
	var prompt strings.Builder
	prompt.WriteString("Subtitle lines:\n")
	for i, line := range chunk.Lines {
		prompt.WriteString(fmt.Sprintf("[%d] (%.2f - %.2f) %s\n",
			i, line.StartTime.Seconds(), line.EndTime.Seconds(),
			strings.ReplaceAll(line.Text, "\n", " ")))
	}
	return prompt.String()
}
