package analyzer

import (
	"context"
)

// ChatClient is the LLM boundary the analyzer needs: one prompt in, one
// completion out. *llm.Client satisfies it.
type ChatClient interface {
	SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// EpisodeMeta carries show context handed to the analysis prompt
type EpisodeMeta struct {
	Title   string
	Season  int
	Episode int
	Genre   []string
	Plot    string
}

// record is the JSON contract with the analysis collaborator. A record
// references its context window either by chunk line indices (first_line/
// last_line) or by absolute seconds; expression bounds are always absolute
// seconds.
type record struct {
	Expression string `json:"expression"`

	FirstLine *int `json:"first_line,omitempty"`
	LastLine  *int `json:"last_line,omitempty"`

	ContextStart float64 `json:"context_start,omitempty"`
	ContextEnd   float64 `json:"context_end,omitempty"`

	ExpressionStart float64 `json:"expression_start"`
	ExpressionEnd   float64 `json:"expression_end"`

	DialogueLines      []string `json:"dialogue_lines,omitempty"`
	SceneType          string   `json:"scene_type"`
	Difficulty         int      `json:"difficulty"`
	SimilarExpressions []string `json:"similar_expressions,omitempty"`
	Keywords           []string `json:"keywords,omitempty"`

	TranslatedDialogueLines   []string `json:"translated_dialogue_lines,omitempty"`
	TranslatedExpression      string   `json:"translated_expression,omitempty"`
	TranslatedContextDialogue string   `json:"translated_context_dialogue,omitempty"`
	TranslatedKeywords        []string `json:"translated_keywords,omitempty"`
}

// Options tunes episode analysis
type Options struct {
	ChunkSize      int
	ChunkOverlap   int
	MaxConcurrency int
	TaskTimeoutSec int
	// TargetLanguage is the language the analysis itself translates into
	TargetLanguage string
}
