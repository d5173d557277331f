package langreuse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/expression"
)

// ChatClient is the LLM boundary the translator needs
type ChatClient interface {
	SimpleChat(ctx context.Context, prompt string, systemPrompt string) (string, error)
}

// LLMTranslator translates one expression's teaching payload with an LLM
type LLMTranslator struct {
	client ChatClient
}

// NewLLMTranslator creates a translator backed by a chat client
func NewLLMTranslator(client ChatClient) *LLMTranslator {
	return &LLMTranslator{client: client}
}

type translationResponse struct {
	DialogueLines   []string `json:"dialogue_lines"`
	Expression      string   `json:"expression"`
	ContextDialogue string   `json:"context_dialogue"`
	Keywords        []string `json:"keywords"`
}

// Translate produces the payload for one language
func (t *LLMTranslator) Translate(ctx context.Context, a *expression.Analysis, lang string) (expression.Translation, error) {
	content, err := t.client.SimpleChat(ctx, t.buildPrompt(a, lang), t.systemPrompt(lang))
	if err != nil {
		return expression.Translation{}, fmt.Errorf("translation request failed: %w", err)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return expression.Translation{}, fmt.Errorf("no JSON object in translation output")
	}

	var resp translationResponse
	if err := json.Unmarshal([]byte(content[start:end+1]), &resp); err != nil {
		return expression.Translation{}, fmt.Errorf("invalid translation JSON: %w", err)
	}
	if resp.Expression == "" {
		return expression.Translation{}, fmt.Errorf("translation output has no expression")
	}

	return expression.Translation{
		DialogueLines:   resp.DialogueLines,
		Expression:      resp.Expression,
		ContextDialogue: resp.ContextDialogue,
		Keywords:        resp.Keywords,
	}, nil
}

func (t *LLMTranslator) systemPrompt(lang string) string {
	var prompt strings.Builder
	prompt.WriteString("You are a professional subtitle translator. ")
	prompt.WriteString(fmt.Sprintf("Translate English teaching material into %s, keeping the tone of the scene.\n", lang))
	prompt.WriteString("Return ONLY a JSON object: ")
	prompt.WriteString(`{"dialogue_lines": ["..."], "expression": "...", "context_dialogue": "...", "keywords": ["..."]}`)
	return prompt.String()
}

func (t *LLMTranslator) buildPrompt(a *expression.Analysis, lang string) string {
	var prompt strings.Builder
	prompt.WriteString(fmt.Sprintf("Expression: %s\n", a.Expression))
	if len(a.DialogueLines) > 0 {
		prompt.WriteString("Dialogue:\n")
		for _, line := range a.DialogueLines {
			prompt.WriteString("  " + line + "\n")
		}
	}
	if len(a.Keywords) > 0 {
		prompt.WriteString(fmt.Sprintf("Keywords: %s\n", strings.Join(a.Keywords, ", ")))
	}
	prompt.WriteString(fmt.Sprintf("Target language: %s\n", lang))
	return prompt.String()
}
