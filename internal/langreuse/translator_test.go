package langreuse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taigi0315/study-english-with-suits-sub006/internal/expression"
)

type cannedChat struct {
	response string
	prompt   string
}

func (c *cannedChat) SimpleChat(_ context.Context, prompt, _ string) (string, error) {
	c.prompt = prompt
	return c.response, nil
}

func TestLLMTranslator_ParsesFencedJSON(t *testing.T) {
	chat := &cannedChat{response: "Sure:\n```json\n" +
		`{"expression": "역부족이야", "dialogue_lines": ["첫 줄"], "keywords": ["깊이"]}` +
		"\n```"}
	tr := NewLLMTranslator(chat)

	a := &expression.Analysis{Expression: "out of your depth", DialogueLines: []string{"first line"}, Keywords: []string{"depth"}}
	got, err := tr.Translate(context.Background(), a, "ko")
	require.NoError(t, err)
	require.Equal(t, "역부족이야", got.Expression)
	require.Equal(t, []string{"첫 줄"}, got.DialogueLines)

	require.Contains(t, chat.prompt, "out of your depth")
	require.Contains(t, chat.prompt, "Target language: ko")
}

func TestLLMTranslator_RejectsEmptyExpression(t *testing.T) {
	tr := NewLLMTranslator(&cannedChat{response: `{"dialogue_lines": []}`})

	_, err := tr.Translate(context.Background(), &expression.Analysis{Expression: "x"}, "ko")
	require.Error(t, err)
}

func TestLLMTranslator_RejectsProse(t *testing.T) {
	tr := NewLLMTranslator(&cannedChat{response: "I cannot translate this."})

	_, err := tr.Translate(context.Background(), &expression.Analysis{Expression: "x"}, "ko")
	require.Error(t, err)
}
