package expression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddTranslation_WriteOnce(t *testing.T) {
	a := &Analysis{Expression: "have it your way", Index: 3}

	require.NoError(t, a.AddTranslation("ko", Translation{Expression: "마음대로 해"}))
	err := a.AddTranslation("ko", Translation{Expression: "overwrite attempt"})
	require.Error(t, err)

	got, ok := a.Translation("ko")
	require.True(t, ok)
	require.Equal(t, "마음대로 해", got.Expression)

	// other languages remain additive
	require.NoError(t, a.AddTranslation("ja", Translation{Expression: "好きにして"}))
	require.ElementsMatch(t, []string{"ko", "ja"}, a.Languages())
}

func TestGroupByContext(t *testing.T) {
	mk := func(expr string, cs, ce time.Duration) *Analysis {
		return &Analysis{Expression: expr, ContextStart: cs, ContextEnd: ce}
	}

	a1 := mk("one", 10*time.Second, 25*time.Second)
	a2 := mk("two", 30*time.Second, 40*time.Second)
	a3 := mk("three", 10*time.Second, 25*time.Second)

	groups := GroupByContext([]*Analysis{a1, a2, a3})
	require.Len(t, groups, 2)

	require.Len(t, groups[0].Members, 2)
	require.Equal(t, "one", groups[0].Members[0].Expression)
	require.Equal(t, "three", groups[0].Members[1].Expression)
	require.Len(t, groups[1].Members, 1)

	// identical bounds yield identical identity keys
	require.Equal(t, groups[0].ContextKey(), ContextKey(a3.ContextStart, a3.ContextEnd))
	require.NotEqual(t, groups[0].ContextKey(), groups[1].ContextKey())
}

func TestGroup_ContextDuration(t *testing.T) {
	g := &Group{ContextStart: 10 * time.Second, ContextEnd: 25 * time.Second}
	require.Equal(t, 15*time.Second, g.ContextDuration())
}
