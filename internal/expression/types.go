package expression

import (
	"fmt"
	"sync"
	"time"
)

// SceneType categorizes the dramatic flavor of a context window
type SceneType string

const (
	SceneHumor    SceneType = "humor"
	SceneDrama    SceneType = "drama"
	SceneTension  SceneType = "tension"
	SceneRomance  SceneType = "romance"
	SceneConflict SceneType = "conflict"
	SceneDaily    SceneType = "daily"
	SceneUnknown  SceneType = "unknown"
)

// ParseSceneType maps free-form analysis output onto a known scene type
func ParseSceneType(s string) SceneType {
	switch SceneType(s) {
	case SceneHumor, SceneDrama, SceneTension, SceneRomance, SceneConflict, SceneDaily:
		return SceneType(s)
	default:
		return SceneUnknown
	}
}

// Translation holds the per-language payload for one expression.
// Populated once per language and never mutated afterwards.
type Translation struct {
	DialogueLines   []string
	Expression      string
	ContextDialogue string
	Keywords        []string
}

// Analysis is one extracted expression plus its context window.
// Timing fields are immutable after creation; translations are additive only.
type Analysis struct {
	Expression string
	Index      int // stable index within the episode

	ContextStart    time.Duration
	ContextEnd      time.Duration
	ExpressionStart time.Duration
	ExpressionEnd   time.Duration

	DialogueLines      []string
	Scene              SceneType
	Difficulty         int
	SimilarExpressions []string
	Keywords           []string

	mu           sync.RWMutex
	translations map[string]Translation
}

// AddTranslation records the payload for a language. A language key is
// write-once: a second call for the same language is rejected.
func (a *Analysis) AddTranslation(lang string, t Translation) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.translations == nil {
		a.translations = make(map[string]Translation)
	}
	if _, exists := a.translations[lang]; exists {
		return fmt.Errorf("translation for language %q already set on expression %d", lang, a.Index)
	}
	a.translations[lang] = t
	return nil
}

// Translation returns the payload previously recorded for lang
func (a *Analysis) Translation(lang string) (Translation, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.translations[lang]
	return t, ok
}

// Languages lists the language codes a payload exists for
func (a *Analysis) Languages() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	langs := make([]string, 0, len(a.translations))
	for lang := range a.translations {
		langs = append(langs, lang)
	}
	return langs
}

// ExpressionDuration is the length of the expression window
func (a *Analysis) ExpressionDuration() time.Duration {
	return a.ExpressionEnd - a.ExpressionStart
}

// RelativeWindow returns the expression bounds relative to ContextStart.
// Extraction from an already-sliced context asset must use these offsets,
// never the absolute episode timestamps, because the sliced asset's
// timeline restarts at zero.
func (a *Analysis) RelativeWindow() (start, end time.Duration) {
	return a.ExpressionStart - a.ContextStart, a.ExpressionEnd - a.ContextStart
}

// Group is one or more analyses sharing the same context window, so the
// scene is sliced and subtitled once for all of them.
type Group struct {
	ContextStart time.Duration
	ContextEnd   time.Duration
	Members      []*Analysis
}

// ContextKey identifies the group's context window. Reuse caches are keyed
// by this identity together with a language code, never by derived names.
func (g *Group) ContextKey() string {
	return ContextKey(g.ContextStart, g.ContextEnd)
}

// ContextKey builds the identity key for a context window
func ContextKey(start, end time.Duration) string {
	return fmt.Sprintf("%d-%d", start.Milliseconds(), end.Milliseconds())
}

// ContextDuration is the length of the shared scene
func (g *Group) ContextDuration() time.Duration {
	return g.ContextEnd - g.ContextStart
}

// GroupByContext buckets analyses by identical context bounds, preserving
// first-seen order of the windows and member order inside each window.
func GroupByContext(analyses []*Analysis) []*Group {
	var groups []*Group
	byKey := make(map[string]*Group)

	for _, a := range analyses {
		if a == nil {
			continue
		}
		key := ContextKey(a.ContextStart, a.ContextEnd)
		g, ok := byKey[key]
		if !ok {
			g = &Group{ContextStart: a.ContextStart, ContextEnd: a.ContextEnd}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.Members = append(g.Members, a)
	}
	return groups
}
