package pipeline

import (
	"time"
)

// ClipResult is the outcome of one expression in one language
type ClipResult struct {
	Index      int
	Expression string
	ContextKey string
	Language   string
	OutputPath string
	Duration   time.Duration
}

// ClipFailure is one expression that produced no clip in one language
type ClipFailure struct {
	Index      int
	Expression string
	ContextKey string
	Language   string
	Reason     string
}

// RunResult summarizes one episode run. A run succeeds as long as at
// least one clip was produced; per-expression and per-language failures
// are reported here without failing the run.
type RunResult struct {
	RunID       string
	Expressions int
	Clips       []ClipResult
	// Failures lists every expression that produced no clip in a
	// language whose pass otherwise succeeded, with its reason.
	Failures []ClipFailure
	// BatchOutputs lists concatenated batch files per language, when
	// batching was requested.
	BatchOutputs map[string][]string
	// LanguageErrors holds the failure of each language whose pass
	// produced nothing.
	LanguageErrors map[string]error
}

// ClipCount is the number of finished clips across all languages
func (r *RunResult) ClipCount() int {
	return len(r.Clips)
}
