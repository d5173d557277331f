package persistence

import "time"

// Run is one recorded pipeline execution
type Run struct {
	ID         string
	JobID      string
	MediaFile  string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// ClipRecord is one finished (or failed) clip of a run
type ClipRecord struct {
	RunID      string
	ContextKey string
	Index      int
	Expression string
	Language   string
	OutputPath string
	Duration   time.Duration
	Status     string
	Error      string
	CreatedAt  time.Time
}
