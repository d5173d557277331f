package jobs

import "time"

// Status is the lifecycle state of an episode job
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Payload names the inputs of one episode run
type Payload struct {
	MediaFile    string   `json:"media_file"`
	SubtitleFile string   `json:"subtitle_file"`
	Languages    []string `json:"languages"`
	Format       string   `json:"format,omitempty"`
}

// EnqueueRequest asks the queue for one episode run. DedupeKey collapses
// repeated submissions of the same episode while one is still in flight.
type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   Payload
}

// EpisodeJob is one queued episode-to-clips run
type EpisodeJob struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	DedupeKey string    `json:"dedupe_key"`
	Payload   Payload   `json:"payload"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
