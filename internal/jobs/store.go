package jobs

import "context"

// Store persists job states so a restarted queue resumes where it left off.
type Store interface {
	LoadJobs(ctx context.Context) ([]*EpisodeJob, error)
	UpsertJob(ctx context.Context, job *EpisodeJob) error
	DeleteJob(ctx context.Context, jobID string) error
	// DeleteJobData removes auxiliary run data recorded for a job.
	DeleteJobData(ctx context.Context, jobID string) error
}
