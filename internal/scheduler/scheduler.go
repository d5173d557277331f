// Package scheduler runs homogeneous batches of tasks under a hard
// concurrency ceiling. Every task ultimately drives an external encoder or
// LLM call, so unbounded fan-out would exhaust CPU and memory.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/taigi0315/study-english-with-suits-sub006/pkg/log"
)

// Status is the lifecycle state of one task
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Task is one unit of scheduled work
type Task[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Result is the terminal outcome of one task. Results keep the submission
// order of their tasks, so slot i always belongs to tasks[i] regardless of
// completion order.
type Result[T any] struct {
	Name   string
	Status Status
	Value  T
	Err    error
}

// Failed reports whether the slot holds a failure
func (r Result[T]) Failed() bool {
	return r.Status == StatusFailed
}

// Options bound a batch run
type Options struct {
	// MaxConcurrency caps simultaneously running tasks. Zero or negative
	// falls back to DefaultConcurrency().
	MaxConcurrency int
	// TaskTimeout bounds a single task. Zero disables the timeout.
	TaskTimeout time.Duration
}

// DefaultConcurrency is half the core count, at least one. Each task spawns
// one external subprocess, so saturating every core starves the encoder.
func DefaultConcurrency() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}

// Run submits all tasks at once and blocks until every task reaches a
// terminal state. A failing task only marks its own slot; siblings are
// unaffected. Cancelling ctx stops further submissions and fails the
// remaining queued slots, while in-flight tasks run to completion or to
// their own timeout.
func Run[T any](ctx context.Context, tasks []Task[T], opts Options) []Result[T] {
	limit := opts.MaxConcurrency
	if limit <= 0 {
		limit = DefaultConcurrency()
	}

	results := make([]Result[T], len(tasks))
	for i, task := range tasks {
		results[i] = Result[T]{Name: task.Name, Status: StatusQueued}
	}

	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup

	for i, task := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			// run-level cancellation: refuse to submit what has not started
			results[i].Status = StatusFailed
			results[i].Err = fmt.Errorf("not submitted: %w", err)
			continue
		}

		wg.Add(1)
		go func(slot int, task Task[T]) {
			defer wg.Done()
			defer sem.Release(1)
			results[slot] = execute(ctx, task, opts.TaskTimeout)
		}(i, task)
	}

	wg.Wait()
	return results
}

// execute runs one task with its timeout and panic isolation. The timeout
// uses context deadlines, the native primitive of goroutine workers; there
// is no cooperative scheduler anywhere in this pipeline.
func execute[T any](ctx context.Context, task Task[T], timeout time.Duration) (res Result[T]) {
	res = Result[T]{Name: task.Name, Status: StatusRunning}

	defer func() {
		if r := recover(); r != nil {
			log.Error("task %s panicked: %v", task.Name, r)
			res = Result[T]{Name: task.Name, Status: StatusFailed, Err: fmt.Errorf("task panicked: %v", r)}
		}
	}()

	taskCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	value, err := task.Run(taskCtx)
	if err != nil {
		// attach the context error even when the task swallowed
		// cancellation and returned its own failure, so callers can always
		// match on the deadline
		if ctxErr := taskCtx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = errors.Join(err, ctxErr)
		}
		// no partial output is accepted on timeout
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("task %s timed out after %s: %w", task.Name, timeout, err)
		}
		return Result[T]{Name: task.Name, Status: StatusFailed, Err: err}
	}
	return Result[T]{Name: task.Name, Status: StatusSucceeded, Value: value}
}

// Succeeded extracts the successful values of a batch, preserving order
func Succeeded[T any](results []Result[T]) []T {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.Status == StatusSucceeded {
			out = append(out, r.Value)
		}
	}
	return out
}

// FailureCount counts the failed slots of a batch
func FailureCount[T any](results []Result[T]) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}
