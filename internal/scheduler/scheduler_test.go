package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRun_AllSucceed(t *testing.T) {
	tasks := make([]Task[int], 10)
	for i := range tasks {
		n := i
		tasks[i] = Task[int]{
			Name: fmt.Sprintf("task-%d", n),
			Run:  func(context.Context) (int, error) { return n * 2, nil },
		}
	}

	results := Run(context.Background(), tasks, Options{MaxConcurrency: 4})
	require.Len(t, results, 10)
	for i, r := range results {
		require.Equal(t, StatusSucceeded, r.Status)
		require.Equal(t, i*2, r.Value)
	}
	require.Equal(t, 0, FailureCount(results))
}

func TestRun_ResultsKeepSubmissionOrder(t *testing.T) {
	// later tasks finish first; slots must still match submission order
	tasks := make([]Task[int], 5)
	for i := range tasks {
		n := i
		tasks[i] = Task[int]{
			Name: fmt.Sprintf("task-%d", n),
			Run: func(context.Context) (int, error) {
				time.Sleep(time.Duration(5-n) * 10 * time.Millisecond)
				return n, nil
			},
		}
	}

	results := Run(context.Background(), tasks, Options{MaxConcurrency: 5})
	for i, r := range results {
		require.Equal(t, i, r.Value)
	}
}

func TestRun_ConcurrencyCeiling(t *testing.T) {
	const ceiling = 3
	var running, peak int64

	tasks := make([]Task[struct{}], 20)
	for i := range tasks {
		tasks[i] = Task[struct{}]{
			Name: fmt.Sprintf("task-%d", i),
			Run: func(context.Context) (struct{}, error) {
				n := atomic.AddInt64(&running, 1)
				for {
					p := atomic.LoadInt64(&peak)
					if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt64(&running, -1)
				return struct{}{}, nil
			},
		}
	}

	Run(context.Background(), tasks, Options{MaxConcurrency: ceiling})
	require.LessOrEqual(t, atomic.LoadInt64(&peak), int64(ceiling))
	require.Greater(t, atomic.LoadInt64(&peak), int64(0))
}

func TestRun_PartialFailureIsIsolated(t *testing.T) {
	boom := errors.New("engineered failure")

	tasks := make([]Task[string], 5)
	for i := range tasks {
		n := i
		tasks[i] = Task[string]{
			Name: fmt.Sprintf("task-%d", n),
			Run: func(context.Context) (string, error) {
				if n == 2 { // task 3 fails
					return "", boom
				}
				return fmt.Sprintf("ok-%d", n), nil
			},
		}
	}

	results := Run(context.Background(), tasks, Options{MaxConcurrency: 2})
	require.Equal(t, 1, FailureCount(results))
	require.ErrorIs(t, results[2].Err, boom)
	require.Len(t, Succeeded(results), 4)
}

func TestRun_Timeout(t *testing.T) {
	tasks := []Task[int]{
		{
			Name: "slow",
			Run: func(ctx context.Context) (int, error) {
				select {
				case <-time.After(500 * time.Millisecond):
					return 1, nil
				case <-ctx.Done():
					return 0, ctx.Err()
				}
			},
		},
		{
			Name: "fast",
			Run:  func(context.Context) (int, error) { return 2, nil },
		},
	}

	results := Run(context.Background(), tasks, Options{MaxConcurrency: 2, TaskTimeout: 30 * time.Millisecond})
	require.Equal(t, StatusFailed, results[0].Status)
	require.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	require.Contains(t, results[0].Err.Error(), "timed out")
	require.Equal(t, StatusSucceeded, results[1].Status)
}

func TestRun_TimeoutTaggedWhenTaskReturnsOwnError(t *testing.T) {
	tasks := []Task[int]{
		{
			Name: "stubborn",
			Run: func(ctx context.Context) (int, error) {
				// waits out the deadline but reports its own failure
				// instead of ctx.Err()
				<-ctx.Done()
				return 0, errors.New("encoder exited 1")
			},
		},
	}

	results := Run(context.Background(), tasks, Options{MaxConcurrency: 1, TaskTimeout: 20 * time.Millisecond})
	require.Equal(t, StatusFailed, results[0].Status)
	require.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	require.Contains(t, results[0].Err.Error(), "encoder exited 1")
	require.Contains(t, results[0].Err.Error(), "timed out")
}

func TestRun_PanicIsIsolated(t *testing.T) {
	tasks := []Task[int]{
		{Name: "panicky", Run: func(context.Context) (int, error) { panic("kaboom") }},
		{Name: "calm", Run: func(context.Context) (int, error) { return 7, nil }},
	}

	results := Run(context.Background(), tasks, Options{MaxConcurrency: 1})
	require.Equal(t, StatusFailed, results[0].Status)
	require.Contains(t, results[0].Err.Error(), "panicked")
	require.Equal(t, 7, results[1].Value)
}

func TestRun_CancelStopsSubmission(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	tasks := []Task[int]{
		{
			Name: "in-flight",
			Run: func(context.Context) (int, error) {
				close(started)
				time.Sleep(50 * time.Millisecond)
				return 1, nil // runs to natural completion despite cancel
			},
		},
		{
			Name: "never-submitted",
			Run:  func(context.Context) (int, error) { return 2, nil },
		},
	}

	go func() {
		<-started
		cancel()
	}()

	results := Run(ctx, tasks, Options{MaxConcurrency: 1})
	require.Equal(t, StatusSucceeded, results[0].Status)
	require.Equal(t, StatusFailed, results[1].Status)
	require.Contains(t, results[1].Err.Error(), "not submitted")
}
