package dispatch

import (
	"context"
	"runtime"
	"sync"

	"github.com/gridcube/gridcube/internal/job"
)

// defaultMaxAttempts bounds per-task retries in the local backend.
const defaultMaxAttempts = 5

// LocalBackend runs tasks on a bounded pool of worker goroutines on one
// machine. Failed tasks are retried up to MaxAttempts times inside the
// worker; a task that exhausts its attempts is recorded as failed and its
// siblings keep running.
type LocalBackend struct {
	// Workers is the pool size. Defaults to the machine's CPU count.
	Workers int

	// MaxAttempts bounds attempts per task. Defaults to 5.
	MaxAttempts int
}

var _ Backend = (*LocalBackend)(nil)

// Submit implements Backend. Results are returned indexed by task order
// regardless of completion order.
func (b *LocalBackend) Submit(ctx context.Context, tasks []job.ChunkTask, fn TaskFunc) []Result {
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	if workers > len(tasks) {
		workers = len(tasks)
	}

	maxAttempts := b.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	type indexed struct {
		idx  int
		task job.ChunkTask
	}

	queue := make(chan indexed)
	results := make([]Result, len(tasks))

	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for item := range queue {
				results[item.idx] = runWithRetry(ctx, item.task, fn, maxAttempts)
			}
		}()
	}

	for i, task := range tasks {
		queue <- indexed{idx: i, task: task}
	}

	close(queue)
	wg.Wait()

	return results
}

// runWithRetry attempts one task until it succeeds or attempts are exhausted.
// The final attempt's result is returned with the attempt count stamped in.
func runWithRetry(ctx context.Context, task job.ChunkTask, fn TaskFunc, maxAttempts int) Result {
	var result Result

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result = fn(ctx, task)
		result.Attempts = attempt

		if result.Err == nil || ctx.Err() != nil {
			break
		}
	}

	return result
}
