// Package dispatch submits chunk tasks to a pluggable execution backend and
// aggregates per-task outcomes. A task failure is isolated: it is recorded
// and never aborts sibling tasks.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/gridcube/gridcube/internal/job"
)

// Per-task failure taxonomy. Each task error wraps exactly one of these.
var (
	// ErrTaskFetch marks a failure retrieving source imagery.
	ErrTaskFetch = errors.New("task fetch failed")
	// ErrTaskMask marks a failure applying the masking hook.
	ErrTaskMask = errors.New("task masking failed")
	// ErrTaskWrite marks a failure writing the composite to the store.
	ErrTaskWrite = errors.New("task store write failed")
)

// Result is the outcome of one chunk task. It carries the task identity so a
// failed run can be resumed against the same deterministic schedule.
type Result struct {
	TaskID       string
	GridID       string
	WindowIndex  int
	Window       string
	BytesWritten int64
	Attempts     int
	Duration     time.Duration
	Err          error
}

// Succeeded reports whether the task completed without error.
func (r Result) Succeeded() bool { return r.Err == nil }

// TaskFunc computes one chunk task to completion: fetch, mask, composite,
// store write. It is a pure function of the task (plus the read-only run
// configuration closed over at construction), so any backend may execute it
// in any order or in parallel.
type TaskFunc func(ctx context.Context, task job.ChunkTask) Result

// Backend executes a batch of tasks. Both implementations share the same
// semantics: every submitted task runs to completion (success or failure),
// results are returned in task order, and no task's failure affects another.
type Backend interface {
	Submit(ctx context.Context, tasks []job.ChunkTask, fn TaskFunc) []Result
}
