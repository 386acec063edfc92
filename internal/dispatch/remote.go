package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gridcube/gridcube/internal/job"
)

// defaultRemoteParallelism bounds in-flight remote invocations.
const defaultRemoteParallelism = 32

// Invocation is the wire descriptor of one chunk task sent to the remote
// function-execution service. It carries everything a remote worker needs to
// compute and write its chunk without coordinating with the dispatcher: the
// task identity, the time window, and the precomputed write region.
type Invocation struct {
	TaskID      string    `json:"task_id"`
	GridID      string    `json:"grid_id"`
	WindowIndex int       `json:"window_index"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	RegionX     int       `json:"region_x"`
	RegionY     int       `json:"region_y"`
	RegionW     int       `json:"region_w"`
	RegionH     int       `json:"region_h"`
}

// InvocationResult is the remote worker's reply.
type InvocationResult struct {
	OK           bool   `json:"ok"`
	BytesWritten int64  `json:"bytes_written"`
	Error        string `json:"error,omitempty"`
}

// RemoteBackend submits each task as an independent unit of remote execution
// to a function-execution service over HTTP. The dispatcher blocks only on
// collecting the aggregate result set, never on an individual task's
// internals; retries and timeouts are the service's responsibility.
type RemoteBackend struct {
	// Endpoint is the invocation URL of the function-execution service.
	Endpoint string

	// Client is the HTTP client used for invocations.
	// Defaults to http.DefaultClient.
	Client *http.Client

	// Parallelism bounds concurrent in-flight invocations. Defaults to 32.
	Parallelism int
}

var _ Backend = (*RemoteBackend)(nil)

// Submit implements Backend. fn is ignored: the remote service hosts the
// compute function; the dispatcher only ships task descriptors and collects
// outcomes.
func (b *RemoteBackend) Submit(ctx context.Context, tasks []job.ChunkTask, fn TaskFunc) []Result {
	_ = fn

	parallelism := b.Parallelism
	if parallelism <= 0 {
		parallelism = defaultRemoteParallelism
	}

	results := make([]Result, len(tasks))
	sem := make(chan struct{}, parallelism)

	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)

		go func(i int, task job.ChunkTask) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = b.invoke(ctx, task)
		}(i, task)
	}

	wg.Wait()

	return results
}

// invoke ships one task descriptor and interprets the reply.
func (b *RemoteBackend) invoke(ctx context.Context, task job.ChunkTask) Result {
	started := time.Now()

	result := Result{
		TaskID:      task.ID(),
		GridID:      task.Cell.ID,
		WindowIndex: task.WindowIndex,
		Window:      task.Window.String(),
		Attempts:    1,
	}

	payload, err := json.Marshal(Invocation{
		TaskID:      task.ID(),
		GridID:      task.Cell.ID,
		WindowIndex: task.WindowIndex,
		WindowStart: task.Window.Start,
		WindowEnd:   task.Window.End,
		RegionX:     task.Region.X,
		RegionY:     task.Region.Y,
		RegionW:     task.Region.Width,
		RegionH:     task.Region.Height,
	})
	if err != nil {
		result.Err = fmt.Errorf("encoding invocation %s: %w", task.ID(), err)
		result.Duration = time.Since(started)

		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(payload))
	if err != nil {
		result.Err = fmt.Errorf("building invocation %s: %w", task.ID(), err)
		result.Duration = time.Since(started)

		return result
	}

	req.Header.Set("Content-Type", "application/json")

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Err = fmt.Errorf("invoking %s: %w", task.ID(), err)
		result.Duration = time.Since(started)

		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		result.Err = fmt.Errorf("invoking %s: service returned %s", task.ID(), resp.Status)
		result.Duration = time.Since(started)

		return result
	}

	var reply InvocationResult

	decodeErr := json.NewDecoder(resp.Body).Decode(&reply)
	if decodeErr != nil {
		result.Err = fmt.Errorf("decoding result for %s: %w", task.ID(), decodeErr)
		result.Duration = time.Since(started)

		return result
	}

	if !reply.OK {
		result.Err = fmt.Errorf("remote task %s failed: %s", task.ID(), reply.Error)
	}

	result.BytesWritten = reply.BytesWritten
	result.Duration = time.Since(started)

	return result
}
