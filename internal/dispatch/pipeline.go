package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gridcube/gridcube/internal/fetch"
	"github.com/gridcube/gridcube/internal/job"
	"github.com/gridcube/gridcube/internal/store"
)

// tracerName is the OTel tracer name for dispatch spans.
const tracerName = "gridcube"

// NewPipeline builds the per-task compute function: fetch source imagery for
// the task's cell and window, apply the configured masking hook, reduce over
// time with a median composite, and write the block at the task's offset.
//
// cfg and array are shared read-only by every concurrently executing task.
func NewPipeline(cfg *job.Config, source fetch.Source, array *store.Array, logger *slog.Logger) TaskFunc {
	if logger == nil {
		logger = slog.Default()
	}

	tracer := otel.Tracer(tracerName)

	return func(ctx context.Context, task job.ChunkTask) Result {
		started := time.Now()

		ctx, span := tracer.Start(ctx, "dispatch.task", trace.WithAttributes(
			attribute.String("task.id", task.ID()),
			attribute.String("task.window", task.Window.String()),
		))
		defer span.End()

		result := Result{
			TaskID:      task.ID(),
			GridID:      task.Cell.ID,
			WindowIndex: task.WindowIndex,
			Window:      task.Window.String(),
		}

		fail := func(err error) Result {
			span.RecordError(err)

			result.Err = err
			result.Duration = time.Since(started)

			return result
		}

		cube, err := source.FetchCube(ctx, fetch.Request{
			GridID: task.Cell.ID,
			Start:  task.Window.Start,
			End:    task.Window.End,
			Bands:  cfg.Hook.Bands(cfg.Bands),
			Width:  task.Region.Width,
			Height: task.Region.Height,
		})
		if err != nil {
			return fail(fmt.Errorf("%w: %s: %v", ErrTaskFetch, task.ID(), err))
		}

		masked, err := cfg.Hook.Apply(cube, cfg.Bands)
		if err != nil {
			return fail(fmt.Errorf("%w: %s: %v", ErrTaskMask, task.ID(), err))
		}

		block := masked.MedianComposite()

		written, err := array.WriteBlock(task.WindowIndex, task.Region.Y, task.Region.X, block)
		if err != nil {
			return fail(fmt.Errorf("%w: %s: %v", ErrTaskWrite, task.ID(), err))
		}

		result.BytesWritten = written
		result.Duration = time.Since(started)

		logger.DebugContext(ctx, "task complete",
			"task", task.ID(),
			"window", task.Window.String(),
			"bytes", written,
			"duration", result.Duration,
		)

		return result
	}
}
