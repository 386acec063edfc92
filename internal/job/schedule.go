package job

import (
	"fmt"
	"iter"

	"github.com/gridcube/gridcube/internal/grid"
)

// ChunkTask is one independent unit of work: a (cell, time window) pair plus
// its precomputed write region in the mosaic grid. The write region is
// carried in the task so workers never coordinate over the mosaic object.
type ChunkTask struct {
	Cell        grid.Cell
	WindowIndex int
	Window      Window
	Region      grid.Region
}

// ID is the task's identity, globally unique within a run: the cell's grid
// id and the window index.
func (t ChunkTask) ID() string {
	return fmt.Sprintf("%s@%d", t.Cell.ID, t.WindowIndex)
}

// Schedule lazily enumerates the cross-product of cells and temporal windows
// in a fixed order: cells in generation order (outer), windows in
// chronological order (inner). Progress reporting and the task limit both
// rely on this ordering.
type Schedule struct {
	cells   []grid.Cell
	regions []grid.Region
	windows []Window
	limit   int
}

// NewSchedule builds a schedule from a validated configuration, the aligned
// target-frame cells, and the mosaic grid. Every cell's write region is
// resolved eagerly so task identities and offsets are fully determined before
// dispatch.
func NewSchedule(cfg *Config, cells []grid.Cell, mosaic grid.Mosaic) (*Schedule, error) {
	regions := make([]grid.Region, len(cells))

	for i, cell := range cells {
		region, err := mosaic.CellRegion(cell)
		if err != nil {
			return nil, err
		}

		regions[i] = region
	}

	return &Schedule{
		cells:   cells,
		regions: regions,
		windows: cfg.Windows(),
	}, nil
}

// Limit caps enumeration at the first n tasks in schedule order. Zero or
// negative means no limit. Skipped tasks leave no trace: enumeration behaves
// as if they never existed.
func (s *Schedule) Limit(n int) *Schedule {
	s.limit = n

	return s
}

// Count returns the number of tasks the schedule will enumerate:
// cells x windows, truncated by any limit.
func (s *Schedule) Count() int {
	n := len(s.cells) * len(s.windows)
	if s.limit > 0 && s.limit < n {
		return s.limit
	}

	return n
}

// Tasks enumerates the schedule lazily. The sequence is restartable:
// re-ranging yields the identical tasks in the identical order.
func (s *Schedule) Tasks() iter.Seq[ChunkTask] {
	return func(yield func(ChunkTask) bool) {
		emitted := 0

		for i, cell := range s.cells {
			for wi, window := range s.windows {
				if s.limit > 0 && emitted >= s.limit {
					return
				}

				task := ChunkTask{
					Cell:        cell,
					WindowIndex: wi,
					Window:      window,
					Region:      s.regions[i],
				}

				if !yield(task) {
					return
				}

				emitted++
			}
		}
	}
}

// Collect materializes the schedule into a slice.
func (s *Schedule) Collect() []ChunkTask {
	out := make([]ChunkTask, 0, s.Count())
	for task := range s.Tasks() {
		out = append(out, task)
	}

	return out
}
