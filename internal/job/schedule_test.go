package job

import (
	"testing"
	"time"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridcube/gridcube/internal/grid"
)

// alignedCells builds n chunk-aligned cells in a synthetic projected frame
// together with the mosaic covering them.
func alignedCells(t *testing.T, n int) ([]grid.Cell, grid.Mosaic) {
	t.Helper()

	cells := make([]grid.Cell, n)

	for i := range cells {
		minX := float64(i) * 512

		square := geom.Polygon{[]geom.Point{
			{X: minX, Y: 0},
			{X: minX + 512, Y: 0},
			{X: minX + 512, Y: 512},
			{X: minX, Y: 512},
		}}

		cells[i] = grid.Cell{
			ID:            string(rune('a' + i)),
			Geom:          square,
			Core:          square,
			Projected:     square,
			ProjectedCore: square,
			ProjectedCRS:  "EPSG:32610",
		}
	}

	_, target, mosaic, err := grid.Align(cells, grid.Spec{TargetCRS: "EPSG:32610", ResM: 16})
	require.NoError(t, err)

	return target, mosaic
}

func scheduleConfig(t *testing.T, cells []grid.Cell, months int) *Config {
	t.Helper()

	cfg, err := New(Config{
		Cells:           cells,
		Start:           date(2023, time.January),
		End:             date(2023, time.Month(months)),
		FrequencyMonths: 1,
		Resolution:      1.0 / 3600,
		ChunkSize:       1200,
		Bands:           []string{"red"},
		VarName:         "rgb_median",
	})
	require.NoError(t, err)

	return cfg
}

func TestChunkTask_ID(t *testing.T) {
	t.Parallel()

	task := ChunkTask{Cell: grid.Cell{ID: "square_3_7"}, WindowIndex: 2}

	assert.Equal(t, "square_3_7@2", task.ID())
}

func TestNewSchedule_Count(t *testing.T) {
	t.Parallel()

	cells, mosaic := alignedCells(t, 4)
	cfg := scheduleConfig(t, cells, 10)

	schedule, err := NewSchedule(cfg, cells, mosaic)
	require.NoError(t, err)

	assert.Equal(t, 40, schedule.Count())
}

func TestSchedule_Order(t *testing.T) {
	t.Parallel()

	cells, mosaic := alignedCells(t, 2)
	cfg := scheduleConfig(t, cells, 3)

	schedule, err := NewSchedule(cfg, cells, mosaic)
	require.NoError(t, err)

	tasks := schedule.Collect()
	require.Len(t, tasks, 6)

	// Cells outer, windows inner, chronological.
	assert.Equal(t, "a@0", tasks[0].ID())
	assert.Equal(t, "a@1", tasks[1].ID())
	assert.Equal(t, "a@2", tasks[2].ID())
	assert.Equal(t, "b@0", tasks[3].ID())
	assert.Equal(t, "b@2", tasks[5].ID())

	// Regions are resolved per cell before dispatch.
	assert.Equal(t, grid.Region{X: 0, Y: 0, Width: 32, Height: 32}, tasks[0].Region)
	assert.Equal(t, grid.Region{X: 32, Y: 0, Width: 32, Height: 32}, tasks[3].Region)
}

func TestSchedule_Limit(t *testing.T) {
	t.Parallel()

	cells, mosaic := alignedCells(t, 4)
	cfg := scheduleConfig(t, cells, 10)

	schedule, err := NewSchedule(cfg, cells, mosaic)
	require.NoError(t, err)

	tasks := schedule.Limit(5).Collect()

	require.Len(t, tasks, 5)
	assert.Equal(t, 5, schedule.Count())

	// The first five tasks in schedule order: all windows of the first
	// cell first.
	assert.Equal(t, "a@0", tasks[0].ID())
	assert.Equal(t, "a@4", tasks[4].ID())
}

func TestSchedule_Restartable(t *testing.T) {
	t.Parallel()

	cells, mosaic := alignedCells(t, 2)
	cfg := scheduleConfig(t, cells, 3)

	schedule, err := NewSchedule(cfg, cells, mosaic)
	require.NoError(t, err)

	first := schedule.Collect()
	second := schedule.Collect()

	require.Len(t, second, len(first))

	for i := range first {
		assert.Equal(t, first[i].ID(), second[i].ID())
	}
}

func TestSchedule_EarlyBreak(t *testing.T) {
	t.Parallel()

	cells, mosaic := alignedCells(t, 2)
	cfg := scheduleConfig(t, cells, 3)

	schedule, err := NewSchedule(cfg, cells, mosaic)
	require.NoError(t, err)

	var got []string

	for task := range schedule.Tasks() {
		got = append(got, task.ID())
		if len(got) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"a@0", "a@1"}, got)
}

func TestNewSchedule_RegionError(t *testing.T) {
	t.Parallel()

	cells, mosaic := alignedCells(t, 1)
	cfg := scheduleConfig(t, cells, 3)

	// A cell with no projected footprint cannot be placed in the mosaic.
	broken := append(cells, grid.Cell{ID: "raw"})

	_, err := NewSchedule(cfg, broken, mosaic)
	assert.Error(t, err)
}
