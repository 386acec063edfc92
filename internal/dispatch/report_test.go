package dispatch

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []Result {
	return []Result{
		{
			TaskID:       "a@0",
			GridID:       "a",
			WindowIndex:  0,
			Window:       "2023-01/2023-02",
			BytesWritten: 1024,
			Attempts:     1,
			Duration:     120 * time.Millisecond,
		},
		{
			TaskID:      "a@1",
			GridID:      "a",
			WindowIndex: 1,
			Window:      "2023-02/2023-03",
			Attempts:    5,
			Duration:    900 * time.Millisecond,
			Err:         errors.New("task fetch failed: a@1"),
		},
		{
			TaskID:       "b@0",
			GridID:       "b",
			WindowIndex:  0,
			Window:       "2023-01/2023-02",
			BytesWritten: 2048,
			Attempts:     2,
			Duration:     340 * time.Millisecond,
		},
	}
}

func TestReport_Partition(t *testing.T) {
	t.Parallel()

	report := NewReport(sampleResults())

	require.Len(t, report.Succeeded(), 2)
	require.Len(t, report.Failed(), 1)

	assert.Equal(t, "a@1", report.Failed()[0].TaskID)
	assert.Equal(t, int64(3072), report.BytesWritten())
}

func TestReport_Summary(t *testing.T) {
	t.Parallel()

	report := NewReport(sampleResults())

	summary := report.Summary()

	assert.Contains(t, summary, "3 tasks")
	assert.Contains(t, summary, "2 succeeded")
	assert.Contains(t, summary, "1 failed")
}

func TestReport_RenderTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	NewReport(sampleResults()).RenderTable(&buf)

	out := buf.String()

	assert.Contains(t, out, "a@0")
	assert.Contains(t, out, "task fetch failed: a@1")
	assert.Contains(t, out, "2023-01/2023-02")
}

func TestReport_WriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewReport(sampleResults()).WriteCSV(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, []string{
		"task_id", "grid_id", "window_index", "window",
		"status", "attempts", "bytes_written", "duration_ms", "error",
	}, records[0])

	assert.Equal(t, []string{"a@0", "a", "0", "2023-01/2023-02", "ok", "1", "1024", "120", ""}, records[1])
	assert.Equal(t, []string{"a@1", "a", "1", "2023-02/2023-03", "failed", "5", "0", "900", "task fetch failed: a@1"}, records[2])
}

func TestReport_Empty(t *testing.T) {
	t.Parallel()

	report := NewReport(nil)

	assert.Empty(t, report.Succeeded())
	assert.Empty(t, report.Failed())
	assert.Equal(t, int64(0), report.BytesWritten())
	assert.Contains(t, report.Summary(), "0 tasks")
}
