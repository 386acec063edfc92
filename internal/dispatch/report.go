package dispatch

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/gridcube/gridcube/pkg/safeconv"
)

// timeRounding is the display precision for task durations.
const timeRounding = time.Millisecond

// Report aggregates the per-task outcomes of one run. The identities it
// records are exactly the deterministic schedule identities, so a follow-up
// run can target just the failed tasks.
type Report struct {
	Results []Result
}

// NewReport builds a report over a result set.
func NewReport(results []Result) Report {
	return Report{Results: results}
}

// Succeeded returns the results of tasks that completed.
func (r Report) Succeeded() []Result {
	return r.filter(true)
}

// Failed returns the results of tasks that did not complete.
func (r Report) Failed() []Result {
	return r.filter(false)
}

func (r Report) filter(succeeded bool) []Result {
	var out []Result

	for _, res := range r.Results {
		if res.Succeeded() == succeeded {
			out = append(out, res)
		}
	}

	return out
}

// BytesWritten returns the total compressed bytes stored by the run.
func (r Report) BytesWritten() int64 {
	var total int64
	for _, res := range r.Results {
		total += res.BytesWritten
	}

	return total
}

// Summary renders a one-line run summary.
func (r Report) Summary() string {
	return fmt.Sprintf("%d tasks: %d succeeded, %d failed, %s written",
		len(r.Results), len(r.Succeeded()), len(r.Failed()),
		humanize.Bytes(safeconv.MustInt64ToUint64(r.BytesWritten())))
}

// RenderTable writes a per-task outcome table.
func (r Report) RenderTable(w io.Writer) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.AppendHeader(table.Row{"Task", "Window", "Status", "Attempts", "Bytes", "Duration"})

	for _, res := range r.Results {
		status := "ok"
		if !res.Succeeded() {
			status = res.Err.Error()
		}

		tbl.AppendRow(table.Row{
			res.TaskID,
			res.Window,
			status,
			res.Attempts,
			humanize.Bytes(safeconv.MustInt64ToUint64(res.BytesWritten)),
			res.Duration.Round(timeRounding),
		})
	}

	tbl.AppendFooter(table.Row{r.Summary()})
	tbl.Render()
}

// WriteCSV writes the machine-readable per-task log consumed by resumable
// re-runs.
func (r Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"task_id", "grid_id", "window_index", "window", "status", "attempts", "bytes_written", "duration_ms", "error"}

	writeErr := cw.Write(header)
	if writeErr != nil {
		return writeErr
	}

	for _, res := range r.Results {
		status := "ok"
		errMsg := ""

		if !res.Succeeded() {
			status = "failed"
			errMsg = res.Err.Error()
		}

		record := []string{
			res.TaskID,
			res.GridID,
			strconv.Itoa(res.WindowIndex),
			res.Window,
			status,
			strconv.Itoa(res.Attempts),
			strconv.FormatInt(res.BytesWritten, 10),
			strconv.FormatInt(res.Duration.Milliseconds(), 10),
			errMsg,
		}

		recordErr := cw.Write(record)
		if recordErr != nil {
			return recordErr
		}
	}

	cw.Flush()

	return cw.Error()
}
