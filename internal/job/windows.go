package job

import (
	"fmt"
	"time"
)

// Window is one half-open temporal sampling window [Start, End). Partial
// marks a trailing window truncated by the end of the range.
type Window struct {
	Start   time.Time
	End     time.Time
	Partial bool
}

// String renders the window as "2023-01/2023-02".
func (w Window) String() string {
	return fmt.Sprintf("%s/%s", w.Start.Format("2006-01"), w.End.Format("2006-01"))
}

// Windows steps from start to end in freqMonths-month increments at month
// granularity. Day-of-month components are ignored and end's month is
// inclusive: January through March at one month yields exactly the three
// windows Jan, Feb, Mar.
//
// When the range does not divide evenly, the trailing partial window is
// dropped unless includePartial is set, in which case it is emitted truncated
// to the range with Partial set.
func Windows(start, end time.Time, freqMonths int, includePartial bool) []Window {
	boundary := monthStart(end).AddDate(0, 1, 0)

	var out []Window

	for ws := monthStart(start); ws.Before(boundary); {
		we := ws.AddDate(0, freqMonths, 0)

		switch {
		case !we.After(boundary):
			out = append(out, Window{Start: ws, End: we})
		case includePartial:
			out = append(out, Window{Start: ws, End: boundary, Partial: true})
		}

		ws = we
	}

	return out
}

// monthStart truncates a date to the first of its month in UTC.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
