// Package billing resolves the 19th-to-18th billing cycle used for score and
// payout aggregation.
package billing

import (
	"fmt"
	"time"
)

// StartDay is the day of month a billing cycle opens on. The cycle closes at
// the last millisecond of the day before it in the following month.
const StartDay = 19

// Cycle is an inclusive UTC window.
type Cycle struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// CurrentCycle returns the cycle containing now.
func CurrentCycle(now time.Time) Cycle {
	now = now.UTC()
	month := now.Month()
	if now.Day() < StartDay {
		month--
	}
	return cycleFrom(now.Year(), month)
}

// cycleFrom builds the cycle opening in the given month; time.Date normalizes
// month 0 and month 13 into the neighbouring year.
func cycleFrom(year int, month time.Month) Cycle {
	return Cycle{
		Start: time.Date(year, month, StartDay, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, month+1, StartDay-1, 23, 59, 59, int(999*time.Millisecond), time.UTC),
	}
}

// ParseCycle resolves a "YYYY-MM" label to the cycle opening on the 19th of that month.
func ParseCycle(label string) (Cycle, error) {
	t, err := time.Parse("2006-01", label)
	if err != nil {
		return Cycle{}, fmt.Errorf("invalid cycle %q: want YYYY-MM", label)
	}
	return cycleFrom(t.Year(), t.Month()), nil
}

// Label is the inverse of ParseCycle.
func (c Cycle) Label() string {
	return c.Start.Format("2006-01")
}

func (c Cycle) Contains(t time.Time) bool {
	return !t.Before(c.Start) && !t.After(c.End)
}

func (c Cycle) Previous() Cycle {
	return cycleFrom(c.Start.Year(), c.Start.Month()-1)
}

func (c Cycle) Next() Cycle {
	return cycleFrom(c.Start.Year(), c.Start.Month()+1)
}

func (c Cycle) WorkingDays() int {
	return WorkingDays(c.Start, c.End)
}

// WorkingDays counts the calendar days in [start, end] whose UTC weekday is
// neither Saturday nor Sunday.
func WorkingDays(start, end time.Time) int {
	start, end = start.UTC(), end.UTC()
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	n := 0
	for !day.After(last) {
		switch day.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			n++
		}
		day = day.AddDate(0, 0, 1)
	}
	return n
}
