package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func TestCurrentCycle(t *testing.T) {
	endOfDay := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	}
	tests := []struct {
		name      string
		now       time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"on the 19th", utc(2025, 3, 19, 0, 0), utc(2025, 3, 19, 0, 0), endOfDay(2025, 4, 18)},
		{"after the 19th", utc(2025, 3, 31, 12, 0), utc(2025, 3, 19, 0, 0), endOfDay(2025, 4, 18)},
		{"before the 19th", utc(2025, 3, 18, 23, 59), utc(2025, 2, 19, 0, 0), endOfDay(2025, 3, 18)},
		{"january wraps back", utc(2025, 1, 5, 8, 0), utc(2024, 12, 19, 0, 0), endOfDay(2025, 1, 18)},
		{"december wraps forward", utc(2024, 12, 20, 8, 0), utc(2024, 12, 19, 0, 0), endOfDay(2025, 1, 18)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CurrentCycle(tt.now)
			assert.True(t, tt.wantStart.Equal(c.Start), "start %s", c.Start)
			assert.True(t, tt.wantEnd.Equal(c.End), "end %s", c.End)
			assert.True(t, c.Contains(tt.now))
		})
	}
}

func TestCurrentCycleUsesUTC(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 2025-03-19 02:00 IST is still the 18th in UTC.
	c := CurrentCycle(time.Date(2025, 3, 19, 2, 0, 0, 0, ist))
	assert.Equal(t, time.February, c.Start.Month())
}

func TestWorkingDaysScenario(t *testing.T) {
	start := utc(2025, 1, 19, 0, 0)
	end := time.Date(2025, 2, 18, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	require.Equal(t, time.Sunday, start.Weekday())

	want := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			want++
		}
	}
	assert.Equal(t, want, WorkingDays(start, end))
	assert.Equal(t, 22, WorkingDays(start, end))
}

func TestWorkingDaysSingleDay(t *testing.T) {
	sat := utc(2025, 3, 1, 0, 0)
	mon := utc(2025, 3, 3, 0, 0)
	assert.Equal(t, 0, WorkingDays(sat, sat))
	assert.Equal(t, 1, WorkingDays(mon, mon.Add(5*time.Hour)))
	assert.Equal(t, 0, WorkingDays(mon, sat))
}

func TestParseCycleRoundTrip(t *testing.T) {
	c, err := ParseCycle("2025-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-01", c.Label())
	assert.Equal(t, 22, c.WorkingDays())
	assert.Equal(t, "2024-12", c.Previous().Label())
	assert.Equal(t, "2025-02", c.Next().Label())

	_, err = ParseCycle("2025/01")
	assert.Error(t, err)
}

func TestContainsBoundaries(t *testing.T) {
	c, err := ParseCycle("2025-01")
	require.NoError(t, err)
	assert.True(t, c.Contains(c.Start))
	assert.True(t, c.Contains(c.End))
	assert.False(t, c.Contains(c.End.Add(time.Millisecond)))
	assert.False(t, c.Contains(c.Start.Add(-time.Millisecond)))
}
