package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m int) time.Time {
	return time.Date(2025, 3, 3, h, m, 0, 0, time.UTC)
}

func TestOpenSegmentPicksLatestOpen(t *testing.T) {
	closed := at(9, 30)
	segs := []Segment{
		{ID: "a", StartTime: at(9, 0), EndTime: &closed},
		{ID: "b", StartTime: at(9, 30)},
		{ID: "c", StartTime: at(10, 0)},
	}
	got, ok := OpenSegment(segs)
	require.True(t, ok)
	assert.Equal(t, "c", got.ID)
}

func TestOpenSegmentNoneOpen(t *testing.T) {
	end := at(10, 0)
	_, ok := OpenSegment([]Segment{{ID: "a", StartTime: at(9, 0), EndTime: &end}})
	assert.False(t, ok)
	_, ok = OpenSegment(nil)
	assert.False(t, ok)
}

func TestElapsedSecondsFloors(t *testing.T) {
	start := at(9, 0)
	assert.Equal(t, int64(59), ElapsedSeconds(start, start.Add(59*time.Second+999*time.Millisecond)))
	assert.Equal(t, int64(0), ElapsedSeconds(start, start.Add(-time.Minute)))
}

func TestBuildTimelineCountsOpenSegment(t *testing.T) {
	workEnd := at(10, 0)
	breakEnd := at(10, 15)
	segs := []Segment{
		{ID: "w2", Type: SegmentWork, StartTime: at(10, 15)},
		{ID: "w1", Type: SegmentWork, StartTime: at(9, 0), EndTime: &workEnd, Duration: 3600},
		{ID: "b1", Type: SegmentBreak, StartTime: at(10, 0), EndTime: &breakEnd, Duration: 900},
	}
	tl := BuildTimeline(Session{ID: "s"}, segs, nil, at(10, 45))
	assert.Equal(t, "w1", tl.Segments[0].ID)
	assert.Equal(t, int64(3600+1800), tl.ElapsedWork)
	assert.Equal(t, int64(900), tl.ElapsedBreak)
	assert.NotNil(t, tl.Breaks)
}
