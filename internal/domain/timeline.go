package domain

import (
	"sort"
	"time"
)

// OpenSegment picks the segment a close operation acts on: among segments with
// no end time, the one with the latest start time. Ties keep input order.
func OpenSegment(segments []Segment) (Segment, bool) {
	var (
		best  Segment
		found bool
	)
	for _, s := range segments {
		if !s.Open() {
			continue
		}
		if !found || s.StartTime.After(best.StartTime) {
			best = s
			found = true
		}
	}
	return best, found
}

// ElapsedSeconds is the whole-second span between two instants, floored and
// never negative.
func ElapsedSeconds(from, to time.Time) int64 {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// BuildTimeline sorts segments and breaks chronologically and computes the
// elapsed work and break seconds as of now.
func BuildTimeline(s Session, segments []Segment, breaks []Break, now time.Time) Timeline {
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].StartTime.Before(segments[j].StartTime) })
	sort.SliceStable(breaks, func(i, j int) bool { return breaks[i].StartTime.Before(breaks[j].StartTime) })
	tl := Timeline{Session: s, Segments: segments, Breaks: breaks}
	if tl.Segments == nil {
		tl.Segments = []Segment{}
	}
	if tl.Breaks == nil {
		tl.Breaks = []Break{}
	}
	for _, seg := range segments {
		d := seg.Duration
		if seg.Open() {
			d = ElapsedSeconds(seg.StartTime, now)
		}
		if seg.Type == SegmentBreak {
			tl.ElapsedBreak += d
		} else {
			tl.ElapsedWork += d
		}
	}
	return tl
}
