package scoring

import (
	"fmt"
	"time"

	"timeclock/internal/billing"
	"timeclock/internal/domain"
)

// OutputVariant selects which finished statuses count as completions.
type OutputVariant int

const (
	// CompletedOrPartial is the canonical variant used for profiles, team views and payouts.
	CompletedOrPartial OutputVariant = iota
	CompletedOnly
)

func (v OutputVariant) counts(s domain.TaskStatus) bool {
	if v == CompletedOnly {
		return s == domain.TaskCompleted
	}
	return s.Finished()
}

// EffectiveDate is the instant a task is attributed to a cycle by. A finished
// task belongs to the day its completing session started, so work wrapped up
// after midnight stays with the session's day.
func EffectiveDate(t domain.Task) time.Time {
	if t.Status.Finished() {
		if t.CompletedSessionStart != nil {
			return *t.CompletedSessionStart
		}
		if t.CompletedDate != nil {
			return *t.CompletedDate
		}
	}
	return t.CreatedAt
}

// OutputScore is the mean rating of tasks completed in the cycle. With no
// tasks in the cycle at all it is 100; with completions that are all unrated
// it is 100; with only unfinished tasks in the cycle it is 0.
func OutputScore(tasks []domain.Task, cycle billing.Cycle, variant OutputVariant) float64 {
	anyInCycle := false
	var completed, rated, sum int
	for _, t := range tasks {
		if !cycle.Contains(EffectiveDate(t)) {
			continue
		}
		anyInCycle = true
		if !variant.counts(t.Status) {
			continue
		}
		completed++
		if t.Score != nil {
			rated++
			sum += *t.Score
		}
	}
	switch {
	case !anyInCycle:
		return MaxScore
	case rated > 0:
		return float64(sum) / float64(rated)
	case completed > 0:
		return MaxScore
	default:
		return 0
	}
}

// ParseOutputVariant maps the config spelling to a variant. Empty selects the canonical one.
func ParseOutputVariant(s string) (OutputVariant, error) {
	switch s {
	case "", "completed_or_partial":
		return CompletedOrPartial, nil
	case "completed_only":
		return CompletedOnly, nil
	}
	return CompletedOrPartial, fmt.Errorf("unknown output variant %q", s)
}
