// Package scoring holds the pure score formulas. The weights and factors are
// calibrated business rules; they are reproduced as-is.
package scoring

import (
	"math"
	"sort"

	"timeclock/internal/domain"
)

// MaxScore is the ceiling for availability and stability scores.
const MaxScore = 100.0

var exceptionWeights = map[domain.WorkExceptionType]float64{
	domain.FullDayLeave:        1.0,
	domain.HalfDayLeave:        0.5,
	domain.WorkFromHome:        0.15,
	domain.SickLeave:           0.8,
	domain.EmergencyLeave:      0.7,
	domain.UnauthorizedAbsence: 1.5,
	domain.LateArrival:         0.01,
	domain.EarlyExit:           0.01,
}

const (
	timingBlockMinutes = 30.0
	timingBlockPenalty = 0.3
)

// AvailabilityScore scores attendance for a cycle with workingDays working days.
// Timing deviations with both epochs and sick leave are isolated penalties;
// every other exception compounds on the days already penalized.
func AvailabilityScore(exceptions []domain.WorkException, workingDays int) float64 {
	valuePerDay := 0.0
	if workingDays > 0 {
		valuePerDay = MaxScore / float64(workingDays)
	}
	sorted := make([]domain.WorkException, len(exceptions))
	copy(sorted, exceptions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var currentPenalizedDays, totalPenalty float64
	for _, ex := range sorted {
		switch {
		case isTimingException(ex.Type) && ex.ScheduledTimeEpoch != nil && ex.ActualTimeEpoch != nil:
			totalPenalty += timingPenalty(*ex.ScheduledTimeEpoch, *ex.ActualTimeEpoch)
		case ex.Type == domain.SickLeave:
			totalPenalty += exceptionWeights[domain.SickLeave] * valuePerDay
		default:
			penaltyDays := exceptionWeights[ex.Type] + currentPenalizedDays
			totalPenalty += penaltyDays * valuePerDay
			currentPenalizedDays += penaltyDays
		}
	}
	return round2(clamp(MaxScore - totalPenalty))
}

func isTimingException(t domain.WorkExceptionType) bool {
	return t == domain.LateArrival || t == domain.EarlyExit
}

// timingPenalty charges 0.3 points per started half hour of deviation.
func timingPenalty(scheduled, actual int64) float64 {
	minutes := math.Abs(float64(actual-scheduled)) / 60
	return math.Ceil(minutes/timingBlockMinutes) * timingBlockPenalty
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(MaxScore, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
