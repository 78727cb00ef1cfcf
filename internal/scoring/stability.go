package scoring

import (
	"sort"

	"timeclock/internal/domain"
)

var severityWeights = map[domain.Severity]float64{
	domain.SeverityCritical:   15,
	domain.SeverityHigh:       10,
	domain.SeverityMedium:     6,
	domain.SeverityLow:        3,
	domain.SeverityNegligible: 1,
}

const defaultSeverityWeight = 5

var incidentMultipliers = map[domain.IncidentType]float64{
	domain.ProductionBug:         1.5,
	domain.SecurityVulnerability: 1.5,
	domain.DataCorruption:        1.4,
	domain.DeploymentFailure:     1.3,
	domain.BreakingChange:        1.3,
	domain.HotfixRequired:        1.2,
	domain.Regression:            1.2,
	domain.PerformanceIssue:      1.0,
	domain.TestFailure:           0.8,
	domain.CodeQualityIssue:      0.7,
}

// compoundFactor is the share of every earlier base penalty added to each later incident.
const compoundFactor = 0.1

// StabilityScore scores reliability from incidents in chronological order.
func StabilityScore(incidents []domain.StabilityIncident) float64 {
	if len(incidents) == 0 {
		return MaxScore
	}
	sorted := make([]domain.StabilityIncident, len(incidents))
	copy(sorted, incidents)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].IncidentDate < sorted[j].IncidentDate })

	var accumulated, total float64
	for _, inc := range sorted {
		base := SeverityWeight(inc.Severity) * TypeMultiplier(inc.Type)
		total += base + accumulated*compoundFactor
		accumulated += base
	}
	return round2(clamp(MaxScore - total))
}

func SeverityWeight(s domain.Severity) float64 {
	if w, ok := severityWeights[s]; ok {
		return w
	}
	return defaultSeverityWeight
}

func TypeMultiplier(t domain.IncidentType) float64 {
	if m, ok := incidentMultipliers[t]; ok {
		return m
	}
	return 1.0
}
