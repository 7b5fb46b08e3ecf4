package memory

import "github.com/hupe1980/coordmesh/core"

// Base scores per learning type. These are tunable policy, not a principled
// algorithm; the bonuses below reward records with measurable impact.
var learningBaseScores = map[core.LearningType]float64{
	core.LearningOptimization:    0.7,
	core.LearningDiscovery:       0.65,
	core.LearningInsight:         0.6,
	core.LearningErrorResolution: 0.55,
	core.LearningGeneral:         0.4,
}

const (
	successRateBonusThreshold = 0.8
	usageFrequencyThreshold   = 10

	successRateBonus = 0.15
	perfBonus        = 0.1
	usageBonus       = 0.1
)

// importanceScore blends the type-based base score with bonuses for a high
// success rate, a measurable performance improvement and high usage
// frequency. The result is always clamped to [0,1] regardless of input.
func importanceScore(rec *core.LearningRecord) float64 {
	score, ok := learningBaseScores[rec.Type]
	if !ok {
		score = learningBaseScores[core.LearningGeneral]
	}
	if rec.Impact.SuccessRate > successRateBonusThreshold {
		score += successRateBonus
	}
	if rec.Impact.PerformanceImprovement > 0 {
		score += perfBonus
	}
	if rec.Impact.UsageFrequency >= usageFrequencyThreshold {
		score += usageBonus
	}
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}
