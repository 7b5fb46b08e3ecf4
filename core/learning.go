package core

import "time"

// LearningType enumerates the kinds of learning records.
type LearningType string

const (
	// LearningDiscovery records newly found knowledge.
	LearningDiscovery LearningType = "discovery"
	// LearningInsight records an interpretation of observed behavior.
	LearningInsight LearningType = "insight"
	// LearningOptimization records a measurable improvement.
	LearningOptimization LearningType = "optimization"
	// LearningErrorResolution records how a failure was resolved.
	LearningErrorResolution LearningType = "error-resolution"
	// LearningGeneral is the catch-all type.
	LearningGeneral LearningType = "general"
)

// ImportanceBucket groups learning records by importance score for indexing.
type ImportanceBucket string

const (
	// ImportanceLow covers scores below 0.4.
	ImportanceLow ImportanceBucket = "low"
	// ImportanceMedium covers scores in [0.4, 0.7).
	ImportanceMedium ImportanceBucket = "medium"
	// ImportanceHigh covers scores of 0.7 and above.
	ImportanceHigh ImportanceBucket = "high"
)

// BucketFor returns the importance bucket for a score.
func BucketFor(score float64) ImportanceBucket {
	switch {
	case score >= 0.7:
		return ImportanceHigh
	case score >= 0.4:
		return ImportanceMedium
	default:
		return ImportanceLow
	}
}

// ImpactMetrics are the optional measurements feeding importance scoring.
type ImpactMetrics struct {
	SuccessRate            float64 `json:"success_rate,omitempty"`            // [0,1]
	PerformanceImprovement float64 `json:"performance_improvement,omitempty"` // fraction, e.g. 0.2 = 20% faster
	UsageFrequency         int64   `json:"usage_frequency,omitempty"`
}

// LearningRecord is a long-lived, durable insight contributed by an agent.
// Importance is computed at store time from the record type and its impact
// metrics and is always clamped to [0,1].
type LearningRecord struct {
	ID          string        `json:"id"`
	Type        LearningType  `json:"type"`
	SourceAgent string        `json:"source_agent"`
	Insights    string        `json:"insights"`
	Impact      ImpactMetrics `json:"impact,omitempty"`
	Importance  float64       `json:"importance"`
	CreatedAt   time.Time     `json:"created_at"`
}
