package coordinator

import "github.com/hupe1980/coordmesh/core"

// Phase duration estimates in minutes. The total plan estimate is their sum.
const (
	analysisMinutes       = 15
	coordinationMinutes   = 10
	implementationMinutes = 45
	integrationMinutes    = 20
)

// buildPlan constructs the fixed four-phase coordination plan: analysis,
// coordination, parallel implementation, integration. All participants are
// assigned to every phase; pattern-category tags steer which knowledge each
// phase is expected to produce.
func buildPlan(participants []Agent, requiredCapabilities []string) []core.Phase {
	ids := make([]string, len(participants))
	for i, a := range participants {
		ids[i] = a.ID
	}

	return []core.Phase{
		{
			Name:              "analysis",
			Description:       "Break the project down, assess risks and map work to capabilities",
			Participants:      ids,
			EstimatedMinutes:  analysisMinutes,
			Deliverables:      []string{"requirements breakdown", "risk assessment", "capability map"},
			PatternCategories: []string{"architecture"},
		},
		{
			Name:              "coordination",
			Description:       "Agree on task ownership, interfaces and hand-off points",
			Participants:      ids,
			EstimatedMinutes:  coordinationMinutes,
			Deliverables:      []string{"task assignments", "interface contracts"},
			PatternCategories: []string{"architecture", "process"},
		},
		{
			Name:              "parallel-implementation",
			Description:       "Execute assigned tasks concurrently, sharing discovered patterns",
			Participants:      ids,
			EstimatedMinutes:  implementationMinutes,
			Deliverables:      []string{"implementation artifacts", "shared patterns"},
			PatternCategories: requiredCapabilities,
		},
		{
			Name:              "integration",
			Description:       "Merge results, validate against success criteria and summarize",
			Participants:      ids,
			EstimatedMinutes:  integrationMinutes,
			Deliverables:      []string{"integrated result", "validation report", "session summary"},
			PatternCategories: []string{"integration", "testing"},
		},
	}
}
