package coordinator

// Agent describes an available specialist: an external actor registered with
// the coordinator offering a fixed set of capability tags.
type Agent struct {
	ID           string   `json:"id"`
	Capabilities []string `json:"capabilities"`
}

// HasCapability reports whether the agent offers the capability tag.
func (a Agent) HasCapability(cap string) bool {
	for _, c := range a.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// complementaryCapabilities is the fixed map driving the second selection
// pass: an agent offering capability K is added when any capability in
// complementaryCapabilities[K] is already covered by the primary selection.
var complementaryCapabilities = map[string][]string{
	"frontend":      {"backend", "ui-design"},
	"backend":       {"frontend", "database"},
	"database":      {"backend"},
	"ui-design":     {"frontend"},
	"testing":       {"backend", "frontend"},
	"devops":        {"backend", "security"},
	"security":      {"backend", "devops"},
	"documentation": {"architecture", "backend"},
}

// roleAssignments maps capabilities to session roles. Evaluated in this fixed
// order; the first capability an agent offers wins.
var roleAssignments = []struct {
	capability string
	role       string
}{
	{"architecture", "architect"},
	{"backend", "backend-lead"},
	{"frontend", "frontend-lead"},
	{"testing", "quality-assurance"},
	{"devops", "deployment-manager"},
	{"security", "security-advisor"},
}

const defaultRole = "specialist"

// roleFor returns the deterministic role for an agent.
func roleFor(agent Agent) string {
	for _, ra := range roleAssignments {
		if agent.HasCapability(ra.capability) {
			return ra.role
		}
	}
	return defaultRole
}

// selectParticipants picks session participants in two passes. The first pass
// greedily assigns the first capable agent as primary owner of each required
// capability; the second adds agents whose capabilities complement what is
// already covered. The returned slice preserves the order agents were picked
// in. Every required capability must be coverable by the pool; the first
// uncovered capability is reported.
func selectParticipants(required []string, pool []Agent) ([]Agent, string) {
	selected := make([]Agent, 0, len(pool))
	picked := make(map[string]bool, len(pool))
	covered := make(map[string]bool, len(required))

	for _, cap := range required {
		if covered[cap] {
			continue
		}
		found := false
		for _, agent := range pool {
			if !agent.HasCapability(cap) {
				continue
			}
			found = true
			covered[cap] = true
			if !picked[agent.ID] {
				picked[agent.ID] = true
				selected = append(selected, agent)
			}
			break
		}
		if !found {
			return nil, cap
		}
	}

	for _, agent := range pool {
		if picked[agent.ID] {
			continue
		}
		if complements(agent, covered) {
			picked[agent.ID] = true
			selected = append(selected, agent)
		}
	}
	return selected, ""
}

func complements(agent Agent, covered map[string]bool) bool {
	for _, cap := range agent.Capabilities {
		for _, partner := range complementaryCapabilities[cap] {
			if covered[partner] {
				return true
			}
		}
	}
	return false
}
