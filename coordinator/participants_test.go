package coordinator

import "testing"

func TestSelectParticipants_CoversRequired(t *testing.T) {
	pool := []Agent{
		{ID: "agent-a", Capabilities: []string{"backend"}},
		{ID: "agent-b", Capabilities: []string{"security"}},
		{ID: "agent-c", Capabilities: []string{"frontend"}},
	}

	selected, uncovered := selectParticipants([]string{"backend", "security"}, pool)
	if uncovered != "" {
		t.Fatalf("expected full coverage, got uncovered %q", uncovered)
	}

	ids := map[string]bool{}
	for _, a := range selected {
		ids[a.ID] = true
	}
	if !ids["agent-a"] || !ids["agent-b"] {
		t.Fatalf("primary owners missing from selection: %v", ids)
	}
	// frontend complements the covered backend capability
	if !ids["agent-c"] {
		t.Fatalf("complementary agent-c not selected: %v", ids)
	}
}

func TestSelectParticipants_UncoveredCapability(t *testing.T) {
	pool := []Agent{
		{ID: "agent-a", Capabilities: []string{"backend"}},
	}

	selected, uncovered := selectParticipants([]string{"backend", "database"}, pool)
	if uncovered != "database" {
		t.Fatalf("uncovered = %q, want %q", uncovered, "database")
	}
	if selected != nil {
		t.Fatalf("expected nil selection on coverage failure, got %v", selected)
	}
}

func TestSelectParticipants_NoDuplicatePicks(t *testing.T) {
	pool := []Agent{
		{ID: "agent-a", Capabilities: []string{"backend", "database"}},
	}

	selected, uncovered := selectParticipants([]string{"backend", "database"}, pool)
	if uncovered != "" {
		t.Fatalf("expected full coverage, got uncovered %q", uncovered)
	}
	if len(selected) != 1 {
		t.Fatalf("agent owning two capabilities picked %d times", len(selected))
	}
}

func TestRoleFor(t *testing.T) {
	tests := []struct {
		name  string
		agent Agent
		want  string
	}{
		{"architecture wins", Agent{ID: "a", Capabilities: []string{"architecture", "backend"}}, "architect"},
		{"backend", Agent{ID: "b", Capabilities: []string{"backend"}}, "backend-lead"},
		{"order beats listing", Agent{ID: "c", Capabilities: []string{"testing", "frontend"}}, "frontend-lead"},
		{"unknown capability", Agent{ID: "d", Capabilities: []string{"documentation"}}, "specialist"},
		{"no capabilities", Agent{ID: "e"}, "specialist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := roleFor(tt.agent); got != tt.want {
				t.Errorf("roleFor(%v) = %q, want %q", tt.agent.Capabilities, got, tt.want)
			}
		})
	}
}

func TestBuildPlan_FourPhases(t *testing.T) {
	participants := []Agent{
		{ID: "agent-a", Capabilities: []string{"backend"}},
		{ID: "agent-b", Capabilities: []string{"frontend"}},
	}
	phases := buildPlan(participants, []string{"backend", "frontend"})

	if len(phases) != 4 {
		t.Fatalf("plan has %d phases, want 4", len(phases))
	}
	wantOrder := []string{"analysis", "coordination", "parallel-implementation", "integration"}
	total := 0
	for i, p := range phases {
		if p.Name != wantOrder[i] {
			t.Errorf("phase %d = %q, want %q", i, p.Name, wantOrder[i])
		}
		if len(p.Participants) != 2 {
			t.Errorf("phase %q has %d participants, want 2", p.Name, len(p.Participants))
		}
		total += p.EstimatedMinutes
	}
	if total != 90 {
		t.Errorf("total estimate = %d minutes, want 90", total)
	}
}
