package core

import (
	"testing"
	"time"
)

func TestSession_CloneIsolation(t *testing.T) {
	s := NewSession("s1", "coord-1")
	s.Participants["agent-a"] = "backend-lead"
	s.Phases = []Phase{{Name: "analysis", EstimatedMinutes: 15}}
	s.RecordDecision("use event sourcing")

	clone := s.Clone()
	if clone == s {
		t.Fatal("Clone should be a different pointer")
	}

	clone.Participants["agent-b"] = "specialist"
	clone.Scratch.Decisions = append(clone.Scratch.Decisions, "extra")
	if _, exists := s.Participants["agent-b"]; exists {
		t.Error("original should not have clone's new participant")
	}
	if len(s.Scratch.Decisions) != 1 {
		t.Errorf("original scratch mutated: %v", s.Scratch.Decisions)
	}
}

func TestSession_EstimatedDuration(t *testing.T) {
	s := NewSession("s2", "coord-1")
	s.Phases = []Phase{
		{Name: "analysis", EstimatedMinutes: 15},
		{Name: "integration", EstimatedMinutes: 20},
	}
	if got := s.EstimatedDuration(); got != 35*time.Minute {
		t.Fatalf("expected 35m, got %v", got)
	}
}

func TestSessionStatus_Terminal(t *testing.T) {
	if SessionActive.Terminal() {
		t.Error("active must not be terminal")
	}
	if !SessionCompleted.Terminal() || !SessionExpired.Terminal() {
		t.Error("completed and expired are terminal")
	}
}

func TestBucketFor(t *testing.T) {
	cases := []struct {
		score float64
		want  ImportanceBucket
	}{
		{0.0, ImportanceLow},
		{0.39, ImportanceLow},
		{0.4, ImportanceMedium},
		{0.69, ImportanceMedium},
		{0.7, ImportanceHigh},
		{1.0, ImportanceHigh},
	}
	for _, c := range cases {
		if got := BucketFor(c.score); got != c.want {
			t.Errorf("BucketFor(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestPattern_CloneIsolation(t *testing.T) {
	p := &Pattern{ID: "p1", Name: "auth-middleware", Type: "component", Tags: []string{"auth"}, Metadata: map[string]string{"origin": "review"}}
	clone := p.Clone()
	clone.Tags = append(clone.Tags, "security")
	clone.Metadata["origin"] = "sync"
	if len(p.Tags) != 1 {
		t.Errorf("original tags mutated: %v", p.Tags)
	}
	if p.Metadata["origin"] != "review" {
		t.Errorf("original metadata mutated: %v", p.Metadata)
	}
}
