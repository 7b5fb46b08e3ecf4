package core

import (
	"sync"
	"time"
)

// SessionStatus enumerates the lifecycle states of a coordination session.
type SessionStatus string

const (
	// SessionActive marks a session that is currently coordinating work.
	SessionActive SessionStatus = "active"
	// SessionCompleted marks a session terminated by explicit completion.
	SessionCompleted SessionStatus = "completed"
	// SessionExpired marks a session terminated by the expiry sweep.
	SessionExpired SessionStatus = "expired"
)

// Terminal reports whether no transition leaves this status.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionExpired
}

// Phase is one step of a coordination plan.
type Phase struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Participants      []string `json:"participants"`
	EstimatedMinutes  int      `json:"estimated_minutes"`
	Deliverables      []string `json:"deliverables"`
	PatternCategories []string `json:"pattern_categories"`
}

// Duration returns the phase duration estimate.
func (p Phase) Duration() time.Duration {
	return time.Duration(p.EstimatedMinutes) * time.Minute
}

// Scratch is the shared in-memory working space of an active session. It is
// valid only while the session is active and is never persisted.
type Scratch struct {
	PatternsSeen []string `json:"patterns_seen,omitempty"`
	Decisions    []string `json:"decisions,omitempty"`
	Insights     []string `json:"insights,omitempty"`
}

// Session represents one bounded, multi-phase coordination effort among a
// subset of agents working toward a described project goal. It is safe for
// concurrent access.
//
// Contract:
//   - Mutations update the Updated timestamp
//   - Clone performs deep copies of maps/slices for safe divergence
//   - Status transitions follow created -> active -> completed, with an
//     orthogonal active -> expired transition applied by the expiry sweep;
//     completed and expired are terminal.
type Session struct {
	ID                 string            `json:"id"`
	CoordinatorID      string            `json:"coordinator_id"`
	ProjectDescription string            `json:"project_description"`
	CoordinationType   string            `json:"coordination_type"`
	Phases             []Phase           `json:"phases"`
	Participants       map[string]string `json:"participants"` // agent id -> assigned role
	Status             SessionStatus     `json:"status"`
	StartedAt          time.Time         `json:"started_at"`
	EndedAt            *time.Time        `json:"ended_at,omitempty"`
	Updated            time.Time         `json:"updated"`
	LastAccessed       time.Time         `json:"last_accessed"`
	Scratch            Scratch           `json:"scratch,omitempty"`

	// Completion metrics, populated by CompleteSession.
	SuccessRate float64 `json:"success_rate,omitempty"`
	Summary     string  `json:"summary,omitempty"`

	mu sync.RWMutex
}

// NewSession creates an active session with the given id and coordinator.
func NewSession(id, coordinatorID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:            id,
		CoordinatorID: coordinatorID,
		Participants:  map[string]string{},
		Status:        SessionActive,
		StartedAt:     now,
		Updated:       now,
		LastAccessed:  now,
	}
}

// RecordPattern notes a pattern id in the session scratch space.
func (s *Session) RecordPattern(patternID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scratch.PatternsSeen = append(s.Scratch.PatternsSeen, patternID)
	s.Updated = time.Now().UTC()
}

// RecordDecision notes a decision in the session scratch space.
func (s *Session) RecordDecision(decision string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scratch.Decisions = append(s.Scratch.Decisions, decision)
	s.Updated = time.Now().UTC()
}

// RecordInsight notes an insight in the session scratch space.
func (s *Session) RecordInsight(insight string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scratch.Insights = append(s.Scratch.Insights, insight)
	s.Updated = time.Now().UTC()
}

// EstimatedDuration sums the duration estimates of all phases.
func (s *Session) EstimatedDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total time.Duration
	for _, p := range s.Phases {
		total += p.Duration()
	}
	return total
}

// Age returns the wall-clock age of the session.
func (s *Session) Age() time.Duration { return time.Since(s.StartedAt) }

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		ID:                 s.ID,
		CoordinatorID:      s.CoordinatorID,
		ProjectDescription: s.ProjectDescription,
		CoordinationType:   s.CoordinationType,
		Phases:             make([]Phase, len(s.Phases)),
		Participants:       make(map[string]string, len(s.Participants)),
		Status:             s.Status,
		StartedAt:          s.StartedAt,
		Updated:            s.Updated,
		LastAccessed:       s.LastAccessed,
		SuccessRate:        s.SuccessRate,
		Summary:            s.Summary,
	}
	copy(clone.Phases, s.Phases)
	for k, v := range s.Participants {
		clone.Participants[k] = v
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		clone.EndedAt = &t
	}
	clone.Scratch.PatternsSeen = append([]string(nil), s.Scratch.PatternsSeen...)
	clone.Scratch.Decisions = append([]string(nil), s.Scratch.Decisions...)
	clone.Scratch.Insights = append([]string(nil), s.Scratch.Insights...)
	return clone
}
