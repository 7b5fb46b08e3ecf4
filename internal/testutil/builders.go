package testutil

import (
	"time"

	"github.com/hupe1980/coordmesh/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").StartedAgo(2 * time.Hour).Build()
type SessionBuilder struct {
	sess *core.Session
}

// NewSessionBuilder creates a builder for an active session with the given id.
// Use chainable methods then call Build.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{sess: core.NewSession(id, "coordinator-1")}
}

// Coordinator overrides the coordinator id (chainable).
func (b *SessionBuilder) Coordinator(id string) *SessionBuilder {
	b.sess.CoordinatorID = id
	return b
}

// StartedAgo backdates the session start by the given duration (chainable).
func (b *SessionBuilder) StartedAgo(d time.Duration) *SessionBuilder {
	b.sess.StartedAt = time.Now().UTC().Add(-d)
	return b
}

// Participant assigns a role to an agent (chainable).
func (b *SessionBuilder) Participant(agentID, role string) *SessionBuilder {
	b.sess.Participants[agentID] = role
	return b
}

// Status overrides the lifecycle status (chainable).
func (b *SessionBuilder) Status(s core.SessionStatus) *SessionBuilder {
	b.sess.Status = s
	return b
}

// Build returns the constructed session.
func (b *SessionBuilder) Build() *core.Session { return b.sess }

// PatternBuilder helps construct patterns with fluent chaining for tests.
type PatternBuilder struct {
	p *core.Pattern
}

// NewPatternBuilder creates a builder for a pattern with the given name.
func NewPatternBuilder(name string) *PatternBuilder {
	return &PatternBuilder{p: &core.Pattern{Name: name}}
}

// Type sets the pattern type (chainable).
func (b *PatternBuilder) Type(t string) *PatternBuilder {
	b.p.Type = t
	return b
}

// Language sets the implementation language (chainable).
func (b *PatternBuilder) Language(l string) *PatternBuilder {
	b.p.Language = l
	return b
}

// Content sets the pattern content (chainable).
func (b *PatternBuilder) Content(c string) *PatternBuilder {
	b.p.Content = c
	return b
}

// Source sets the contributing agent (chainable).
func (b *PatternBuilder) Source(agent string) *PatternBuilder {
	b.p.SourceAgent = agent
	return b
}

// Tags replaces the tag list (chainable).
func (b *PatternBuilder) Tags(tags ...string) *PatternBuilder {
	b.p.Tags = tags
	return b
}

// Confidence sets the confidence score (chainable).
func (b *PatternBuilder) Confidence(c float64) *PatternBuilder {
	b.p.Confidence = c
	return b
}

// Build returns the constructed pattern.
func (b *PatternBuilder) Build() *core.Pattern { return b.p }
