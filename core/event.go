package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind enumerates the notifications the core publishes. Subscribers are
// statically known to receive exactly one of these four kinds.
type EventKind string

const (
	// EventSessionStored is published after a session write.
	EventSessionStored EventKind = "session-stored"
	// EventSessionArchived is published after a session is archived.
	EventSessionArchived EventKind = "session-archived"
	// EventPatternStored is published after a pattern write.
	EventPatternStored EventKind = "pattern-stored"
	// EventLearningStored is published after a learning record write.
	EventLearningStored EventKind = "learning-stored"
)

// EventKinds lists all published event kinds, useful for subscribing to the
// full notification surface.
func EventKinds() []EventKind {
	return []EventKind{EventSessionStored, EventSessionArchived, EventPatternStored, EventLearningStored}
}

// Event is a small notification payload published through the store's pub/sub
// after a lifecycle operation. After emission it should be treated as
// immutable. External transport layers subscribe to these to notify connected
// agents; the core does not know how many subscribers exist.
type Event struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	SubjectID string    `json:"subject_id"` // session/pattern/learning id
	Summary   string    `json:"summary,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event of the given kind about subjectID.
func NewEvent(kind EventKind, subjectID, summary string) Event {
	return Event{
		ID:        NewID(),
		Kind:      kind,
		SubjectID: subjectID,
		Summary:   summary,
		Timestamp: time.Now().UTC(),
	}
}

// NewID generates a new unique identifier for sessions, patterns, messages,
// learning records and events.
func NewID() string { return uuid.NewString() }
