package core

import "time"

// Broadcast is the recipient id addressing all connected agents.
const Broadcast = "broadcast"

// MessageType enumerates the kinds of agent-to-agent messages.
type MessageType string

const (
	// MessagePatternShare carries one or more proposed patterns.
	MessagePatternShare MessageType = "pattern-share"
	// MessageTaskAssignment assigns work within a session phase.
	MessageTaskAssignment MessageType = "task-assignment"
	// MessageStatusUpdate reports phase or task progress.
	MessageStatusUpdate MessageType = "status-update"
	// MessageDecision records a coordination decision.
	MessageDecision MessageType = "decision"
	// MessageQuestion asks another agent for input.
	MessageQuestion MessageType = "question"
	// MessageResponse answers a previous question.
	MessageResponse MessageType = "response"
)

// MessagePriority orders delivery importance. Priorities do not reorder the
// per-session message list, which stays chronological.
type MessagePriority string

const (
	// PriorityNormal is the default message priority.
	PriorityNormal MessagePriority = "normal"
	// PriorityHigh flags messages that should be surfaced first.
	PriorityHigh MessagePriority = "high"
	// PriorityUrgent flags messages requiring immediate attention.
	PriorityUrgent MessagePriority = "urgent"
)

// Message is a single communication record between agents. Messages are
// append-only per session and referenced by a per-session ordered list for
// chronological replay.
type Message struct {
	ID        string          `json:"id"`
	FromAgent string          `json:"from_agent"`
	ToAgent   string          `json:"to_agent"` // agent id or Broadcast
	Type      MessageType     `json:"type"`
	Payload   map[string]any  `json:"payload,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Priority  MessagePriority `json:"priority"`
	CreatedAt time.Time       `json:"created_at"`
}

// IsBroadcast reports whether the message addresses all agents.
func (m *Message) IsBroadcast() bool { return m.ToAgent == Broadcast }
