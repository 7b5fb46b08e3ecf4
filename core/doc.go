// Package core provides the foundational domain types, interfaces and
// contracts used by CoordMesh. It defines the core abstractions for:
//
//   - Sessions (bounded, multi-phase coordination efforts among agents)
//   - Patterns (reusable units of solution knowledge with conflict policy)
//   - Messages (agent-to-agent or broadcast communication records)
//   - Learning records (durable insights with computed importance)
//   - Store (the backing key-value contract: TTL, sets, lists, counters,
//     publish/subscribe)
//   - Events (typed notifications emitted on store/archive operations)
//
// The package intentionally keeps implementation concerns (persistence,
// conflict resolution, scheduling) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
