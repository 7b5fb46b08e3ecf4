// Package store contains concrete implementations of the core.Store contract.
//
// The canonical Store interface lives in the core package to avoid dependency
// cycles and keep domain contracts central. Implementation packages like this
// one provide storage backends that can be swapped without touching calling
// code: RedisStore for shared, durable deployments and InMemoryStore for
// tests, examples and single-process prototypes.
//
// All keys written through these backends follow the namespaced pattern
// <namespace>:<entity>:<id> so multiple CoordMesh instances can safely coexist
// on a single backend without interference. Callers should depend on
// core.Store rather than concrete types so they can substitute alternative
// persistence layers in tests or production.
package store
