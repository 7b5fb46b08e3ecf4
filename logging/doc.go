// Package logging provides a minimal logging interface and adapters for CoordMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the memory and coordinator components use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - CoordMeshLogger with contextual helpers (component, session) and domain
//     specific helpers for store calls, sync runs and maintenance sweeps
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	mem := memory.New(st, memory.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
