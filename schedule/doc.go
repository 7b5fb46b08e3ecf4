// Package schedule runs the background maintenance jobs (index TTL healing,
// session expiry sweeps, stats refresh) on their own timers, decoupled from
// request-handling goroutines. Jobs are named, panic-safe, and report their
// outcome to the provided logger; a failing job is retried on its next tick
// and never crashes the process. Stop drains cleanly so shutdown can wait for
// an in-flight sweep to finish.
package schedule
