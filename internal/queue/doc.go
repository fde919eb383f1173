// Package queue persists translation tasks and their subtitle cues in
// SQLite, and implements the lease-based ownership protocol the dispatcher
// relies on: compare-and-set admission, heartbeat refresh, ownership
// clearing, and orphan requeue/fail transitions.
package queue
