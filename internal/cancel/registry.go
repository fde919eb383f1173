// Package cancel tracks stop requests and live subprocess groups per task,
// so a stop can both flag cooperative cancellation and terminate whatever is
// currently running on the task's behalf.
package cancel

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	termGrace     = 300 * time.Millisecond
	termPollEvery = 50 * time.Millisecond
)

type entry struct {
	stopped bool
	pgids   map[int]struct{}
}

// Registry is the process-wide bookkeeping of stop flags and process groups.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]*entry)}
}

func (r *Registry) entryFor(taskID int64) *entry {
	e, ok := r.entries[taskID]
	if !ok {
		e = &entry{pgids: make(map[int]struct{})}
		r.entries[taskID] = e
	}
	return e
}

// Register records a live process group for the task. Registering against a
// task whose stop flag is already set is allowed; the runner checks the flag
// on its next poll and terminates the group itself.
func (r *Registry) Register(taskID int64, pgid int) {
	if pgid <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryFor(taskID).pgids[pgid] = struct{}{}
}

// Unregister removes a process group after its process exits.
func (r *Registry) Unregister(taskID int64, pgid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[taskID]; ok {
		delete(e.pgids, pgid)
	}
}

// IsStopRequested reports whether a stop has been requested for the task.
func (r *Registry) IsStopRequested(taskID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[taskID]
	return ok && e.stopped
}

// RequestStop flags the task as stopped and terminates every process group
// registered for it. Termination is best effort and never returns an error;
// the flag alone guarantees cooperative exit at the next poll. Idempotent.
func (r *Registry) RequestStop(taskID int64) {
	r.mu.Lock()
	e := r.entryFor(taskID)
	e.stopped = true
	pgids := make([]int, 0, len(e.pgids))
	for pgid := range e.pgids {
		pgids = append(pgids, pgid)
	}
	e.pgids = make(map[int]struct{})
	r.mu.Unlock()

	for _, pgid := range pgids {
		KillGroup(pgid)
	}
}

// ClearStop removes all bookkeeping for the task. Called after the task has
// settled so a later run starts with a clean slate.
func (r *Registry) ClearStop(taskID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, taskID)
}

// KillGroup terminates a process group: SIGTERM, a short grace period, then
// SIGKILL if anything in the group survives.
func KillGroup(pgid int) {
	if pgid <= 0 {
		return
	}
	_ = unix.Kill(-pgid, unix.SIGTERM)

	deadline := time.Now().Add(termGrace)
	for time.Now().Before(deadline) {
		if err := unix.Kill(-pgid, 0); err != nil {
			return
		}
		time.Sleep(termPollEvery)
	}
	_ = unix.Kill(-pgid, unix.SIGKILL)
}
