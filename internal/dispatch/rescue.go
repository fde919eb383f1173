package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yehx1/video-translate/internal/config"
	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/queue"
)

// rescuer detects PROCESSING rows whose owner is gone and either requeues
// them or fails them once the retry budget is spent. Retry counts live in
// memory alongside the persisted attempt column; a daemon restart therefore
// grants a fresh budget, which is acceptable for a single-node queue.
type rescuer struct {
	cfg    config.Dispatcher
	store  *queue.Store
	logger *slog.Logger

	mu       sync.Mutex
	attempts map[int64]int
}

func newRescuer(cfg config.Dispatcher, store *queue.Store, logger *slog.Logger) *rescuer {
	return &rescuer{
		cfg:      cfg,
		store:    store,
		logger:   logger,
		attempts: make(map[int64]int),
	}
}

// sweep examines every PROCESSING task and rescues the orphaned ones.
func (r *rescuer) sweep(ctx context.Context) error {
	processing, err := r.store.ListProcessing(ctx)
	if err != nil {
		return fmt.Errorf("list processing: %w", err)
	}

	queued, err := r.store.ListQueued(ctx)
	if err != nil {
		return fmt.Errorf("list queued: %w", err)
	}

	// Counters survive while a task is queued or processing; they are
	// dropped once the task settles.
	live := make(map[int64]struct{}, len(processing)+len(queued))
	for _, task := range queued {
		live[task.ID] = struct{}{}
	}

	now := time.Now().UTC()
	for _, task := range processing {
		live[task.ID] = struct{}{}
		reasons := r.orphanReasons(task, now)
		if len(reasons) == 0 {
			continue
		}
		if err := r.rescue(ctx, task, reasons); err != nil {
			r.logger.Error("rescue failed",
				logging.Int64(logging.FieldTaskID, task.ID),
				logging.Error(err))
		}
	}

	r.prune(live)
	return nil
}

// orphanReasons returns every independent signal that the task's owner died.
func (r *rescuer) orphanReasons(task *queue.Task, now time.Time) []string {
	var reasons []string

	if task.LeaseUntil != nil && now.After(*task.LeaseUntil) {
		reasons = append(reasons, "lease_expired")
	}

	stale := time.Duration(r.cfg.HeartbeatStaleSeconds) * time.Second
	if stale <= 0 {
		stale = 120 * time.Second
	}
	// A PROCESSING row with no heartbeat at all is as orphaned as one whose
	// heartbeat stopped arriving.
	if task.HeartbeatAt == nil || now.Sub(*task.HeartbeatAt) > stale {
		reasons = append(reasons, "heartbeat_stale")
	}

	timeout := time.Duration(r.cfg.ProcessingTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	anchor := task.CreatedAt
	switch {
	case task.ProcessingStartedAt != nil:
		anchor = *task.ProcessingStartedAt
	case task.HeartbeatAt != nil:
		anchor = *task.HeartbeatAt
	}
	if now.Sub(anchor) > timeout {
		reasons = append(reasons, "processing_timeout")
	}

	return reasons
}

// rescue requeues the orphan or fails it once attempts are exhausted.
func (r *rescuer) rescue(ctx context.Context, task *queue.Task, reasons []string) error {
	attempt := r.nextAttempt(task)
	reason := "rescued: " + strings.Join(reasons, ",")
	limit := task.RetryLimit(r.cfg.MaxAttempts)

	if attempt > limit {
		r.logger.Warn("orphan retry budget exhausted, failing task",
			logging.Int64(logging.FieldTaskID, task.ID),
			logging.Int("attempt", attempt),
			logging.String("reason", reason))
		r.forget(task.ID)
		return r.store.FailOrphan(ctx, task.ID, reason, attempt)
	}

	r.logger.Warn("rescuing orphaned task",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.Int("attempt", attempt),
		logging.Int("limit", limit),
		logging.String("reason", reason))
	return r.store.RequeueOrphan(ctx, task.ID, reason, attempt)
}

// nextAttempt advances the retry counter, reconciling the in-memory count
// with whatever the row already carries.
func (r *rescuer) nextAttempt(task *queue.Task) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt := r.attempts[task.ID]
	if task.Attempt > attempt {
		attempt = task.Attempt
	}
	attempt++
	r.attempts[task.ID] = attempt
	return attempt
}

func (r *rescuer) forget(taskID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, taskID)
}

// prune drops counters for settled tasks. A requeued task keeps its counter
// so repeated rescues still converge on the limit.
func (r *rescuer) prune(live map[int64]struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.attempts {
		if _, ok := live[id]; !ok {
			delete(r.attempts, id)
		}
	}
}
