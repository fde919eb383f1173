package queue

import (
	"context"
	"fmt"
	"time"
)

// AdmitForProcessing claims a QUEUED task for the given worker. The update is
// a compare-and-set on (status = QUEUED, worker_id IS NULL) so concurrent
// dispatchers cannot both win. Returns false when the task was already taken.
func (s *Store) AdmitForProcessing(ctx context.Context, id int64, workerID string, leaseUntil time.Time) (bool, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, worker_id = ?, lease_until = ?, heartbeat_at = ?,
             processing_started_at = ?, msg = NULL, error_msg = NULL, updated_at = ?
         WHERE id = ? AND status = ? AND worker_id IS NULL`,
		StatusProcessing,
		workerID,
		leaseUntil.UTC().Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
		StatusQueued,
	)
	if err != nil {
		return false, fmt.Errorf("admit task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RefreshHeartbeat extends the lease for a task still owned by workerID.
// Returns false when ownership was lost (stopped, rescued, or finished),
// which tells the heartbeat loop to exit.
func (s *Store) RefreshHeartbeat(ctx context.Context, id int64, workerID string, leaseUntil time.Time) (bool, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET heartbeat_at = ?, lease_until = ?, updated_at = ?
         WHERE id = ? AND worker_id = ? AND status = ?`,
		now.Format(time.RFC3339Nano),
		leaseUntil.UTC().Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
		workerID,
		StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("refresh heartbeat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearOwnership drops the ownership quadruple regardless of task state.
// Called unconditionally when a stage goroutine finishes.
func (s *Store) ClearOwnership(ctx context.Context, id int64) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks
         SET worker_id = NULL, lease_until = NULL, heartbeat_at = NULL,
             processing_started_at = NULL, updated_at = ?
         WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("clear ownership: %w", err)
	}
	return nil
}

// RequeueOrphan returns a rescued task to the back of the queue with an
// incremented attempt counter and the rescue reason recorded.
func (s *Store) RequeueOrphan(ctx context.Context, id int64, reason string, attempt int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, attempt = ?, msg = ?,
             worker_id = NULL, lease_until = NULL, heartbeat_at = NULL,
             processing_started_at = NULL, enqueued_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusQueued,
		attempt,
		nullableString(reason),
		now,
		now,
		id,
		StatusProcessing,
	); err != nil {
		return fmt.Errorf("requeue orphan: %w", err)
	}
	return nil
}

// FailOrphan marks a rescued task FAILED once its retry budget is exhausted.
func (s *Store) FailOrphan(ctx context.Context, id int64, reason string, attempt int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, attempt = ?, error_msg = ?,
             worker_id = NULL, lease_until = NULL, heartbeat_at = NULL,
             processing_started_at = NULL, enqueued_at = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed,
		attempt,
		nullableString(reason),
		now,
		id,
		StatusProcessing,
	); err != nil {
		return fmt.Errorf("fail orphan: %w", err)
	}
	return nil
}
