package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/queue"
	"github.com/yehx1/video-translate/internal/testsupport"
)

func admitAt(t *testing.T, store *queue.Store, id int64, lease time.Time) {
	t.Helper()
	won, err := store.AdmitForProcessing(context.Background(), id, "dead-worker", lease)
	if err != nil {
		t.Fatalf("AdmitForProcessing: %v", err)
	}
	if !won {
		t.Fatal("admission lost")
	}
}

func TestOrphanReasons(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	r := newRescuer(cfg.Dispatcher, nil, logging.NewNop())

	now := time.Now().UTC()
	healthyLease := now.Add(time.Minute)
	healthyBeat := now.Add(-time.Second)
	started := now.Add(-time.Minute)

	healthy := &queue.Task{
		LeaseUntil:          &healthyLease,
		HeartbeatAt:         &healthyBeat,
		ProcessingStartedAt: &started,
		CreatedAt:           started,
	}
	if reasons := r.orphanReasons(healthy, now); len(reasons) != 0 {
		t.Fatalf("healthy task flagged: %v", reasons)
	}

	expiredLease := now.Add(-time.Second)
	expired := &queue.Task{
		LeaseUntil:          &expiredLease,
		HeartbeatAt:         &healthyBeat,
		ProcessingStartedAt: &started,
		CreatedAt:           started,
	}
	if reasons := r.orphanReasons(expired, now); len(reasons) != 1 || reasons[0] != "lease_expired" {
		t.Fatalf("reasons = %v, want [lease_expired]", reasons)
	}

	staleBeat := now.Add(-10 * time.Minute)
	stale := &queue.Task{
		LeaseUntil:          &healthyLease,
		HeartbeatAt:         &staleBeat,
		ProcessingStartedAt: &started,
		CreatedAt:           started,
	}
	if reasons := r.orphanReasons(stale, now); len(reasons) != 1 || reasons[0] != "heartbeat_stale" {
		t.Fatalf("reasons = %v, want [heartbeat_stale]", reasons)
	}

	missingBeat := &queue.Task{
		LeaseUntil:          &healthyLease,
		HeartbeatAt:         nil,
		ProcessingStartedAt: &started,
		CreatedAt:           started,
	}
	if reasons := r.orphanReasons(missingBeat, now); len(reasons) != 1 || reasons[0] != "heartbeat_stale" {
		t.Fatalf("reasons = %v, want [heartbeat_stale] for a missing heartbeat", reasons)
	}

	longAgo := now.Add(-time.Hour)
	timedOut := &queue.Task{
		LeaseUntil:          &healthyLease,
		HeartbeatAt:         &healthyBeat,
		ProcessingStartedAt: &longAgo,
		CreatedAt:           longAgo,
	}
	if reasons := r.orphanReasons(timedOut, now); len(reasons) != 1 || reasons[0] != "processing_timeout" {
		t.Fatalf("reasons = %v, want [processing_timeout]", reasons)
	}
}

func TestSweepRequeuesExpiredLease(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	task := testsupport.NewTask(t, store, 1, "clip", "/v/clip.mp4")
	admitAt(t, store, task.ID, time.Now().UTC().Add(-time.Minute))

	r := newRescuer(cfg.Dispatcher, store, logging.NewNop())
	if err := r.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	got, err := store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusQueued {
		t.Fatalf("status = %s, want QUEUED", got.Status)
	}
	if got.Attempt != 1 {
		t.Fatalf("attempt = %d, want 1", got.Attempt)
	}
	if got.HasOwner() {
		t.Fatal("rescue must clear ownership")
	}
	if got.Msg == "" {
		t.Fatal("rescue reason not recorded")
	}
}

func TestSweepFailsTaskAfterRetryBudget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Dispatcher.MaxAttempts = 2
	store := testsupport.MustOpenStore(t, cfg)
	task := testsupport.NewTask(t, store, 1, "clip", "/v/clip.mp4")

	r := newRescuer(cfg.Dispatcher, store, logging.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		admitAt(t, store, task.ID, time.Now().UTC().Add(-time.Minute))
		if err := r.sweep(ctx); err != nil {
			t.Fatalf("sweep %d: %v", i, err)
		}
		got, err := store.GetByID(ctx, task.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Status != queue.StatusQueued {
			t.Fatalf("rescue %d: status = %s, want QUEUED", i, got.Status)
		}
	}

	// Third rescue exceeds MaxAttempts and fails the task.
	admitAt(t, store, task.ID, time.Now().UTC().Add(-time.Minute))
	if err := r.sweep(ctx); err != nil {
		t.Fatalf("final sweep: %v", err)
	}
	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want FAILED", got.Status)
	}
	if got.Attempt != 3 {
		t.Fatalf("attempt = %d, want 3", got.Attempt)
	}
}

func TestSweepDropsCounterOnceSettled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	task := testsupport.NewTask(t, store, 1, "clip", "/v/clip.mp4")
	admitAt(t, store, task.ID, time.Now().UTC().Add(-time.Minute))

	r := newRescuer(cfg.Dispatcher, store, logging.NewNop())
	ctx := context.Background()
	if err := r.sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	// Counter survives while the task is queued again.
	r.mu.Lock()
	_, tracked := r.attempts[task.ID]
	r.mu.Unlock()
	if !tracked {
		t.Fatal("counter dropped while task still queued")
	}

	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	got.Status = queue.StatusFailed
	got.EnqueuedAt = nil
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := r.sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	r.mu.Lock()
	_, tracked = r.attempts[task.ID]
	r.mu.Unlock()
	if tracked {
		t.Fatal("counter survived task settling")
	}
}

func TestPerTaskRetryLimitOverridesConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Dispatcher.MaxAttempts = 5
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task, err := store.NewTask(ctx, queue.NewTaskParams{
		UserID:      1,
		VideoFile:   "/v/clip.mp4",
		MaxAttempts: 1,
	})
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}

	r := newRescuer(cfg.Dispatcher, store, logging.NewNop())

	admitAt(t, store, task.ID, time.Now().UTC().Add(-time.Minute))
	if err := r.sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusQueued {
		t.Fatalf("first rescue: status = %s, want QUEUED", got.Status)
	}

	admitAt(t, store, task.ID, time.Now().UTC().Add(-time.Minute))
	if err := r.sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	got, err = store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusFailed {
		t.Fatalf("second rescue: status = %s, want FAILED", got.Status)
	}
}
