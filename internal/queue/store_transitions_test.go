package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yehx1/video-translate/internal/queue"
	"github.com/yehx1/video-translate/internal/testsupport"
)

func TestStopTaskDuringPrepareFails(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	task := testsupport.NewTask(t, store, 1, "clip", "/v/clip.mp4")

	lease := time.Now().UTC().Add(time.Minute)
	if _, err := store.AdmitForProcessing(ctx, task.ID, "w", lease); err != nil {
		t.Fatalf("AdmitForProcessing: %v", err)
	}

	stopped, err := store.StopTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("StopTask: %v", err)
	}
	if stopped.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want FAILED", stopped.Status)
	}
	if stopped.HasOwner() {
		t.Fatal("stop must clear ownership")
	}
	if stopped.EnqueuedAt != nil {
		t.Fatal("stop must clear enqueued_at")
	}
}

func TestStopTaskDuringFinalizeReturnsToReview(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	task := testsupport.NewTask(t, store, 1, "clip", "/v/clip.mp4")

	task.Status = queue.StatusProcessing
	task.QueuedFor = queue.PhaseFinalize
	task.Progress = 20
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	stopped, err := store.StopTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("StopTask: %v", err)
	}
	if stopped.Status != queue.StatusReview {
		t.Fatalf("status = %s, want REVIEW", stopped.Status)
	}
	if stopped.Progress != 40 {
		t.Fatalf("progress = %d, want floor of 40", stopped.Progress)
	}
}

func TestStopTaskDuringFinalizeKeepsProgressAboveFloor(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	task := testsupport.NewTask(t, store, 1, "clip", "/v/clip.mp4")

	task.Status = queue.StatusProcessing
	task.QueuedFor = queue.PhaseFinalize
	task.Progress = 75
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	stopped, err := store.StopTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("StopTask: %v", err)
	}
	if stopped.Status != queue.StatusReview || stopped.Progress != 75 {
		t.Fatalf("stop state = %s/%d, want REVIEW/75", stopped.Status, stopped.Progress)
	}
}

func TestStopTaskReburnKeepsSuccessWhenFinalExists(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	task := testsupport.NewTask(t, store, 1, "clip", "/v/clip.mp4")

	task.Status = queue.StatusSuccess
	task.Progress = 100
	task.FinalVideoFile = "/media/final.mp4"
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, err := store.RequestReburn(ctx, task.ID, 0); err != nil {
		t.Fatalf("RequestReburn: %v", err)
	}

	stopped, err := store.StopTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("StopTask: %v", err)
	}
	if stopped.Status != queue.StatusSuccess {
		t.Fatalf("status = %s, want SUCCESS", stopped.Status)
	}
}

func TestStopTaskRejectsSettledStates(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	task := testsupport.NewTask(t, store, 1, "clip", "/v/clip.mp4")

	task.Status = queue.StatusSuccess
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := store.StopTask(ctx, task.ID); !errors.Is(err, queue.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestRestartResetsArtifactsAndAttempt(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	task := testsupport.NewTask(t, store, 1, "clip", "/v/clip.mp4")

	task.Status = queue.StatusFailed
	task.Progress = 40
	task.ErrorMsg = "boom"
	task.VocalFile = "/w/vocals.wav"
	task.BgVideoFile = "/w/bg.mp4"
	task.TTSFile = "/w/tts.wav"
	task.FinalVideoFile = "/m/final.mp4"
	task.Attempt = 3
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := store.ReplaceSubtitles(ctx, task.ID, []queue.Subtitle{
		{TaskID: task.ID, Sequence: 1, StartTime: 0, EndTime: 1, OriginalText: "x"},
	}); err != nil {
		t.Fatalf("ReplaceSubtitles: %v", err)
	}

	restarted, err := store.RestartTask(ctx, task.ID, 0)
	if err != nil {
		t.Fatalf("RestartTask: %v", err)
	}
	if restarted.Status != queue.StatusQueued || restarted.QueuedFor != queue.PhasePrepare {
		t.Fatalf("restart state = %s/%s", restarted.Status, restarted.QueuedFor)
	}
	if restarted.Progress != 0 || restarted.Attempt != 0 || restarted.ErrorMsg != "" {
		t.Fatalf("restart did not reset counters: %+v", restarted)
	}
	if restarted.VocalFile != "" || restarted.BgVideoFile != "" || restarted.TTSFile != "" || restarted.FinalVideoFile != "" {
		t.Fatalf("restart did not clear artifacts: %+v", restarted)
	}

	subs, err := store.SubtitlesForTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("SubtitlesForTask: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("restart kept %d subtitles", len(subs))
	}
}

func TestRestartRejectedWhileActive(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	task := testsupport.NewTask(t, store, 1, "clip", "/v/clip.mp4")

	if _, err := store.RestartTask(ctx, task.ID, 0); !errors.Is(err, queue.ErrConflict) {
		t.Fatalf("restart of queued task: err = %v, want ErrConflict", err)
	}
}

func TestConfirmQueuesFinalize(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	task := testsupport.NewTask(t, store, 1, "clip", "/v/clip.mp4")

	task.Status = queue.StatusReview
	task.Progress = 10
	if err := store.Update(ctx, task); err != nil {
		t.Fatalf("Update: %v", err)
	}

	confirmed, err := store.ConfirmTask(ctx, task.ID, 0)
	if err != nil {
		t.Fatalf("ConfirmTask: %v", err)
	}
	if confirmed.Status != queue.StatusQueued || confirmed.QueuedFor != queue.PhaseFinalize {
		t.Fatalf("confirm state = %s/%s", confirmed.Status, confirmed.QueuedFor)
	}
	if confirmed.Progress != 40 {
		t.Fatalf("progress = %d, want floor of 40", confirmed.Progress)
	}
	if confirmed.TranslationConfirmedAt == nil {
		t.Fatal("translation_confirmed_at not set")
	}
	if confirmed.EnqueuedAt == nil {
		t.Fatal("enqueued_at not refreshed on confirm")
	}
}

func TestConfirmRejectedOutsideReview(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	task := testsupport.NewTask(t, store, 1, "clip", "/v/clip.mp4")

	if _, err := store.ConfirmTask(ctx, task.ID, 0); !errors.Is(err, queue.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestUserQueueCap(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	// Two queued tasks for user 1 hit a cap of 2.
	testsupport.NewTask(t, store, 1, "a", "/v/a.mp4")
	testsupport.NewTask(t, store, 1, "b", "/v/b.mp4")
	reviewed := testsupport.NewTask(t, store, 1, "c", "/v/c.mp4")
	reviewed.Status = queue.StatusReview
	if err := store.Update(ctx, reviewed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, err := store.ConfirmTask(ctx, reviewed.ID, 2); !errors.Is(err, queue.ErrUserQueueFull) {
		t.Fatalf("err = %v, want ErrUserQueueFull", err)
	}

	// A cap of zero skips the check entirely.
	if _, err := store.ConfirmTask(ctx, reviewed.ID, 0); err != nil {
		t.Fatalf("ConfirmTask without cap: %v", err)
	}
}

func TestRequeueAndFailOrphan(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	task := testsupport.NewTask(t, store, 1, "clip", "/v/clip.mp4")

	lease := time.Now().UTC().Add(time.Minute)
	if _, err := store.AdmitForProcessing(ctx, task.ID, "w", lease); err != nil {
		t.Fatalf("AdmitForProcessing: %v", err)
	}

	if err := store.RequeueOrphan(ctx, task.ID, "rescued: lease_expired", 1); err != nil {
		t.Fatalf("RequeueOrphan: %v", err)
	}
	requeued, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if requeued.Status != queue.StatusQueued || requeued.Attempt != 1 {
		t.Fatalf("requeue state = %s attempt %d", requeued.Status, requeued.Attempt)
	}
	if requeued.HasOwner() {
		t.Fatal("requeue must clear ownership")
	}
	if requeued.EnqueuedAt == nil {
		t.Fatal("requeue must refresh enqueued_at")
	}

	if _, err := store.AdmitForProcessing(ctx, task.ID, "w", lease); err != nil {
		t.Fatalf("AdmitForProcessing: %v", err)
	}
	if err := store.FailOrphan(ctx, task.ID, "rescued: heartbeat_stale", 4); err != nil {
		t.Fatalf("FailOrphan: %v", err)
	}
	failed, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if failed.Status != queue.StatusFailed || failed.Attempt != 4 {
		t.Fatalf("fail state = %s attempt %d", failed.Status, failed.Attempt)
	}
	if failed.ErrorMsg == "" {
		t.Fatal("fail must record the rescue reason")
	}
}
