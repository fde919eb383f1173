package queue

import (
	"context"
	"fmt"
	"time"
)

// StopTask settles a stopped task into its phase-specific fallback status.
// Process termination is the caller's responsibility (cancel registry); this
// method only performs the persistent transition. Allowed from QUEUED or
// PROCESSING.
func (s *Store) StopTask(ctx context.Context, id int64) (*Task, error) {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.Status != StatusProcessing && task.Status != StatusQueued {
		return nil, fmt.Errorf("%w: stop from %s", ErrConflict, task.Status)
	}

	prior := task.Status
	switch task.QueuedFor {
	case PhaseFinalize:
		task.Status = StatusReview
		if task.Progress < 40 {
			task.Progress = 40
		}
	case PhaseReburn:
		if task.FinalVideoFile != "" {
			task.Status = StatusSuccess
		} else {
			task.Status = StatusReview
		}
	default:
		task.Status = StatusFailed
		task.Progress = 0
		task.ErrorMsg = "stopped by user"
	}
	task.Msg = fmt.Sprintf("stopped by user during %s (was %s)", task.QueuedFor, prior)

	task.WorkerID = ""
	task.LeaseUntil = nil
	task.HeartbeatAt = nil
	task.ProcessingStartedAt = nil
	task.EnqueuedAt = nil

	if err := s.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// RestartTask resets a settled task back to the prepare phase, clearing all
// derived artifacts and the retry counter. maxQueuedPerUser bounds how many
// QUEUED tasks a single user may hold; pass 0 to skip the check.
func (s *Store) RestartTask(ctx context.Context, id int64, maxQueuedPerUser int) (*Task, error) {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.Status == StatusProcessing || task.Status == StatusQueued {
		return nil, fmt.Errorf("%w: restart from %s", ErrConflict, task.Status)
	}
	if err := s.checkUserQueueCap(ctx, task, maxQueuedPerUser); err != nil {
		return nil, err
	}

	if err := s.DeleteSubtitles(ctx, task.ID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task.QueuedFor = PhasePrepare
	task.Status = StatusQueued
	task.Progress = 0
	task.Msg = ""
	task.ErrorMsg = ""
	task.VocalFile = ""
	task.BgVideoFile = ""
	task.TTSFile = ""
	task.FinalVideoFile = ""
	task.VideoDuration = 0
	task.Attempt = 0
	task.TranslationConfirmedAt = nil
	task.WorkerID = ""
	task.LeaseUntil = nil
	task.HeartbeatAt = nil
	task.ProcessingStartedAt = nil
	task.EnqueuedAt = &now

	if err := s.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// ConfirmTask accepts the reviewed translation and queues the task for the
// finalize phase.
func (s *Store) ConfirmTask(ctx context.Context, id int64, maxQueuedPerUser int) (*Task, error) {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.Status != StatusReview {
		return nil, fmt.Errorf("%w: confirm from %s", ErrConflict, task.Status)
	}
	if err := s.checkUserQueueCap(ctx, task, maxQueuedPerUser); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task.QueuedFor = PhaseFinalize
	task.Status = StatusQueued
	if task.Progress < 40 {
		task.Progress = 40
	}
	task.Msg = ""
	task.ErrorMsg = ""
	task.TranslationConfirmedAt = &now
	task.EnqueuedAt = &now

	if err := s.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// RequestReburn queues a finished task for the reburn phase, which re-renders
// captions and remuxes using the artifacts already on disk.
func (s *Store) RequestReburn(ctx context.Context, id int64, maxQueuedPerUser int) (*Task, error) {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.Status != StatusSuccess && task.Status != StatusReview {
		return nil, fmt.Errorf("%w: reburn from %s", ErrConflict, task.Status)
	}
	if err := s.checkUserQueueCap(ctx, task, maxQueuedPerUser); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	task.QueuedFor = PhaseReburn
	task.Status = StatusQueued
	task.Msg = ""
	task.ErrorMsg = ""
	task.EnqueuedAt = &now

	if err := s.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Store) checkUserQueueCap(ctx context.Context, task *Task, maxQueuedPerUser int) error {
	if maxQueuedPerUser <= 0 {
		return nil
	}
	count, err := s.CountQueuedForUser(ctx, task.UserID, task.ID)
	if err != nil {
		return err
	}
	if count >= maxQueuedPerUser {
		return ErrUserQueueFull
	}
	return nil
}
