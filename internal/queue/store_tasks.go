package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// NewTaskParams carries the caller-supplied fields for task creation.
type NewTaskParams struct {
	UserID         int64
	Title          string
	VideoFile      string
	TargetLanguage string
	TargetLangName string
	SubtitleFormat string
	BurnSubtitle   bool
	Style          *SubtitleStyle
	BgmVolume      float64
	TTSVolume      float64
	TTSVoice       string
	MaxAttempts    int
}

// NewTask inserts a task queued for the prepare phase.
func (s *Store) NewTask(ctx context.Context, params NewTaskParams) (*Task, error) {
	if strings.TrimSpace(params.VideoFile) == "" {
		return nil, errors.New("video file is required")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	style := DefaultSubtitleStyle()
	if params.Style != nil {
		style = *params.Style
	}
	format := strings.ToLower(strings.TrimSpace(params.SubtitleFormat))
	if format == "" {
		format = "srt"
	}
	bgm := params.BgmVolume
	if bgm == 0 {
		bgm = 0.4
	}
	ttsVol := params.TTSVolume
	if ttsVol == 0 {
		ttsVol = 1.0
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO tasks (
            user_id, title, queued_for, status, progress, video_file,
            target_language, target_language_name, subtitle_format, burn_subtitle,
            font_name, font_size, font_bold, font_italic, font_underline,
            font_color, outline_color, back_color, outline_width, back_opacity, alignment,
            bgm_volume, tts_volume, tts_voice, max_attempts,
            created_at, enqueued_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.UserID,
		nullableString(params.Title),
		PhasePrepare,
		StatusQueued,
		0,
		params.VideoFile,
		nullableString(params.TargetLanguage),
		nullableString(params.TargetLangName),
		format,
		boolToInt(params.BurnSubtitle),
		nullableString(style.FontName),
		style.FontSize,
		boolToInt(style.FontBold),
		boolToInt(style.FontItalic),
		boolToInt(style.FontUnderline),
		nullableString(style.FontColor),
		nullableString(style.OutlineColor),
		nullableString(style.BackColor),
		style.OutlineWidth,
		style.BackOpacity,
		style.Alignment,
		bgm,
		ttsVol,
		nullableString(params.TTSVoice),
		params.MaxAttempts,
		timestamp,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a task by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// Update persists changes to an existing task.
func (s *Store) Update(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	task.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks
         SET user_id = ?, title = ?, queued_for = ?, status = ?, progress = ?, msg = ?, error_msg = ?,
             video_file = ?, vocal_file = ?, bg_video_file = ?, tts_file = ?, final_video_file = ?,
             video_duration = ?, target_language = ?, target_language_name = ?, subtitle_format = ?,
             burn_subtitle = ?, font_name = ?, font_size = ?, font_bold = ?, font_italic = ?,
             font_underline = ?, font_color = ?, outline_color = ?, back_color = ?, outline_width = ?,
             back_opacity = ?, alignment = ?, bgm_volume = ?, tts_volume = ?, tts_voice = ?,
             worker_id = ?, lease_until = ?, heartbeat_at = ?, processing_started_at = ?,
             attempt = ?, max_attempts = ?, translation_confirmed_at = ?, enqueued_at = ?, updated_at = ?
         WHERE id = ?`,
		task.UserID,
		nullableString(task.Title),
		string(task.QueuedFor),
		task.Status,
		task.Progress,
		nullableString(task.Msg),
		nullableString(task.ErrorMsg),
		nullableString(task.VideoFile),
		nullableString(task.VocalFile),
		nullableString(task.BgVideoFile),
		nullableString(task.TTSFile),
		nullableString(task.FinalVideoFile),
		task.VideoDuration,
		nullableString(task.TargetLanguage),
		nullableString(task.TargetLanguageName),
		task.SubtitleFormat,
		boolToInt(task.BurnSubtitle),
		nullableString(task.Style.FontName),
		task.Style.FontSize,
		boolToInt(task.Style.FontBold),
		boolToInt(task.Style.FontItalic),
		boolToInt(task.Style.FontUnderline),
		nullableString(task.Style.FontColor),
		nullableString(task.Style.OutlineColor),
		nullableString(task.Style.BackColor),
		task.Style.OutlineWidth,
		task.Style.BackOpacity,
		task.Style.Alignment,
		task.BgmVolume,
		task.TTSVolume,
		nullableString(task.TTSVoice),
		nullableString(task.WorkerID),
		nullableTime(task.LeaseUntil),
		nullableTime(task.HeartbeatAt),
		nullableTime(task.ProcessingStartedAt),
		task.Attempt,
		task.MaxAttempts,
		nullableTime(task.TranslationConfirmedAt),
		nullableTime(task.EnqueuedAt),
		task.UpdatedAt.Format(time.RFC3339Nano),
		task.ID,
	); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// SaveCheckpoint persists a running stage's progress, message, and produced
// artifacts. The ownership and liveness columns belong to the heartbeat loop;
// writing the full row here would revert a concurrent RefreshHeartbeat to the
// stale values the stage read at admission.
func (s *Store) SaveCheckpoint(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	task.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks
         SET progress = ?, msg = ?, vocal_file = ?, bg_video_file = ?, tts_file = ?,
             final_video_file = ?, video_duration = ?, updated_at = ?
         WHERE id = ?`,
		task.Progress,
		nullableString(task.Msg),
		nullableString(task.VocalFile),
		nullableString(task.BgVideoFile),
		nullableString(task.TTSFile),
		nullableString(task.FinalVideoFile),
		task.VideoDuration,
		task.UpdatedAt.Format(time.RFC3339Nano),
		task.ID,
	); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// SettleTask persists a stage outcome: status, progress, messages, artifacts,
// and queue membership. The ownership quadruple is cleared in the same
// statement; a settled row never carries a worker.
func (s *Store) SettleTask(ctx context.Context, task *Task) error {
	if task == nil {
		return errors.New("task is nil")
	}
	task.WorkerID = ""
	task.LeaseUntil = nil
	task.HeartbeatAt = nil
	task.ProcessingStartedAt = nil
	task.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, progress = ?, msg = ?, error_msg = ?,
             vocal_file = ?, bg_video_file = ?, tts_file = ?, final_video_file = ?,
             video_duration = ?, enqueued_at = ?,
             worker_id = NULL, lease_until = NULL, heartbeat_at = NULL,
             processing_started_at = NULL, updated_at = ?
         WHERE id = ?`,
		task.Status,
		task.Progress,
		nullableString(task.Msg),
		nullableString(task.ErrorMsg),
		nullableString(task.VocalFile),
		nullableString(task.BgVideoFile),
		nullableString(task.TTSFile),
		nullableString(task.FinalVideoFile),
		task.VideoDuration,
		nullableTime(task.EnqueuedAt),
		task.UpdatedAt.Format(time.RFC3339Nano),
		task.ID,
	); err != nil {
		return fmt.Errorf("settle task: %w", err)
	}
	return nil
}

const queuedOrderClause = ` ORDER BY COALESCE(enqueued_at, created_at), id`

// List returns tasks filtered by status set (or all tasks when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Task, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+queuedOrderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + queuedOrderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// ListQueued returns QUEUED tasks in admission order, oldest first.
func (s *Store) ListQueued(ctx context.Context) ([]*Task, error) {
	return s.List(ctx, StatusQueued)
}

// ListProcessing returns tasks currently marked PROCESSING.
func (s *Store) ListProcessing(ctx context.Context) ([]*Task, error) {
	return s.List(ctx, StatusProcessing)
}

// CountProcessing returns the number of tasks currently PROCESSING.
func (s *Store) CountProcessing(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE status = ?`, StatusProcessing)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count processing: %w", err)
	}
	return count, nil
}

// CountQueuedForUser counts QUEUED tasks belonging to a user, excluding one id
// (pass 0 to exclude none). Used to enforce the per-user queue cap.
func (s *Store) CountQueuedForUser(ctx context.Context, userID, excludeID int64) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM tasks WHERE user_id = ? AND status = ? AND id != ?`,
		userID, StatusQueued, excludeID,
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count queued for user: %w", err)
	}
	return count, nil
}

// QueuePosition returns the 1-based position of a queued task within the
// admission order, along with the total number of queued tasks. Position 0 is
// returned when the task is not queued.
func (s *Store) QueuePosition(ctx context.Context, id int64) (int, int, error) {
	task, err := s.GetByID(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	if task == nil {
		return 0, 0, ErrTaskNotFound
	}

	var total int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE status = ?`, StatusQueued)
	if err := row.Scan(&total); err != nil {
		return 0, 0, fmt.Errorf("count queued: %w", err)
	}

	if task.Status != StatusQueued {
		return 0, total, nil
	}

	var ahead int
	orderKey := task.OrderKey().UTC().Format(time.RFC3339Nano)
	row = s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM tasks
         WHERE status = ?
           AND (COALESCE(enqueued_at, created_at) < ?
                OR (COALESCE(enqueued_at, created_at) = ? AND id < ?))`,
		StatusQueued, orderKey, orderKey, id,
	)
	if err := row.Scan(&ahead); err != nil {
		return 0, 0, fmt.Errorf("count ahead: %w", err)
	}
	return ahead + 1, total, nil
}

// Remove deletes a task and its subtitles.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Stats returns a count of tasks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates task state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusProcessing:
			health.Processing += count
		case StatusReview:
			health.Review += count
		case StatusSuccess:
			health.Success += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}
