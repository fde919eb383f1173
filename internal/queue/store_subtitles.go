package queue

import (
	"context"
	"fmt"
)

const subtitleColumns = "id, task_id, sequence, start_time, end_time, start_time_srt, end_time_srt, original_text, translated_text"

// ReplaceSubtitles deletes any existing cues for the task and inserts the new
// set in a single transaction.
func (s *Store) ReplaceSubtitles(ctx context.Context, taskID int64, subs []Subtitle) error {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin subtitles tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subtitles WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete subtitles: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO subtitles (task_id, sequence, start_time, end_time, start_time_srt, end_time_srt, original_text, translated_text)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare subtitle insert: %w", err)
	}
	defer stmt.Close()

	for _, sub := range subs {
		if _, err := stmt.ExecContext(ctx,
			taskID,
			sub.Sequence,
			sub.StartTime,
			sub.EndTime,
			nullableString(sub.StartTimeSRT),
			nullableString(sub.EndTimeSRT),
			nullableString(sub.OriginalText),
			nullableString(sub.TranslatedText),
		); err != nil {
			return fmt.Errorf("insert subtitle %d: %w", sub.Sequence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit subtitles: %w", err)
	}
	return nil
}

// SubtitlesForTask returns the cues for a task in sequence order.
func (s *Store) SubtitlesForTask(ctx context.Context, taskID int64) ([]Subtitle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subtitleColumns+` FROM subtitles WHERE task_id = ? ORDER BY sequence`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query subtitles: %w", err)
	}
	defer rows.Close()

	var subs []Subtitle
	for rows.Next() {
		sub, err := scanSubtitle(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// UpdateSubtitleText edits a single cue's translated text, typically during review.
func (s *Store) UpdateSubtitleText(ctx context.Context, id int64, translated string) error {
	if err := s.execWithoutResultRetry(ctx,
		`UPDATE subtitles SET translated_text = ? WHERE id = ?`,
		nullableString(translated), id,
	); err != nil {
		return fmt.Errorf("update subtitle text: %w", err)
	}
	return nil
}

// DeleteSubtitles removes all cues for a task.
func (s *Store) DeleteSubtitles(ctx context.Context, taskID int64) error {
	if err := s.execWithoutResultRetry(ctx, `DELETE FROM subtitles WHERE task_id = ?`, taskID); err != nil {
		return fmt.Errorf("delete subtitles: %w", err)
	}
	return nil
}
