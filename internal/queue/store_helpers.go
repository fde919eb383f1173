package queue

import (
	"database/sql"
	"errors"
	"time"
)

const taskColumns = "id, user_id, title, queued_for, status, progress, msg, error_msg, " +
	"video_file, vocal_file, bg_video_file, tts_file, final_video_file, video_duration, " +
	"target_language, target_language_name, subtitle_format, burn_subtitle, " +
	"font_name, font_size, font_bold, font_italic, font_underline, font_color, " +
	"outline_color, back_color, outline_width, back_opacity, alignment, " +
	"bgm_volume, tts_volume, tts_voice, " +
	"worker_id, lease_until, heartbeat_at, processing_started_at, attempt, max_attempts, " +
	"translation_confirmed_at, created_at, enqueued_at, updated_at"

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id              int64
		userID          int64
		title           sql.NullString
		queuedFor       string
		statusStr       string
		progress        int
		msg             sql.NullString
		errorMsg        sql.NullString
		videoFile       sql.NullString
		vocalFile       sql.NullString
		bgVideoFile     sql.NullString
		ttsFile         sql.NullString
		finalVideoFile  sql.NullString
		videoDuration   float64
		targetLang      sql.NullString
		targetLangName  sql.NullString
		subtitleFormat  sql.NullString
		burnSubtitle    sql.NullInt64
		fontName        sql.NullString
		fontSize        int
		fontBold        sql.NullInt64
		fontItalic      sql.NullInt64
		fontUnderline   sql.NullInt64
		fontColor       sql.NullString
		outlineColor    sql.NullString
		backColor       sql.NullString
		outlineWidth    float64
		backOpacity     float64
		alignment       int
		bgmVolume       float64
		ttsVolume       float64
		ttsVoice        sql.NullString
		workerID        sql.NullString
		leaseUntilRaw   sql.NullString
		heartbeatRaw    sql.NullString
		startedRaw      sql.NullString
		attempt         int
		maxAttempts     int
		confirmedRaw    sql.NullString
		createdRaw      sql.NullString
		enqueuedRaw     sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&userID,
		&title,
		&queuedFor,
		&statusStr,
		&progress,
		&msg,
		&errorMsg,
		&videoFile,
		&vocalFile,
		&bgVideoFile,
		&ttsFile,
		&finalVideoFile,
		&videoDuration,
		&targetLang,
		&targetLangName,
		&subtitleFormat,
		&burnSubtitle,
		&fontName,
		&fontSize,
		&fontBold,
		&fontItalic,
		&fontUnderline,
		&fontColor,
		&outlineColor,
		&backColor,
		&outlineWidth,
		&backOpacity,
		&alignment,
		&bgmVolume,
		&ttsVolume,
		&ttsVoice,
		&workerID,
		&leaseUntilRaw,
		&heartbeatRaw,
		&startedRaw,
		&attempt,
		&maxAttempts,
		&confirmedRaw,
		&createdRaw,
		&enqueuedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:             id,
		UserID:         userID,
		Title:          title.String,
		QueuedFor:      Phase(queuedFor),
		Status:         Status(statusStr),
		Progress:       progress,
		Msg:            msg.String,
		ErrorMsg:       errorMsg.String,
		VideoFile:      videoFile.String,
		VocalFile:      vocalFile.String,
		BgVideoFile:    bgVideoFile.String,
		TTSFile:        ttsFile.String,
		FinalVideoFile: finalVideoFile.String,
		VideoDuration:  videoDuration,

		TargetLanguage:     targetLang.String,
		TargetLanguageName: targetLangName.String,
		SubtitleFormat:     subtitleFormat.String,
		BurnSubtitle:       burnSubtitle.Valid && burnSubtitle.Int64 != 0,
		Style: SubtitleStyle{
			FontName:      fontName.String,
			FontSize:      fontSize,
			FontBold:      fontBold.Valid && fontBold.Int64 != 0,
			FontItalic:    fontItalic.Valid && fontItalic.Int64 != 0,
			FontUnderline: fontUnderline.Valid && fontUnderline.Int64 != 0,
			FontColor:     fontColor.String,
			OutlineColor:  outlineColor.String,
			BackColor:     backColor.String,
			OutlineWidth:  outlineWidth,
			BackOpacity:   backOpacity,
			Alignment:     alignment,
		},
		BgmVolume: bgmVolume,
		TTSVolume: ttsVolume,
		TTSVoice:  ttsVoice.String,

		WorkerID:    workerID.String,
		Attempt:     attempt,
		MaxAttempts: maxAttempts,
	}

	task.LeaseUntil = parseNullableTime(leaseUntilRaw)
	task.HeartbeatAt = parseNullableTime(heartbeatRaw)
	task.ProcessingStartedAt = parseNullableTime(startedRaw)
	task.TranslationConfirmedAt = parseNullableTime(confirmedRaw)
	task.EnqueuedAt = parseNullableTime(enqueuedRaw)

	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	return task, nil
}

func scanSubtitle(scanner interface{ Scan(dest ...any) error }) (*Subtitle, error) {
	var (
		id           int64
		taskID       int64
		sequence     int
		startTime    float64
		endTime      float64
		startSRT     sql.NullString
		endSRT       sql.NullString
		originalText sql.NullString
		translated   sql.NullString
	)
	if err := scanner.Scan(&id, &taskID, &sequence, &startTime, &endTime, &startSRT, &endSRT, &originalText, &translated); err != nil {
		return nil, err
	}
	return &Subtitle{
		ID:             id,
		TaskID:         taskID,
		Sequence:       sequence,
		StartTime:      startTime,
		EndTime:        endTime,
		StartTimeSRT:   startSRT.String,
		EndTimeSRT:     endSRT.String,
		OriginalText:   originalText.String,
		TranslatedText: translated.String,
	}, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseNullableTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := parseTimeString(raw.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
