package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/queue"
	"github.com/yehx1/video-translate/internal/services"
	"github.com/yehx1/video-translate/internal/services/translate"
	"github.com/yehx1/video-translate/internal/subtitles"
)

// runPrepare takes a fresh task from source video to reviewable translation:
// probe, audio extraction, vocal separation, background remux, transcription,
// and machine translation. Any failure, including a stop request, fails the
// task; there is nothing worth keeping before review exists.
func (p *Pipeline) runPrepare(ctx context.Context, task *queue.Task) error {
	logger := logging.WithTask(p.logger, task.ID, string(queue.PhasePrepare))
	if p.stopRequested(ctx, task.ID) {
		logger.Info("stop requested before prepare started")
		return nil
	}
	logger.Info("prepare started")

	workDir, err := p.workDir(task)
	if err != nil {
		return p.failPrepare(ctx, task, logger, err)
	}
	if err := p.checkpoint(ctx, task, 5, "preparing"); err != nil {
		return err
	}

	duration, err := p.toolchain.ProbeDuration(ctx, task.ID, task.VideoFile)
	if err != nil {
		return p.failPrepare(ctx, task, logger, err)
	}
	if max := p.cfg.Media.MaxVideoSeconds; max > 0 && duration > float64(max) {
		return p.failPrepare(ctx, task, logger, services.Wrap(services.ErrValidation, "prepare", "probe",
			fmt.Sprintf("video runs %.0fs, limit is %ds", duration, max), nil))
	}
	task.VideoDuration = duration
	if err := p.checkpoint(ctx, task, 8, "probed source video"); err != nil {
		return err
	}

	audioPath := filepath.Join(workDir, "audio.wav")
	if err := p.toolchain.ExtractAudio(ctx, task.ID, task.VideoFile, audioPath); err != nil {
		return p.failPrepare(ctx, task, logger, err)
	}
	if err := p.checkpoint(ctx, task, 10, "extracted audio"); err != nil {
		return err
	}

	vocalPath, backgroundPath, err := p.toolchain.SeparateVocals(ctx, task.ID, audioPath, workDir)
	if err != nil {
		return p.failPrepare(ctx, task, logger, err)
	}
	task.VocalFile = vocalPath
	if err := p.checkpoint(ctx, task, 15, "separated vocals"); err != nil {
		return err
	}

	bgVideoPath := filepath.Join(workDir, "bg_video.mp4")
	if err := p.toolchain.RemuxBackground(ctx, task.ID, task.VideoFile, backgroundPath, bgVideoPath); err != nil {
		return p.failPrepare(ctx, task, logger, err)
	}
	task.BgVideoFile = bgVideoPath
	if err := p.checkpoint(ctx, task, 20, "remuxed background video"); err != nil {
		return err
	}

	segments, err := p.transcriber.Transcribe(ctx, task.ID, vocalPath, filepath.Join(workDir, "transcript"))
	if err != nil {
		return p.failPrepare(ctx, task, logger, err)
	}
	if err := p.checkpoint(ctx, task, 25, fmt.Sprintf("transcribed %d segments", len(segments))); err != nil {
		return err
	}

	subs := make([]queue.Subtitle, 0, len(segments))
	for i, seg := range segments {
		subs = append(subs, queue.Subtitle{
			TaskID:       task.ID,
			Sequence:     i + 1,
			StartTime:    seg.Start,
			EndTime:      seg.End,
			StartTimeSRT: subtitles.FormatSRT(seg.Start),
			EndTimeSRT:   subtitles.FormatSRT(seg.End),
			OriginalText: seg.Text,
		})
	}

	if err := p.translateCues(ctx, task, subs); err != nil {
		return p.failPrepare(ctx, task, logger, err)
	}
	if err := p.store.ReplaceSubtitles(ctx, task.ID, subs); err != nil {
		return p.failPrepare(ctx, task, logger, err)
	}
	if err := p.checkpoint(ctx, task, 30, "translated transcript"); err != nil {
		return err
	}

	logger.Info("prepare complete, awaiting review", logging.Int("cues", len(subs)))
	return p.settle(ctx, task, queue.StatusReview, 60, "awaiting review", "")
}

// translateCues fills TranslatedText on the cues in place, batch by batch.
// Cues the backend skips keep their original text.
func (p *Pipeline) translateCues(ctx context.Context, task *queue.Task, subs []queue.Subtitle) error {
	items := make([]translate.Item, 0, len(subs))
	index := make(map[int]int, len(subs))
	for i, sub := range subs {
		items = append(items, translate.Item{
			ID:       sub.Sequence,
			Text:     sub.OriginalText,
			MaxChars: p.translator.MaxChars(sub.EndTime - sub.StartTime),
		})
		index[sub.Sequence] = i
	}

	target := languageName(task)
	for _, batch := range translate.SplitBatches(items, p.translator.BatchSize()) {
		if p.stopRequested(ctx, task.ID) {
			return services.Wrap(services.ErrCancelled, "prepare", "translate", "stop requested", nil)
		}
		translated, err := p.translator.TranslateBatch(ctx, target, batch)
		if err != nil {
			return err
		}
		for id, text := range translated {
			if i, ok := index[id]; ok {
				subs[i].TranslatedText = text
			}
		}
	}
	return nil
}

func (p *Pipeline) failPrepare(ctx context.Context, task *queue.Task, logger *slog.Logger, cause error) error {
	if services.IsCancelled(cause) {
		// The stop transition owns the terminal write; the row stays as
		// last persisted.
		logger.Info("prepare stopped", logging.Error(cause))
		return nil
	}
	logger.Error("prepare failed", logging.Error(cause))
	return p.settle(ctx, task, queue.StatusFailed, task.Progress, "prepare failed", cause.Error())
}
