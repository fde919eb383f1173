package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/yehx1/video-translate/internal/fileutil"
	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/media"
	"github.com/yehx1/video-translate/internal/queue"
	"github.com/yehx1/video-translate/internal/services"
	"github.com/yehx1/video-translate/internal/services/tts"
	"github.com/yehx1/video-translate/internal/subtitles"
)

// runFinalize turns a confirmed translation into the deliverable: speech
// synthesis, caption rendering, final mux, and publish. Failures and stop
// requests drop the task back to REVIEW so the operator can retry; the
// reviewed translation is never lost.
func (p *Pipeline) runFinalize(ctx context.Context, task *queue.Task) error {
	logger := logging.WithTask(p.logger, task.ID, string(queue.PhaseFinalize))
	logger.Info("finalize started")

	workDir, err := p.workDir(task)
	if err != nil {
		return p.backToReview(ctx, task, logger, err)
	}
	if err := p.checkpoint(ctx, task, 70, "finalizing"); err != nil {
		return err
	}

	subs, err := p.store.SubtitlesForTask(ctx, task.ID)
	if err != nil {
		return p.backToReview(ctx, task, logger, err)
	}
	if len(subs) == 0 {
		return p.backToReview(ctx, task, logger,
			services.Wrap(services.ErrValidation, "finalize", "load cues", "no subtitles to synthesize", nil))
	}

	ttsPath, err := p.synthesizer.SynthesizeTrack(ctx, tts.SynthesizeParams{
		TaskID:   task.ID,
		Cues:     subs,
		Voice:    task.TTSVoice,
		Language: task.TargetLanguage,
		Duration: task.VideoDuration,
		WorkDir:  workDir,
	})
	if err != nil {
		return p.backToReview(ctx, task, logger, err)
	}
	task.TTSFile = ttsPath
	if err := p.checkpoint(ctx, task, 75, "synthesized speech"); err != nil {
		return err
	}

	subtitlePath, err := p.writeCaptions(workDir, task, subs)
	if err != nil {
		return p.backToReview(ctx, task, logger, err)
	}

	if task.BgVideoFile == "" {
		return p.backToReview(ctx, task, logger,
			services.Wrap(services.ErrValidation, "finalize", "mux", "background video missing", nil))
	}

	finalPath := filepath.Join(workDir, "final.mp4")
	if err := p.toolchain.MuxFinal(ctx, task.ID, media.MuxParams{
		BgVideo:        task.BgVideoFile,
		TTSAudio:       ttsPath,
		SubtitlePath:   subtitlePath,
		Burn:           task.BurnSubtitle,
		SubtitleFormat: task.SubtitleFormat,
		BgmVolume:      task.BgmVolume,
		TTSVolume:      task.TTSVolume,
		OutPath:        finalPath,
	}); err != nil {
		return p.backToReview(ctx, task, logger, err)
	}
	task.FinalVideoFile = finalPath
	if err := p.checkpoint(ctx, task, 90, "muxed final video"); err != nil {
		return err
	}

	if published, err := fileutil.Publish(finalPath, p.cfg.Paths.MediaDir, publishName(task)); err != nil {
		return p.backToReview(ctx, task, logger, err)
	} else if published != "" {
		task.FinalVideoFile = published
	}

	logger.Info("finalize complete")
	return p.settle(ctx, task, queue.StatusSuccess, 100, "done", "")
}

// writeCaptions renders the cue set. SRT is always produced so review edits
// stay exportable; ASS is rendered additionally when the task asks for it.
// Returns the path to hand to the mux.
func (p *Pipeline) writeCaptions(workDir string, task *queue.Task, subs []queue.Subtitle) (string, error) {
	srtPath := filepath.Join(workDir, "captions.srt")
	if err := subtitles.WriteSRT(srtPath, subs); err != nil {
		return "", err
	}
	if task.SubtitleFormat != "ass" {
		return srtPath, nil
	}
	assPath := filepath.Join(workDir, "captions.ass")
	if err := subtitles.WriteASS(assPath, subs, task.Style); err != nil {
		return "", err
	}
	return assPath, nil
}

func (p *Pipeline) backToReview(ctx context.Context, task *queue.Task, logger *slog.Logger, cause error) error {
	msg := "finalize failed, back in review"
	if services.IsCancelled(cause) {
		msg = "stopped during finalize, back in review"
	}
	logger.Warn("finalize did not complete", logging.Error(cause))
	return p.settle(ctx, task, queue.StatusReview, 60, msg, cause.Error())
}
