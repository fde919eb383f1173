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
)

// runReburn re-renders captions over the already-produced background video
// and speech track, after subtitle edits or a style change. The task keeps
// its previous deliverable, so every failure still settles on SUCCESS; the
// error text tells the operator the re-render did not land.
func (p *Pipeline) runReburn(ctx context.Context, task *queue.Task) error {
	logger := logging.WithTask(p.logger, task.ID, string(queue.PhaseReburn))
	logger.Info("reburn started")

	if err := p.checkpoint(ctx, task, 90, "re-rendering captions"); err != nil {
		return err
	}

	workDir, err := p.workDir(task)
	if err != nil {
		return p.reburnDone(ctx, task, logger, err)
	}

	if task.BgVideoFile == "" || task.TTSFile == "" {
		return p.reburnDone(ctx, task, logger,
			services.Wrap(services.ErrValidation, "reburn", "inputs",
				"background video or speech track missing", nil))
	}

	subs, err := p.store.SubtitlesForTask(ctx, task.ID)
	if err != nil {
		return p.reburnDone(ctx, task, logger, err)
	}

	subtitlePath, err := p.writeCaptions(workDir, task, subs)
	if err != nil {
		return p.reburnDone(ctx, task, logger, err)
	}

	finalPath := filepath.Join(workDir, "final.mp4")
	if err := p.toolchain.MuxFinal(ctx, task.ID, media.MuxParams{
		BgVideo:        task.BgVideoFile,
		TTSAudio:       task.TTSFile,
		SubtitlePath:   subtitlePath,
		Burn:           task.BurnSubtitle,
		SubtitleFormat: task.SubtitleFormat,
		BgmVolume:      task.BgmVolume,
		TTSVolume:      task.TTSVolume,
		OutPath:        finalPath,
	}); err != nil {
		return p.reburnDone(ctx, task, logger, err)
	}
	task.FinalVideoFile = finalPath

	if published, err := fileutil.Publish(finalPath, p.cfg.Paths.MediaDir, publishName(task)); err != nil {
		return p.reburnDone(ctx, task, logger, err)
	} else if published != "" {
		task.FinalVideoFile = published
	}

	logger.Info("reburn complete")
	return p.settle(ctx, task, queue.StatusSuccess, 100, "captions re-rendered", "")
}

func (p *Pipeline) reburnDone(ctx context.Context, task *queue.Task, logger *slog.Logger, cause error) error {
	msg := "caption re-render failed, previous video kept"
	if services.IsCancelled(cause) {
		msg = "caption re-render stopped, previous video kept"
	}
	logger.Warn("reburn did not complete", logging.Error(cause))
	return p.settle(ctx, task, queue.StatusSuccess, 100, msg, cause.Error())
}
