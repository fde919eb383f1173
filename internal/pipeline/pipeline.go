// Package pipeline runs the per-task processing phases: prepare builds the
// reviewable translation, finalize produces the deliverable video, and reburn
// re-renders captions after review edits.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yehx1/video-translate/internal/cancel"
	"github.com/yehx1/video-translate/internal/config"
	"github.com/yehx1/video-translate/internal/language"
	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/media"
	"github.com/yehx1/video-translate/internal/queue"
	"github.com/yehx1/video-translate/internal/services"
	"github.com/yehx1/video-translate/internal/services/transcribe"
	"github.com/yehx1/video-translate/internal/services/translate"
	"github.com/yehx1/video-translate/internal/services/tts"
)

// errorMsgLimit bounds the persisted error text.
const errorMsgLimit = 2000

// Transcriber produces timed transcript segments from an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, taskID int64, audioPath, outDir string) ([]transcribe.Segment, error)
}

// Translator translates batches of cues into a target language.
type Translator interface {
	TranslateBatch(ctx context.Context, targetLanguage string, items []translate.Item) (map[int]string, error)
	BatchSize() int
	MaxChars(durationSeconds float64) int
}

// Synthesizer builds the speech track for translated cues.
type Synthesizer interface {
	SynthesizeTrack(ctx context.Context, params tts.SynthesizeParams) (string, error)
}

// Pipeline executes tasks phase by phase against the store.
type Pipeline struct {
	cfg         *config.Config
	store       *queue.Store
	toolchain   *media.Toolchain
	transcriber Transcriber
	translator  Translator
	synthesizer Synthesizer
	registry    *cancel.Registry
	logger      *slog.Logger
}

// New wires a pipeline from its collaborators.
func New(
	cfg *config.Config,
	store *queue.Store,
	toolchain *media.Toolchain,
	transcriber Transcriber,
	translator Translator,
	synthesizer Synthesizer,
	registry *cancel.Registry,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		store:       store,
		toolchain:   toolchain,
		transcriber: transcriber,
		translator:  translator,
		synthesizer: synthesizer,
		registry:    registry,
		logger:      logging.NewComponentLogger(logger, "pipeline"),
	}
}

// Execute runs the phase the task was queued for. Phase outcomes, including
// failures, are persisted to the task row; the returned error reports only
// infrastructure problems (store writes failing and the like).
func (p *Pipeline) Execute(ctx context.Context, task *queue.Task) error {
	switch task.QueuedFor {
	case queue.PhasePrepare:
		return p.runPrepare(ctx, task)
	case queue.PhaseFinalize:
		return p.runFinalize(ctx, task)
	default:
		// Unknown phases land on reburn, the cheapest re-render.
		return p.runReburn(ctx, task)
	}
}

// workDir returns the per-task scratch directory, creating it if needed.
func (p *Pipeline) workDir(task *queue.Task) (string, error) {
	dir := filepath.Join(p.cfg.Paths.WorkDir, fmt.Sprintf("task_%d", task.ID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	return dir, nil
}

// checkpoint persists a progress step. Only the stage-owned columns are
// written; the heartbeat loop owns the liveness fields and must not be
// clobbered with the values read at admission.
func (p *Pipeline) checkpoint(ctx context.Context, task *queue.Task, progress int, msg string) error {
	task.Progress = progress
	task.Msg = msg
	return p.store.SaveCheckpoint(ctx, task)
}

// settle persists a terminal status for the phase and releases ownership.
// errMsg may be empty.
func (p *Pipeline) settle(ctx context.Context, task *queue.Task, status queue.Status, progress int, msg, errMsg string) error {
	task.Status = status
	task.Progress = progress
	task.Msg = msg
	task.ErrorMsg = services.Truncate(errMsg, errorMsgLimit)
	if status != queue.StatusQueued {
		task.EnqueuedAt = nil
	}
	return p.store.SettleTask(ctx, task)
}

// stopRequested reports whether the task should abort between steps.
func (p *Pipeline) stopRequested(ctx context.Context, taskID int64) bool {
	if ctx.Err() != nil {
		return true
	}
	return p.registry.IsStopRequested(taskID)
}

// languageName resolves the display name used in prompts and messages.
func languageName(task *queue.Task) string {
	if task.TargetLanguageName != "" {
		return task.TargetLanguageName
	}
	return language.DisplayName(task.TargetLanguage)
}

// publishName returns the deliverable file name under the media directory.
func publishName(task *queue.Task) string {
	return fmt.Sprintf("task_%d_%d.mp4", task.ID, time.Now().Unix())
}
