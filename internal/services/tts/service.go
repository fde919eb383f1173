// Package tts synthesizes speech for translated cues and assembles the clips
// into a single track aligned with the video timeline.
package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yehx1/video-translate/internal/cancel"
	"github.com/yehx1/video-translate/internal/config"
	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/media"
	"github.com/yehx1/video-translate/internal/queue"
	"github.com/yehx1/video-translate/internal/services"
)

// maxTempoFactor bounds how much an overlong clip is sped up before it is
// allowed to spill past its cue window.
const maxTempoFactor = 1.8

// Service turns translated cues into a mixed speech track.
type Service struct {
	cfg       config.TTS
	toolchain *media.Toolchain
	runner    media.Runner
	worker    *Worker
	registry  *cancel.Registry
	logger    *slog.Logger
}

// NewService builds the synthesis service. worker may be nil when no resident
// synthesizer is configured.
func NewService(cfg config.TTS, toolchain *media.Toolchain, runner media.Runner, worker *Worker, registry *cancel.Registry, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		toolchain: toolchain,
		runner:    runner,
		worker:    worker,
		registry:  registry,
		logger:    logging.NewComponentLogger(logger, "tts"),
	}
}

// SynthesizeParams describes one synthesis job.
type SynthesizeParams struct {
	TaskID   int64
	Cues     []queue.Subtitle
	Voice    string
	Language string
	// Duration is the full video duration; the output track matches it.
	Duration float64
	WorkDir  string
}

// SynthesizeTrack synthesizes every translated cue, re-times clips that run
// past their window, and mixes them onto a silent base track of the video's
// duration. Returns the path of the assembled WAV.
func (s *Service) SynthesizeTrack(ctx context.Context, params SynthesizeParams) (string, error) {
	clipDir := filepath.Join(params.WorkDir, "tts")
	if err := os.MkdirAll(clipDir, 0o755); err != nil {
		return "", fmt.Errorf("create tts directory: %w", err)
	}

	clips := make([]media.Clip, 0, len(params.Cues))
	cursor := 0.0
	for _, cue := range params.Cues {
		if s.registry.IsStopRequested(params.TaskID) {
			return "", services.Wrap(services.ErrCancelled, "", "synthesize", "stop requested", nil)
		}
		text := strings.TrimSpace(cue.TranslatedText)
		if text == "" {
			continue
		}

		clipPath := filepath.Join(clipDir, fmt.Sprintf("cue_%04d.wav", cue.Sequence))
		if err := s.synthesizeCue(ctx, params, text, clipPath); err != nil {
			return "", err
		}

		clipDuration, err := s.toolchain.ProbeDuration(ctx, params.TaskID, clipPath)
		if err != nil {
			return "", err
		}

		window := cue.EndTime - cue.StartTime
		if window > 0 && clipDuration > window {
			factor := clipDuration / window
			if factor > maxTempoFactor {
				factor = maxTempoFactor
			}
			retimed := filepath.Join(clipDir, fmt.Sprintf("cue_%04d_fit.wav", cue.Sequence))
			if err := s.toolchain.Tempo(ctx, params.TaskID, clipPath, retimed, factor); err != nil {
				return "", err
			}
			clipPath = retimed
			clipDuration /= factor
		}

		// Clips never overlap: a cue that starts before the previous clip
		// finished is pushed forward on the timeline.
		offset := cue.StartTime
		if offset < cursor {
			offset = cursor
		}
		cursor = offset + clipDuration
		clips = append(clips, media.Clip{Path: clipPath, Offset: offset})
	}

	duration := params.Duration
	if cursor > duration {
		duration = cursor
	}

	outPath := filepath.Join(params.WorkDir, "tts_track.wav")
	if err := s.toolchain.MixClips(ctx, params.TaskID, clips, duration, outPath); err != nil {
		return "", err
	}

	s.logger.Info("speech track assembled",
		logging.Int64(logging.FieldTaskID, params.TaskID),
		logging.Int("clips", len(clips)))
	return outPath, nil
}

// synthesizeCue renders one cue with the configured engine, falling back to
// the resident worker when the primary engine fails for a non-cancel reason.
func (s *Service) synthesizeCue(ctx context.Context, params SynthesizeParams, text, outPath string) error {
	engine := strings.ToLower(strings.TrimSpace(s.cfg.Engine))
	if engine == "" {
		engine = "edge"
	}

	switch engine {
	case "edge":
		err := s.synthesizeEdge(ctx, params.TaskID, text, params.Voice, outPath)
		if err == nil || services.IsCancelled(err) {
			return err
		}
		if s.worker != nil && s.worker.Available() {
			s.logger.Warn("edge synthesis failed, falling back to resident worker",
				logging.Int64(logging.FieldTaskID, params.TaskID),
				logging.Error(err))
			return s.synthesizeResident(text, params.Voice, params.Language, outPath)
		}
		return err
	case "xtts":
		return s.synthesizeResident(text, params.Voice, params.Language, outPath)
	default:
		return services.Wrap(services.ErrConfiguration, "", "synthesize",
			fmt.Sprintf("unknown tts engine %q", s.cfg.Engine), nil)
	}
}

func (s *Service) synthesizeEdge(ctx context.Context, taskID int64, text, voice, outPath string) error {
	args := []string{"--text", text, "--write-media", outPath}
	if voice != "" {
		args = append(args, "--voice", voice)
	}
	return s.runner.Run(ctx, taskID, s.cfg.EdgeBinary, args...)
}

// synthesizeResident routes the cue through the worker, restarting it once
// when the request fails in a way that suggests a wedged process.
func (s *Service) synthesizeResident(text, voice, language, outPath string) error {
	if s.worker == nil || !s.worker.Available() {
		return services.Wrap(services.ErrConfiguration, "", "synthesize", "resident worker not configured", nil)
	}
	err := s.worker.Synthesize(text, voice, language, outPath)
	if err == nil || !services.NeedsWorkerRestart(err) {
		return err
	}
	s.logger.Warn("restarting synthesis worker", logging.Error(err))
	s.worker.Restart()
	return s.worker.Synthesize(text, voice, language, outPath)
}
