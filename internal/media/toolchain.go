// Package media wraps the external audio/video tools (ffprobe, ffmpeg,
// demucs) behind task-aware operations. Every invocation goes through the
// killable process runner so stop requests terminate the tool promptly.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yehx1/video-translate/internal/config"
	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/services"
)

// Runner abstracts the killable process runner for testability.
type Runner interface {
	Run(ctx context.Context, taskID int64, name string, args ...string) error
	Output(ctx context.Context, taskID int64, name string, args ...string) (string, error)
}

// Toolchain invokes the configured media binaries on behalf of a task.
type Toolchain struct {
	cfg    config.Media
	runner Runner
	logger *slog.Logger
}

// NewToolchain builds a Toolchain from configuration.
func NewToolchain(cfg config.Media, runner Runner, logger *slog.Logger) *Toolchain {
	return &Toolchain{
		cfg:    cfg,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "media"),
	}
}

// ProbeDuration returns the container duration of a media file in seconds.
func (t *Toolchain) ProbeDuration(ctx context.Context, taskID int64, path string) (float64, error) {
	out, err := t.runner.Output(ctx, taskID, t.cfg.FFprobeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	duration, parseErr := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if parseErr != nil || duration <= 0 {
		return 0, services.Wrap(services.ErrValidation, "", "probe duration",
			fmt.Sprintf("unparseable duration %q for %s", strings.TrimSpace(out), filepath.Base(path)), nil)
	}
	return duration, nil
}

// ExtractAudio demuxes the source audio into a stereo 44.1kHz WAV.
func (t *Toolchain) ExtractAudio(ctx context.Context, taskID int64, videoPath, outPath string) error {
	t.logger.Debug("extracting audio", logging.Int64(logging.FieldTaskID, taskID))
	return t.runner.Run(ctx, taskID, t.cfg.FFmpegBinary,
		"-y", "-i", videoPath,
		"-vn", "-acodec", "pcm_s16le", "-ar", "44100", "-ac", "2",
		outPath,
	)
}

// SeparateVocals splits an audio file into vocal and accompaniment stems.
// Returns the paths of the vocal stem and the background stem.
func (t *Toolchain) SeparateVocals(ctx context.Context, taskID int64, audioPath, outDir string) (string, string, error) {
	t.logger.Debug("separating vocals", logging.Int64(logging.FieldTaskID, taskID))
	if err := t.runner.Run(ctx, taskID, t.cfg.DemucsBinary,
		"--two-stems", "vocals",
		"-o", outDir,
		audioPath,
	); err != nil {
		return "", "", err
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	stemDir := filepath.Join(outDir, "htdemucs", base)
	vocal := filepath.Join(stemDir, "vocals.wav")
	background := filepath.Join(stemDir, "no_vocals.wav")
	for _, path := range []string{vocal, background} {
		if _, err := os.Stat(path); err != nil {
			return "", "", services.Wrap(services.ErrCommandFailed, "", "separate vocals",
				fmt.Sprintf("expected stem missing: %s", path), err)
		}
	}
	return vocal, background, nil
}

// RemuxBackground replaces the source audio track with the background stem,
// copying the video stream untouched.
func (t *Toolchain) RemuxBackground(ctx context.Context, taskID int64, videoPath, backgroundAudio, outPath string) error {
	t.logger.Debug("remuxing background video", logging.Int64(logging.FieldTaskID, taskID))
	return t.runner.Run(ctx, taskID, t.cfg.FFmpegBinary,
		"-y",
		"-i", videoPath,
		"-i", backgroundAudio,
		"-map", "0:v", "-map", "1:a",
		"-c:v", "copy", "-c:a", "aac",
		"-shortest",
		outPath,
	)
}

// MuxParams describes the final mux of background video, synthesized speech,
// and captions.
type MuxParams struct {
	BgVideo      string
	TTSAudio     string
	SubtitlePath string
	// Burn renders captions into the video stream; otherwise the subtitle
	// file is muxed as a soft track.
	Burn           bool
	SubtitleFormat string
	BgmVolume      float64
	TTSVolume      float64
	OutPath        string
}

// MuxFinal assembles the deliverable video: the background video's audio and
// the synthesized speech are mixed at their configured volumes, and captions
// are either burned in or attached as a soft stream.
func (t *Toolchain) MuxFinal(ctx context.Context, taskID int64, params MuxParams) error {
	t.logger.Debug("muxing final video", logging.Int64(logging.FieldTaskID, taskID))

	bgm := params.BgmVolume
	if bgm <= 0 {
		bgm = 0.4
	}
	tts := params.TTSVolume
	if tts <= 0 {
		tts = 1.0
	}

	filter := fmt.Sprintf(
		"[0:a]volume=%.2f[bgm];[1:a]volume=%.2f[tts];[bgm][tts]amix=inputs=2:duration=first:dropout_transition=0[aout]",
		bgm, tts,
	)

	args := []string{
		"-y",
		"-i", params.BgVideo,
		"-i", params.TTSAudio,
	}
	softSubtitle := !params.Burn && params.SubtitlePath != ""
	if softSubtitle {
		args = append(args, "-i", params.SubtitlePath)
	}

	if params.Burn && params.SubtitlePath != "" {
		videoFilter := fmt.Sprintf("[0:v]subtitles=%s[vout]", escapeFilterPath(params.SubtitlePath))
		if strings.EqualFold(params.SubtitleFormat, "ass") {
			videoFilter = fmt.Sprintf("[0:v]ass=%s[vout]", escapeFilterPath(params.SubtitlePath))
		}
		args = append(args,
			"-filter_complex", filter+";"+videoFilter,
			"-map", "[vout]", "-map", "[aout]",
			"-c:v", "libx264", "-crf", "20", "-preset", "medium",
		)
	} else {
		args = append(args,
			"-filter_complex", filter,
			"-map", "0:v", "-map", "[aout]",
			"-c:v", "copy",
		)
		if softSubtitle {
			args = append(args, "-map", "2:s", "-c:s", "mov_text")
		}
	}

	args = append(args, "-c:a", "aac", params.OutPath)
	return t.runner.Run(ctx, taskID, t.cfg.FFmpegBinary, args...)
}

// escapeFilterPath quotes a path for use inside an ffmpeg filter graph.
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		":", "\\:",
		"'", "\\'",
		"[", "\\[",
		"]", "\\]",
		",", "\\,",
		";", "\\;",
	)
	return "'" + replacer.Replace(path) + "'"
}
