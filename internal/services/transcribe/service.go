// Package transcribe produces timed transcript segments from an audio file
// using the configured whisper CLI.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yehx1/video-translate/internal/config"
	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/services"
)

// Runner executes external commands on behalf of a task.
type Runner interface {
	Run(ctx context.Context, taskID int64, name string, args ...string) error
}

// Segment is a single timed transcript span.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

// Service wraps the whisper binary.
type Service struct {
	cfg    config.Transcribe
	runner Runner
	logger *slog.Logger
}

// NewService builds a transcription service from configuration.
func NewService(cfg config.Transcribe, runner Runner, logger *slog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		runner: runner,
		logger: logging.NewComponentLogger(logger, "transcribe"),
	}
}

// Transcribe runs speech recognition over audioPath, writing whisper's output
// files into outDir, and returns the parsed segments in timeline order.
func (s *Service) Transcribe(ctx context.Context, taskID int64, audioPath, outDir string) ([]Segment, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}

	args := []string{
		audioPath,
		"--output_format", "json",
		"--output_dir", outDir,
	}
	if s.cfg.Model != "" {
		args = append(args, "--model", s.cfg.Model)
	}
	if s.cfg.Device != "" {
		args = append(args, "--device", s.cfg.Device)
	}

	s.logger.Info("transcribing audio",
		logging.Int64(logging.FieldTaskID, taskID),
		logging.String("model", s.cfg.Model))

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	resultPath := filepath.Join(outDir, base+".json")

	if err := s.runner.Run(ctx, taskID, s.cfg.WhisperBinary, args...); err != nil {
		// A stopped run may still have flushed a usable result file;
		// whatever was recognized by then is worth keeping.
		if services.IsCancelled(err) {
			if partial, perr := parseResultFile(resultPath); perr == nil {
				s.logger.Info("transcription stopped, keeping partial transcript",
					logging.Int64(logging.FieldTaskID, taskID),
					logging.Int("segments", len(partial)))
				return partial, nil
			}
		}
		return nil, err
	}

	segments, err := parseResultFile(resultPath)
	if err != nil {
		return nil, err
	}

	s.logger.Info("transcription complete",
		logging.Int64(logging.FieldTaskID, taskID),
		logging.Int("segments", len(segments)))
	return segments, nil
}

type whisperResult struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func parseResultFile(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrCommandFailed, "", "transcribe",
			fmt.Sprintf("transcript output missing: %s", path), err)
	}

	var result whisperResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, services.Wrap(services.ErrCommandFailed, "", "transcribe",
			"unparseable transcript output", err)
	}

	segments := make([]Segment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || seg.End <= seg.Start {
			continue
		}
		segments = append(segments, Segment{Start: seg.Start, End: seg.End, Text: text})
	}
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "", "transcribe",
			"no usable speech segments detected", nil)
	}
	return segments, nil
}
