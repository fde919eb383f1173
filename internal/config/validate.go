package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration invariants after normalization.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		problems = append(problems, "paths.work_dir is required")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir is required")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir is required")
	}

	if c.Dispatcher.MaxParallel < 1 {
		problems = append(problems, "dispatcher.max_parallel must be at least 1")
	}
	if c.Dispatcher.TickSeconds < 1 {
		problems = append(problems, "dispatcher.tick_seconds must be at least 1")
	}
	if c.Dispatcher.LeaseSeconds <= c.Dispatcher.HeartbeatSeconds {
		problems = append(problems, "dispatcher.lease_seconds must exceed dispatcher.heartbeat_seconds")
	}
	if c.Dispatcher.HeartbeatSeconds < 1 {
		problems = append(problems, "dispatcher.heartbeat_seconds must be at least 1")
	}
	if c.Dispatcher.HeartbeatStaleSeconds <= c.Dispatcher.HeartbeatSeconds {
		problems = append(problems, "dispatcher.heartbeat_stale_seconds must exceed dispatcher.heartbeat_seconds")
	}
	if c.Dispatcher.ProcessingTimeoutSeconds < 1 {
		problems = append(problems, "dispatcher.processing_timeout_seconds must be at least 1")
	}
	if c.Dispatcher.MaxAttempts < 1 {
		problems = append(problems, "dispatcher.max_attempts must be at least 1")
	}
	if c.Dispatcher.MaxQueuedPerUser < 1 {
		problems = append(problems, "dispatcher.max_queued_per_user must be at least 1")
	}

	if c.Media.FFmpegBinary == "" {
		problems = append(problems, "media.ffmpeg_binary is required")
	}
	if c.Media.FFprobeBinary == "" {
		problems = append(problems, "media.ffprobe_binary is required")
	}
	if c.Media.MaxVideoSeconds < 1 {
		problems = append(problems, "media.max_video_seconds must be at least 1")
	}

	if c.Translate.CharsPerSecond < 1 {
		problems = append(problems, "translate.chars_per_second must be at least 1")
	}
	if c.Translate.BatchSize < 1 {
		problems = append(problems, "translate.batch_size must be at least 1")
	}
	if c.Translate.TimeoutSeconds < 1 {
		problems = append(problems, "translate.timeout_seconds must be at least 1")
	}

	switch c.TTS.Engine {
	case "edge", "xtts":
	default:
		problems = append(problems, fmt.Sprintf("tts.engine %q is not supported (edge, xtts)", c.TTS.Engine))
	}
	if c.TTS.RequestTimeoutSeconds < 1 {
		problems = append(problems, "tts.request_timeout_seconds must be at least 1")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
