package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// WorkDir holds per-task intermediate artifacts (audio, subtitles, muxes).
	WorkDir string `toml:"work_dir"`
	// MediaDir is the publish root visible to the frontend. Empty disables publishing.
	MediaDir string `toml:"media_dir"`
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
}

// Dispatcher contains timing and admission settings for the task loop.
type Dispatcher struct {
	MaxParallel              int `toml:"max_parallel"`
	TickSeconds              int `toml:"tick_seconds"`
	LeaseSeconds             int `toml:"lease_seconds"`
	HeartbeatSeconds         int `toml:"heartbeat_seconds"`
	HeartbeatStaleSeconds    int `toml:"heartbeat_stale_seconds"`
	ProcessingTimeoutSeconds int `toml:"processing_timeout_seconds"`
	// MaxAttempts bounds rescue-driven retries for tasks that do not carry
	// their own max_attempts value.
	MaxAttempts      int `toml:"max_attempts"`
	MaxQueuedPerUser int `toml:"max_queued_per_user"`
}

// Media contains external tool names and input limits.
type Media struct {
	FFmpegBinary    string `toml:"ffmpeg_binary"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
	DemucsBinary    string `toml:"demucs_binary"`
	MaxVideoSeconds int    `toml:"max_video_seconds"`
}

// Translate contains settings for the OpenAI-compatible translation backend.
type Translate struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// CharsPerSecond caps translated line length relative to cue duration.
	CharsPerSecond int `toml:"chars_per_second"`
	BatchSize      int `toml:"batch_size"`
}

// Transcribe contains speech-to-text settings.
type Transcribe struct {
	WhisperBinary string `toml:"whisper_binary"`
	Model         string `toml:"model"`
	Device        string `toml:"device"`
}

// TTS contains speech synthesis settings.
type TTS struct {
	// Engine selects the primary synthesizer: "edge" or "xtts".
	Engine     string `toml:"engine"`
	EdgeBinary string `toml:"edge_binary"`
	// XTTSCommand launches the resident synthesis worker.
	XTTSCommand           []string `toml:"xtts_command"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the daemon.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Dispatcher Dispatcher `toml:"dispatcher"`
	Media      Media      `toml:"media"`
	Translate  Translate  `toml:"translate"`
	Transcribe Transcribe `toml:"transcribe"`
	TTS        TTS        `toml:"tts"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/video-translate/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. A .env file in the
// working directory is loaded first so credentials can stay out of the TOML.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// applyEnv overlays credentials from the environment over TOML values.
func (c *Config) applyEnv() {
	if key := strings.TrimSpace(os.Getenv("VT_TRANSLATE_API_KEY")); key != "" {
		c.Translate.APIKey = key
	} else if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" && c.Translate.APIKey == "" {
		c.Translate.APIKey = key
	}
	if base := strings.TrimSpace(os.Getenv("VT_TRANSLATE_BASE_URL")); base != "" {
		c.Translate.BaseURL = base
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("video-translate.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// MediaDir is created on a best-effort basis so the daemon can run when the
// publish volume is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.MediaDir) != "" {
		_ = os.MkdirAll(c.Paths.MediaDir, 0o755)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
