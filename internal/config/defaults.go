package config

// Default returns the built-in configuration values.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  "~/.local/share/video-translate/work",
			MediaDir: "",
			DataDir:  "~/.local/share/video-translate",
			LogDir:   "~/.local/share/video-translate/logs",
		},
		Dispatcher: Dispatcher{
			MaxParallel:              2,
			TickSeconds:              2,
			LeaseSeconds:             600,
			HeartbeatSeconds:         15,
			HeartbeatStaleSeconds:    120,
			ProcessingTimeoutSeconds: 600,
			MaxAttempts:              3,
			MaxQueuedPerUser:         3,
		},
		Media: Media{
			FFmpegBinary:    "ffmpeg",
			FFprobeBinary:   "ffprobe",
			DemucsBinary:    "demucs",
			MaxVideoSeconds: 1800,
		},
		Translate: Translate{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 120,
			CharsPerSecond: 15,
			BatchSize:      20,
		},
		Transcribe: Transcribe{
			WhisperBinary: "whisper",
			Model:         "small",
			Device:        "cpu",
		},
		TTS: TTS{
			Engine:                "edge",
			EdgeBinary:            "edge-tts",
			RequestTimeoutSeconds: 300,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
