package config

import "strings"

func (c *Config) normalize() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return err
	}
	if c.Paths.MediaDir, err = expandPath(c.Paths.MediaDir); err != nil {
		return err
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	c.Media.FFmpegBinary = strings.TrimSpace(c.Media.FFmpegBinary)
	c.Media.FFprobeBinary = strings.TrimSpace(c.Media.FFprobeBinary)
	c.Media.DemucsBinary = strings.TrimSpace(c.Media.DemucsBinary)

	c.Translate.APIKey = strings.TrimSpace(c.Translate.APIKey)
	c.Translate.BaseURL = strings.TrimRight(strings.TrimSpace(c.Translate.BaseURL), "/")
	c.Translate.Model = strings.TrimSpace(c.Translate.Model)

	c.Transcribe.WhisperBinary = strings.TrimSpace(c.Transcribe.WhisperBinary)
	c.Transcribe.Model = strings.TrimSpace(c.Transcribe.Model)
	c.Transcribe.Device = strings.TrimSpace(c.Transcribe.Device)

	c.TTS.Engine = strings.ToLower(strings.TrimSpace(c.TTS.Engine))
	c.TTS.EdgeBinary = strings.TrimSpace(c.TTS.EdgeBinary)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	return nil
}
