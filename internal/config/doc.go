// Package config loads, normalizes, and validates the TOML configuration
// for the video-translate daemon and CLI.
package config
