// Package subtitles renders subtitle cues to SRT and ASS files and converts
// between timestamp representations. It performs no I/O beyond writing the
// requested files and reports malformed input as validation errors.
package subtitles

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yehx1/video-translate/internal/services"
)

// FormatSRT renders seconds as an SRT timestamp (HH:MM:SS,mmm).
func FormatSRT(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	millis := int64(math.Round(seconds * 1000))
	h := millis / 3600000
	m := (millis % 3600000) / 60000
	s := (millis % 60000) / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// FormatASS renders seconds as an ASS timestamp (H:MM:SS.cc).
func FormatASS(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	centis := int64(math.Round(seconds * 100))
	h := centis / 360000
	m := (centis % 360000) / 6000
	s := (centis % 6000) / 100
	cs := centis % 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// ParseSeconds converts a timestamp into seconds. Accepted forms: plain
// seconds ("12.5"), MM:SS, HH:MM:SS, and the SRT comma variant
// (HH:MM:SS,mmm). Malformed input yields a validation error.
func ParseSeconds(value string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, services.Wrap(services.ErrValidation, "", "parse timestamp", "empty value", nil)
	}
	trimmed = strings.Replace(trimmed, ",", ".", 1)

	parts := strings.Split(trimmed, ":")
	if len(parts) > 3 {
		return 0, services.Wrap(services.ErrValidation, "", "parse timestamp", fmt.Sprintf("malformed value %q", value), nil)
	}

	total := 0.0
	for _, part := range parts {
		n, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || n < 0 {
			return 0, services.Wrap(services.ErrValidation, "", "parse timestamp", fmt.Sprintf("malformed value %q", value), nil)
		}
		total = total*60 + n
	}
	return total, nil
}
