package subtitles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yehx1/video-translate/internal/queue"
)

// WriteSRT renders cues to an SRT file. Translated text is preferred when
// present; cues with no text at all are skipped.
func WriteSRT(path string, subs []queue.Subtitle) error {
	var b strings.Builder
	index := 0
	for _, sub := range subs {
		text := cueText(sub)
		if text == "" {
			continue
		}
		index++
		start := sub.StartTimeSRT
		if start == "" {
			start = FormatSRT(sub.StartTime)
		}
		end := sub.EndTimeSRT
		if end == "" {
			end = FormatSRT(sub.EndTime)
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", index, start, end, text)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create subtitle directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

func cueText(sub queue.Subtitle) string {
	if text := strings.TrimSpace(sub.TranslatedText); text != "" {
		return text
	}
	return strings.TrimSpace(sub.OriginalText)
}
