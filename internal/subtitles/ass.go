package subtitles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yehx1/video-translate/internal/queue"
)

// WriteASS renders cues to an ASS file with two stacked styles: an opaque
// box layer behind the text and a stroked text layer on top. Colors come
// from the task's style parameters as #RRGGBB hex.
func WriteASS(path string, subs []queue.Subtitle, style queue.SubtitleStyle) error {
	primary, err := hexToASSColor(style.FontColor, 0)
	if err != nil {
		return err
	}
	outline, err := hexToASSColor(style.OutlineColor, 0)
	if err != nil {
		return err
	}
	back, err := hexToASSColor(style.BackColor, style.BackOpacity)
	if err != nil {
		return err
	}

	font := style.FontName
	if font == "" {
		font = "Noto Sans"
	}
	size := style.FontSize
	if size <= 0 {
		size = 24
	}
	alignment := style.Alignment
	if alignment <= 0 {
		alignment = 2
	}

	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	b.WriteString("PlayResX: 1920\n")
	b.WriteString("PlayResY: 1080\n")
	b.WriteString("WrapStyle: 0\n\n")

	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	// BorderStyle 3 draws an opaque box using BackColour; the box layer
	// carries no visible text fill of its own beyond the box.
	fmt.Fprintf(&b, "Style: BoxBG,%s,%d,%s,%s,%s,%s,%d,%d,%d,0,100,100,0,0,3,%.1f,0,%d,30,30,30,1\n",
		font, size, primary, primary, back, back,
		assBool(style.FontBold), assBool(style.FontItalic), assBool(style.FontUnderline),
		style.OutlineWidth, alignment,
	)
	fmt.Fprintf(&b, "Style: Stroke,%s,%d,%s,%s,%s,%s,%d,%d,%d,0,100,100,0,0,1,%.1f,0,%d,30,30,30,1\n",
		font, size, primary, primary, outline, back,
		assBool(style.FontBold), assBool(style.FontItalic), assBool(style.FontUnderline),
		style.OutlineWidth, alignment,
	)
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	for _, sub := range subs {
		text := cueText(sub)
		if text == "" {
			continue
		}
		text = escapeASSText(text)
		start := FormatASS(sub.StartTime)
		end := FormatASS(sub.EndTime)
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,BoxBG,,0,0,0,,%s\n", start, end, text)
		fmt.Fprintf(&b, "Dialogue: 1,%s,%s,Stroke,,0,0,0,,%s\n", start, end, text)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create subtitle directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write ass: %w", err)
	}
	return nil
}

// hexToASSColor converts "#RRGGBB" to the ASS "&HAABBGGRR" form. opacity is
// 0..1 where 1 is fully opaque; ASS alpha runs the other way.
func hexToASSColor(hex string, opacity float64) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if trimmed == "" {
		trimmed = "FFFFFF"
	}
	if len(trimmed) != 6 {
		return "", fmt.Errorf("invalid color %q", hex)
	}
	var r, g, b int
	if _, err := fmt.Sscanf(strings.ToUpper(trimmed), "%02X%02X%02X", &r, &g, &b); err != nil {
		return "", fmt.Errorf("invalid color %q", hex)
	}
	alpha := 0
	if opacity > 0 {
		if opacity > 1 {
			opacity = 1
		}
		alpha = int((1 - opacity) * 255)
	}
	return fmt.Sprintf("&H%02X%02X%02X%02X", alpha, b, g, r), nil
}

func assBool(value bool) int {
	if value {
		return -1
	}
	return 0
}

func escapeASSText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", "\\N")
	return text
}
