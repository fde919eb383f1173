package subtitles

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yehx1/video-translate/internal/queue"
)

func sampleCues(taskID int64) []queue.Subtitle {
	return []queue.Subtitle{
		{TaskID: taskID, Sequence: 1, StartTime: 0, EndTime: 2, OriginalText: "hello", TranslatedText: "你好"},
		{TaskID: taskID, Sequence: 2, StartTime: 2.5, EndTime: 4, OriginalText: "untranslated"},
		{TaskID: taskID, Sequence: 3, StartTime: 4, EndTime: 5, OriginalText: "   "},
	}
}

func TestWriteSRT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	if err := WriteSRT(path, sampleCues(1)); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read srt: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "1\n00:00:00,000 --> 00:00:02,000\n你好") {
		t.Fatalf("translated cue missing:\n%s", content)
	}
	// Cues without translation fall back to the original text.
	if !strings.Contains(content, "2\n00:00:02,500 --> 00:00:04,000\nuntranslated") {
		t.Fatalf("fallback cue missing:\n%s", content)
	}
	// Blank cues are skipped, so numbering stops at 2.
	if strings.Contains(content, "\n3\n") {
		t.Fatalf("empty cue was rendered:\n%s", content)
	}
}

func TestWriteSRTPrefersStoredTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.srt")
	cues := []queue.Subtitle{
		{Sequence: 1, StartTime: 0, EndTime: 2, StartTimeSRT: "00:00:00,100", EndTimeSRT: "00:00:02,100", OriginalText: "hi"},
	}
	if err := WriteSRT(path, cues); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "00:00:00,100 --> 00:00:02,100") {
		t.Fatalf("stored timestamps not used:\n%s", data)
	}
}

func TestWriteASS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ass")
	style := queue.DefaultSubtitleStyle()
	if err := WriteASS(path, sampleCues(1), style); err != nil {
		t.Fatalf("WriteASS: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ass: %v", err)
	}
	content := string(data)

	for _, want := range []string{
		"[Script Info]",
		"Style: BoxBG,Noto Sans,24,",
		"Style: Stroke,Noto Sans,24,",
		"Dialogue: 0,0:00:00.00,0:00:02.00,BoxBG,,0,0,0,,你好",
		"Dialogue: 1,0:00:00.00,0:00:02.00,Stroke,,0,0,0,,你好",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("missing %q in:\n%s", want, content)
		}
	}
}

func TestWriteASSEscapesNewlines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ass")
	cues := []queue.Subtitle{
		{Sequence: 1, StartTime: 0, EndTime: 1, TranslatedText: "line one\nline two"},
	}
	if err := WriteASS(path, cues, queue.DefaultSubtitleStyle()); err != nil {
		t.Fatalf("WriteASS: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `line one\Nline two`) {
		t.Fatalf("newline not escaped:\n%s", data)
	}
}

func TestHexToASSColor(t *testing.T) {
	got, err := hexToASSColor("#FFFFFF", 0)
	if err != nil {
		t.Fatalf("hexToASSColor: %v", err)
	}
	if got != "&H00FFFFFF" {
		t.Fatalf("white = %q, want &H00FFFFFF", got)
	}

	// 60% opacity maps to alpha 0x66 (102), channels reversed to BGR.
	got, err = hexToASSColor("#112233", 0.6)
	if err != nil {
		t.Fatalf("hexToASSColor: %v", err)
	}
	if got != "&H66332211" {
		t.Fatalf("color = %q, want &H66332211", got)
	}

	if _, err := hexToASSColor("bogus", 0); err == nil {
		t.Fatal("malformed color accepted")
	}
}
