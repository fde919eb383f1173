package media

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yehx1/video-translate/internal/config"
	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/services"
)

// recordingRunner captures every command instead of executing it.
type recordingRunner struct {
	commands [][]string
	output   string
	err      error
}

func (r *recordingRunner) Run(ctx context.Context, taskID int64, name string, args ...string) error {
	r.commands = append(r.commands, append([]string{name}, args...))
	return r.err
}

func (r *recordingRunner) Output(ctx context.Context, taskID int64, name string, args ...string) (string, error) {
	r.commands = append(r.commands, append([]string{name}, args...))
	return r.output, r.err
}

func newTestToolchain(runner Runner) *Toolchain {
	cfg := config.Default().Media
	return NewToolchain(cfg, runner, logging.NewNop())
}

func (r *recordingRunner) last(t *testing.T) string {
	t.Helper()
	if len(r.commands) == 0 {
		t.Fatal("no command recorded")
	}
	return strings.Join(r.commands[len(r.commands)-1], " ")
}

func TestProbeDuration(t *testing.T) {
	runner := &recordingRunner{output: "63.417000\n"}
	tc := newTestToolchain(runner)

	got, err := tc.ProbeDuration(context.Background(), 1, "/videos/in.mp4")
	if err != nil {
		t.Fatalf("ProbeDuration: %v", err)
	}
	if got != 63.417 {
		t.Fatalf("duration = %v", got)
	}
	if cmd := runner.last(t); !strings.HasPrefix(cmd, "ffprobe ") {
		t.Fatalf("command = %q", cmd)
	}
}

func TestProbeDurationRejectsGarbage(t *testing.T) {
	runner := &recordingRunner{output: "N/A"}
	tc := newTestToolchain(runner)

	_, err := tc.ProbeDuration(context.Background(), 1, "/videos/in.mp4")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestMuxFinalSoftSubtitles(t *testing.T) {
	runner := &recordingRunner{}
	tc := newTestToolchain(runner)

	err := tc.MuxFinal(context.Background(), 1, MuxParams{
		BgVideo:        "/w/bg.mp4",
		TTSAudio:       "/w/tts.wav",
		SubtitlePath:   "/w/captions.srt",
		SubtitleFormat: "srt",
		BgmVolume:      0.4,
		TTSVolume:      1.0,
		OutPath:        "/w/final.mp4",
	})
	if err != nil {
		t.Fatalf("MuxFinal: %v", err)
	}

	cmd := runner.last(t)
	for _, want := range []string{
		"-i /w/captions.srt",
		"-map 0:v",
		"-map [aout]",
		"-c:v copy",
		"-map 2:s -c:s mov_text",
		"volume=0.40",
		"volume=1.00",
	} {
		if !strings.Contains(cmd, want) {
			t.Fatalf("command %q missing %q", cmd, want)
		}
	}
	if strings.Contains(cmd, "libx264") {
		t.Fatal("soft-subtitle mux must not re-encode video")
	}
}

func TestMuxFinalBurnedSubtitles(t *testing.T) {
	runner := &recordingRunner{}
	tc := newTestToolchain(runner)

	err := tc.MuxFinal(context.Background(), 1, MuxParams{
		BgVideo:        "/w/bg.mp4",
		TTSAudio:       "/w/tts.wav",
		SubtitlePath:   "/w/captions.ass",
		SubtitleFormat: "ass",
		Burn:           true,
		OutPath:        "/w/final.mp4",
	})
	if err != nil {
		t.Fatalf("MuxFinal: %v", err)
	}

	cmd := runner.last(t)
	for _, want := range []string{
		"ass='/w/captions.ass'",
		"-map [vout]",
		"-c:v libx264",
	} {
		if !strings.Contains(cmd, want) {
			t.Fatalf("command %q missing %q", cmd, want)
		}
	}
	if strings.Contains(cmd, "-map 2:s") {
		t.Fatal("burned mux must not attach a subtitle stream")
	}
}

func TestMuxFinalDefaultsVolumes(t *testing.T) {
	runner := &recordingRunner{}
	tc := newTestToolchain(runner)

	err := tc.MuxFinal(context.Background(), 1, MuxParams{
		BgVideo:  "/w/bg.mp4",
		TTSAudio: "/w/tts.wav",
		OutPath:  "/w/final.mp4",
	})
	if err != nil {
		t.Fatalf("MuxFinal: %v", err)
	}
	cmd := runner.last(t)
	if !strings.Contains(cmd, "volume=0.40") || !strings.Contains(cmd, "volume=1.00") {
		t.Fatalf("default volumes missing in %q", cmd)
	}
}

func TestAtempoChain(t *testing.T) {
	cases := []struct {
		factor float64
		want   string
	}{
		{1.2, "atempo=1.2000"},
		{1.8, "atempo=1.8000"},
		{3.0, "atempo=2.0,atempo=1.5000"},
		{5.0, "atempo=2.0,atempo=2.0,atempo=1.2500"},
		{0.25, "atempo=0.5,atempo=0.5000"},
	}
	for _, tc := range cases {
		got, err := atempoChain(tc.factor)
		if err != nil {
			t.Fatalf("atempoChain(%v): %v", tc.factor, err)
		}
		if got != tc.want {
			t.Errorf("atempoChain(%v) = %q, want %q", tc.factor, got, tc.want)
		}
	}
	if _, err := atempoChain(0); err == nil {
		t.Fatal("zero factor accepted")
	}
}

func TestMixClipsAppliesOffsets(t *testing.T) {
	runner := &recordingRunner{}
	tc := newTestToolchain(runner)

	err := tc.MixClips(context.Background(), 1, []Clip{
		{Path: "/w/cue_0001.wav", Offset: 0},
		{Path: "/w/cue_0002.wav", Offset: 2.5},
	}, 30, "/w/track.wav")
	if err != nil {
		t.Fatalf("MixClips: %v", err)
	}

	cmd := runner.last(t)
	for _, want := range []string{
		"anullsrc=r=44100:cl=stereo:d=30.000",
		"adelay=0|0",
		"adelay=2500|2500",
		"amix=inputs=3",
	} {
		if !strings.Contains(cmd, want) {
			t.Fatalf("command %q missing %q", cmd, want)
		}
	}
}

func TestMixClipsEmptyProducesSilence(t *testing.T) {
	runner := &recordingRunner{}
	tc := newTestToolchain(runner)

	if err := tc.MixClips(context.Background(), 1, nil, 12.5, "/w/track.wav"); err != nil {
		t.Fatalf("MixClips: %v", err)
	}
	cmd := runner.last(t)
	if !strings.Contains(cmd, "anullsrc=r=44100:cl=stereo:d=12.500") {
		t.Fatalf("command = %q", cmd)
	}
	if strings.Contains(cmd, "amix") {
		t.Fatal("empty mix should not build a filter graph")
	}
}

func TestEscapeFilterPath(t *testing.T) {
	got := escapeFilterPath(`/tmp/it's [a], file;x:y`)
	want := `'/tmp/it\'s \[a\]\, file\;x\:y'`
	if got != want {
		t.Fatalf("escaped = %q, want %q", got, want)
	}
}
