package tts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/yehx1/video-translate/internal/cancel"
	"github.com/yehx1/video-translate/internal/config"
	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/media"
	"github.com/yehx1/video-translate/internal/queue"
	"github.com/yehx1/video-translate/internal/services"
)

// scriptedRunner records commands and answers ffprobe calls from a scripted
// list of durations.
type scriptedRunner struct {
	mu        sync.Mutex
	commands  [][]string
	durations []string
	failName  string
	failErr   error
}

func (r *scriptedRunner) Run(ctx context.Context, taskID int64, name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, append([]string{name}, args...))
	if name == r.failName {
		return r.failErr
	}
	return nil
}

func (r *scriptedRunner) Output(ctx context.Context, taskID int64, name string, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, append([]string{name}, args...))
	if name == r.failName {
		return "", r.failErr
	}
	if len(r.durations) == 0 {
		return "1.0", nil
	}
	next := r.durations[0]
	r.durations = r.durations[1:]
	return next, nil
}

func (r *scriptedRunner) byBinary(name string) [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out [][]string
	for _, cmd := range r.commands {
		if cmd[0] == name {
			out = append(out, cmd)
		}
	}
	return out
}

func newTestService(runner *scriptedRunner, worker *Worker, registry *cancel.Registry) *Service {
	cfg := config.Default()
	cfg.TTS.Engine = "edge"
	toolchain := media.NewToolchain(cfg.Media, runner, logging.NewNop())
	return NewService(cfg.TTS, toolchain, runner, worker, registry, logging.NewNop())
}

func sampleParams(t *testing.T) SynthesizeParams {
	t.Helper()
	return SynthesizeParams{
		TaskID: 1,
		Cues: []queue.Subtitle{
			{Sequence: 1, StartTime: 0, EndTime: 2, TranslatedText: "first"},
			{Sequence: 2, StartTime: 3, EndTime: 5, TranslatedText: "second"},
		},
		Voice:    "en-US-AriaNeural",
		Language: "en",
		Duration: 30,
		WorkDir:  t.TempDir(),
	}
}

func TestSynthesizeTrackMixesAtCueOffsets(t *testing.T) {
	runner := &scriptedRunner{durations: []string{"1.5", "1.5"}}
	svc := newTestService(runner, nil, cancel.NewRegistry())

	out, err := svc.SynthesizeTrack(context.Background(), sampleParams(t))
	if err != nil {
		t.Fatalf("SynthesizeTrack: %v", err)
	}
	if !strings.HasSuffix(out, "tts_track.wav") {
		t.Fatalf("output path = %q", out)
	}

	edge := runner.byBinary("edge-tts")
	if len(edge) != 2 {
		t.Fatalf("edge-tts invocations = %d", len(edge))
	}
	joined := strings.Join(edge[0], " ")
	if !strings.Contains(joined, "--text first") || !strings.Contains(joined, "--voice en-US-AriaNeural") {
		t.Fatalf("edge command = %q", joined)
	}

	ffmpeg := runner.byBinary("ffmpeg")
	if len(ffmpeg) != 1 {
		t.Fatalf("ffmpeg invocations = %d (clips fit their windows, no retiming expected)", len(ffmpeg))
	}
	mix := strings.Join(ffmpeg[0], " ")
	for _, want := range []string{"anullsrc=r=44100:cl=stereo:d=30.000", "adelay=0|0", "adelay=3000|3000"} {
		if !strings.Contains(mix, want) {
			t.Fatalf("mix command %q missing %q", mix, want)
		}
	}
}

func TestSynthesizeTrackPushesOverlappingCueForward(t *testing.T) {
	runner := &scriptedRunner{durations: []string{"4.0", "1.0"}}
	params := sampleParams(t)
	params.Cues = []queue.Subtitle{
		{Sequence: 1, StartTime: 0, EndTime: 5, TranslatedText: "long opener"},
		{Sequence: 2, StartTime: 2, EndTime: 3, TranslatedText: "too soon"},
	}
	svc := newTestService(runner, nil, cancel.NewRegistry())

	if _, err := svc.SynthesizeTrack(context.Background(), params); err != nil {
		t.Fatalf("SynthesizeTrack: %v", err)
	}

	ffmpeg := runner.byBinary("ffmpeg")
	mix := strings.Join(ffmpeg[len(ffmpeg)-1], " ")
	// Second cue starts at 2s but the first clip occupies 0..4, so it lands
	// at 4s. Its 1s clip exceeds the 1s window by nothing after the push.
	if !strings.Contains(mix, "adelay=4000|4000") {
		t.Fatalf("mix command %q should delay the second clip to 4s", mix)
	}
}

func TestSynthesizeTrackCompressesOverlongClip(t *testing.T) {
	runner := &scriptedRunner{durations: []string{"3.0", "1.0"}}
	svc := newTestService(runner, nil, cancel.NewRegistry())

	if _, err := svc.SynthesizeTrack(context.Background(), sampleParams(t)); err != nil {
		t.Fatalf("SynthesizeTrack: %v", err)
	}

	ffmpeg := runner.byBinary("ffmpeg")
	var tempo string
	for _, cmd := range ffmpeg {
		joined := strings.Join(cmd, " ")
		if strings.Contains(joined, "-filter:a") {
			tempo = joined
		}
	}
	// 3s of speech into a 2s window: factor 1.5.
	if !strings.Contains(tempo, "atempo=1.5000") {
		t.Fatalf("tempo command = %q", tempo)
	}
	if !strings.Contains(tempo, "cue_0001_fit.wav") {
		t.Fatalf("tempo command %q should write the retimed clip", tempo)
	}

	mix := strings.Join(ffmpeg[len(ffmpeg)-1], " ")
	if !strings.Contains(mix, "cue_0001_fit.wav") {
		t.Fatalf("mix %q should use the retimed clip", mix)
	}
}

func TestSynthesizeTrackCapsCompression(t *testing.T) {
	runner := &scriptedRunner{durations: []string{"9.0", "1.0"}}
	svc := newTestService(runner, nil, cancel.NewRegistry())

	if _, err := svc.SynthesizeTrack(context.Background(), sampleParams(t)); err != nil {
		t.Fatalf("SynthesizeTrack: %v", err)
	}

	found := false
	for _, cmd := range runner.byBinary("ffmpeg") {
		joined := strings.Join(cmd, " ")
		if strings.Contains(joined, "atempo=1.8000") {
			found = true
		}
		if strings.Contains(joined, "atempo=2.0") {
			t.Fatalf("compression exceeded the cap: %q", joined)
		}
	}
	if !found {
		t.Fatal("expected a capped retime at factor 1.8")
	}
}

func TestSynthesizeTrackSkipsUntranslatedCues(t *testing.T) {
	runner := &scriptedRunner{durations: []string{"1.0"}}
	params := sampleParams(t)
	params.Cues[0].TranslatedText = "   "
	svc := newTestService(runner, nil, cancel.NewRegistry())

	if _, err := svc.SynthesizeTrack(context.Background(), params); err != nil {
		t.Fatalf("SynthesizeTrack: %v", err)
	}
	if got := len(runner.byBinary("edge-tts")); got != 1 {
		t.Fatalf("edge-tts invocations = %d, want 1", got)
	}
}

func TestSynthesizeTrackHonorsStopRequest(t *testing.T) {
	runner := &scriptedRunner{}
	registry := cancel.NewRegistry()
	registry.RequestStop(1)
	svc := newTestService(runner, nil, registry)

	_, err := svc.SynthesizeTrack(context.Background(), sampleParams(t))
	if !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if len(runner.byBinary("edge-tts")) != 0 {
		t.Fatal("no synthesis should run after a stop request")
	}
}

func TestSynthesizeCueFallsBackToResidentWorker(t *testing.T) {
	runner := &scriptedRunner{
		durations: []string{"1.0", "1.0"},
		failName:  "edge-tts",
		failErr:   services.Wrap(services.ErrCommandFailed, "", "edge-tts", "exit status 1", nil),
	}
	worker := NewWorker(echoWorker(t, `{"ok":true}`), 10, logging.NewNop())
	defer worker.Close()
	svc := newTestService(runner, worker, cancel.NewRegistry())

	if _, err := svc.SynthesizeTrack(context.Background(), sampleParams(t)); err != nil {
		t.Fatalf("SynthesizeTrack with fallback: %v", err)
	}
}

func TestSynthesizeCueUnknownEngine(t *testing.T) {
	runner := &scriptedRunner{}
	svc := newTestService(runner, nil, cancel.NewRegistry())
	svc.cfg.Engine = "festival"

	_, err := svc.SynthesizeTrack(context.Background(), sampleParams(t))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}
