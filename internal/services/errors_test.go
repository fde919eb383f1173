package services

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapComposesDetail(t *testing.T) {
	err := Wrap(ErrCommandFailed, "prepare", "extract audio", "exit status 1", errors.New("signal: killed"))
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("marker lost: %v", err)
	}
	msg := err.Error()
	for _, want := range []string{"command failed", "prepare", "extract audio", "exit status 1", "signal: killed"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing %q in %q", want, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "", "", "something odd", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient marker", err)
	}
}

func TestIsCancelled(t *testing.T) {
	wrapped := Wrap(ErrCancelled, "finalize", "synthesize", "stop requested", nil)
	if !IsCancelled(wrapped) {
		t.Fatal("wrapped cancellation not recognized")
	}
	if IsCancelled(Wrap(ErrCommandFailed, "", "", "boom", nil)) {
		t.Fatal("command failure misread as cancellation")
	}
}

func TestNeedsWorkerRestart(t *testing.T) {
	if !NeedsWorkerRestart(Wrap(ErrWorkerInit, "", "tts worker", "start", nil)) {
		t.Fatal("worker init error should trigger restart")
	}
	if !NeedsWorkerRestart(Wrap(ErrTimeout, "", "tts worker", "no reply", nil)) {
		t.Fatal("timeout should trigger restart")
	}
	if NeedsWorkerRestart(Wrap(ErrCommandFailed, "", "", "boom", nil)) {
		t.Fatal("command failure should not trigger restart")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("  short  ", 10); got != "short" {
		t.Fatalf("Truncate = %q", got)
	}
	long := strings.Repeat("x", 50)
	if got := Truncate(long, 10); len([]rune(got)) != 10 {
		t.Fatalf("Truncate length = %d, want 10", len([]rune(got)))
	}
	if got := Truncate("日本語のテキストです", 3); got != "日本語" {
		t.Fatalf("Truncate = %q, want 日本語", got)
	}
}
