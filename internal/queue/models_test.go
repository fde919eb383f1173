package queue

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"QUEUED", StatusQueued, true},
		{"processing", StatusProcessing, true},
		{" review ", StatusReview, true},
		{"", "", false},
		{"DONE", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseStatus(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("ParseStatus(%q) = %q/%v, want %q/%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParsePhase(t *testing.T) {
	if phase, ok := ParsePhase("Finalize"); !ok || phase != PhaseFinalize {
		t.Fatalf("ParsePhase(Finalize) = %q/%v", phase, ok)
	}
	if _, ok := ParsePhase("encode"); ok {
		t.Fatal("ParsePhase accepted unknown phase")
	}
}

func TestOrderKeyPrefersEnqueuedAt(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	enqueued := created.Add(time.Hour)

	task := Task{CreatedAt: created}
	if !task.OrderKey().Equal(created) {
		t.Fatal("order key should fall back to created_at")
	}
	task.EnqueuedAt = &enqueued
	if !task.OrderKey().Equal(enqueued) {
		t.Fatal("order key should prefer enqueued_at")
	}
}

func TestRetryLimit(t *testing.T) {
	task := Task{}
	if got := task.RetryLimit(3); got != 3 {
		t.Fatalf("fallback limit = %d, want 3", got)
	}
	task.MaxAttempts = 5
	if got := task.RetryLimit(3); got != 5 {
		t.Fatalf("per-task limit = %d, want 5", got)
	}
}
