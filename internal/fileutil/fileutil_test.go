package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCopyFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	dst := filepath.Join(dir, "nested", "deep", "dst.txt")
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("copied content = %q", data)
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFile(filepath.Join(dir, "absent"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "final.mp4")
	if err := os.WriteFile(src, []byte("video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	target := filepath.Join(dir, "media")
	final, err := Publish(src, target, "task_1.mp4")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if final != filepath.Join(target, "task_1.mp4") {
		t.Fatalf("final path = %q", final)
	}

	data, err := os.ReadFile(final)
	if err != nil {
		t.Fatalf("read published: %v", err)
	}
	if string(data) != "video" {
		t.Fatalf("published content = %q", data)
	}

	// No partial file may remain.
	entries, err := os.ReadDir(target)
	if err != nil {
		t.Fatalf("read target dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".part") {
			t.Fatalf("partial file left behind: %s", entry.Name())
		}
	}
}

func TestPublishDisabledWhenTargetEmpty(t *testing.T) {
	final, err := Publish("/nonexistent", "", "x.mp4")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if final != "" {
		t.Fatalf("final = %q, want empty", final)
	}
}
