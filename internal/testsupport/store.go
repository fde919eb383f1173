package testsupport

import (
	"context"
	"testing"

	"github.com/yehx1/video-translate/internal/config"
	"github.com/yehx1/video-translate/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask creates a task for tests using the provided store.
func NewTask(t testing.TB, store *queue.Store, userID int64, title, videoFile string) *queue.Task {
	t.Helper()

	task, err := store.NewTask(context.Background(), queue.NewTaskParams{
		UserID:         userID,
		Title:          title,
		VideoFile:      videoFile,
		TargetLanguage: "en",
		TargetLangName: "English",
	})
	if err != nil {
		t.Fatalf("store.NewTask: %v", err)
	}
	return task
}
