package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yehx1/video-translate/internal/cancel"
	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/queue"
	"github.com/yehx1/video-translate/internal/testsupport"
)

func startServer(t *testing.T) (*Client, *queue.Store, *cancel.Registry, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	registry := cancel.NewRegistry()
	socket := filepath.Join(cfg.Paths.DataDir, "vtd.sock")

	server, err := NewServer(context.Background(), ServerParams{
		SocketPath: socket,
		Store:      store,
		Registry:   registry,
		WorkerID:   "host:1:deadbeef",
		StartedAt:  time.Now(),
		Logger:     logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := Dial(socket)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, store, registry, socket
}

func TestStatusOverSocket(t *testing.T) {
	client, store, _, _ := startServer(t)
	testsupport.NewTask(t, store, 1, "one", "/videos/a.mp4")
	testsupport.NewTask(t, store, 1, "two", "/videos/b.mp4")

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.WorkerID != "host:1:deadbeef" {
		t.Fatalf("status = %+v", status)
	}
	if status.Total != 2 || status.Queued != 2 {
		t.Fatalf("counts = %+v", status)
	}
}

func TestQueuePositionOverSocket(t *testing.T) {
	client, store, _, _ := startServer(t)
	first := testsupport.NewTask(t, store, 1, "one", "/videos/a.mp4")
	second := testsupport.NewTask(t, store, 1, "two", "/videos/b.mp4")

	resp, err := client.QueuePosition(second.ID)
	if err != nil {
		t.Fatalf("QueuePosition: %v", err)
	}
	if resp.Position != 2 || resp.Total != 2 {
		t.Fatalf("position = %+v", resp)
	}

	resp, err = client.QueuePosition(first.ID)
	if err != nil {
		t.Fatalf("QueuePosition: %v", err)
	}
	if resp.Position != 1 {
		t.Fatalf("position = %+v", resp)
	}
}

func TestStopTaskFlagsRegistryAndSettlesRow(t *testing.T) {
	client, store, registry, _ := startServer(t)
	task := testsupport.NewTask(t, store, 1, "one", "/videos/a.mp4")

	resp, err := client.StopTask(task.ID)
	if err != nil {
		t.Fatalf("StopTask: %v", err)
	}
	if resp.Status != string(queue.StatusFailed) {
		t.Fatalf("status = %q, want FAILED for a stopped prepare task", resp.Status)
	}
	if !registry.IsStopRequested(task.ID) {
		t.Fatal("stop flag not raised before the transition")
	}

	got, err := store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusFailed || got.HasOwner() {
		t.Fatalf("row = %+v", got)
	}
}

func TestStopTaskUnknownIDReturnsError(t *testing.T) {
	client, _, _, _ := startServer(t)
	if _, err := client.StopTask(9999); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestCloseRemovesSocket(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	socket := filepath.Join(cfg.Paths.DataDir, "vtd.sock")

	server, err := NewServer(context.Background(), ServerParams{
		SocketPath: socket,
		Store:      store,
		Registry:   cancel.NewRegistry(),
		WorkerID:   "host:1:deadbeef",
		StartedAt:  time.Now(),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	server.Serve()
	server.Close()

	if _, err := os.Stat(socket); !os.IsNotExist(err) {
		t.Fatalf("socket should be removed, stat err = %v", err)
	}
}
