// Package dispatch owns the processing loop: it admits queued tasks up to the
// parallelism limit, keeps leases alive while they run, and rescues tasks
// whose owner died.
package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yehx1/video-translate/internal/cancel"
	"github.com/yehx1/video-translate/internal/config"
	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/queue"
)

// Stage executes the phase a task was queued for.
type Stage interface {
	Execute(ctx context.Context, task *queue.Task) error
}

// Dispatcher drives the queue: every tick it rescues orphans, then admits
// queued tasks until the parallelism limit is reached. Each admitted task
// runs in its own goroutine paired with a heartbeat loop.
type Dispatcher struct {
	cfg      config.Dispatcher
	store    *queue.Store
	stage    Stage
	registry *cancel.Registry
	logger   *slog.Logger

	workerID string
	rescuer  *rescuer

	mu      sync.Mutex
	running map[int64]struct{}
	group   *errgroup.Group
}

// New builds a dispatcher with a fresh worker identity.
func New(cfg config.Dispatcher, store *queue.Store, stage Stage, registry *cancel.Registry, logger *slog.Logger) *Dispatcher {
	log := logging.NewComponentLogger(logger, "dispatch")
	return &Dispatcher{
		cfg:      cfg,
		store:    store,
		stage:    stage,
		registry: registry,
		logger:   log,
		workerID: newWorkerID(),
		rescuer:  newRescuer(cfg, store, log),
		running:  make(map[int64]struct{}),
	}
}

// WorkerID returns this dispatcher's identity as written into admitted rows.
func (d *Dispatcher) WorkerID() string {
	return d.workerID
}

// Run loops until ctx is cancelled, then waits for in-flight tasks to settle.
func (d *Dispatcher) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	d.mu.Lock()
	d.group = group
	d.mu.Unlock()

	tick := time.Duration(d.cfg.TickSeconds) * time.Second
	if tick <= 0 {
		tick = 2 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	d.logger.Info("dispatcher started",
		logging.String(logging.FieldWorkerID, d.workerID),
		logging.Int("max_parallel", d.cfg.MaxParallel))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping, waiting for in-flight tasks")
			err := group.Wait()
			d.logger.Info("dispatcher stopped")
			return err
		case <-ticker.C:
			if err := d.rescuer.sweep(ctx); err != nil {
				d.logger.Error("orphan sweep failed", logging.Error(err))
			}
			if err := d.admit(ctx, groupCtx); err != nil {
				d.logger.Error("admission failed", logging.Error(err))
			}
		}
	}
}

// admit claims queued tasks until the parallelism limit is reached. The
// limit counts every PROCESSING row in the store, not just our own
// goroutines: rows left behind by a crashed daemon hold their slot until the
// rescuer reclaims them.
func (d *Dispatcher) admit(ctx, groupCtx context.Context) error {
	maxParallel := d.cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}

	processing, err := d.store.CountProcessing(ctx)
	if err != nil {
		return fmt.Errorf("count processing: %w", err)
	}
	slots := maxParallel - processing
	if slots <= 0 {
		return nil
	}

	queued, err := d.store.ListQueued(ctx)
	if err != nil {
		return fmt.Errorf("list queued: %w", err)
	}

	for _, task := range queued {
		if slots <= 0 {
			return nil
		}

		leaseUntil := time.Now().UTC().Add(d.leaseDuration())
		claimed, err := d.store.AdmitForProcessing(ctx, task.ID, d.workerID, leaseUntil)
		if err != nil {
			return fmt.Errorf("admit task %d: %w", task.ID, err)
		}
		if !claimed {
			continue
		}
		slots--

		admitted, err := d.store.GetByID(ctx, task.ID)
		if err != nil || admitted == nil {
			d.logger.Error("admitted task vanished", logging.Int64(logging.FieldTaskID, task.ID), logging.Error(err))
			continue
		}
		d.launch(groupCtx, admitted)
	}
	return nil
}

// launch starts the stage goroutine and its heartbeat companion.
func (d *Dispatcher) launch(ctx context.Context, task *queue.Task) {
	d.mu.Lock()
	d.running[task.ID] = struct{}{}
	group := d.group
	d.mu.Unlock()

	d.logger.Info("task admitted",
		logging.Int64(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldPhase, string(task.QueuedFor)))

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)

	group.Go(func() error {
		d.runHeartbeat(heartbeatCtx, task.ID)
		return nil
	})
	group.Go(func() error {
		defer func() {
			stopHeartbeat()
			d.finish(task.ID)
		}()
		if err := d.stage.Execute(ctx, task); err != nil {
			d.logger.Error("stage execution failed",
				logging.Int64(logging.FieldTaskID, task.ID),
				logging.Error(err))
		}
		return nil
	})
}

// finish releases the slot and drops all per-task bookkeeping. Ownership is
// cleared unconditionally; the row either settled or will be re-admitted.
func (d *Dispatcher) finish(taskID int64) {
	ctx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFn()
	if err := d.store.ClearOwnership(ctx, taskID); err != nil {
		d.logger.Error("clear ownership failed", logging.Int64(logging.FieldTaskID, taskID), logging.Error(err))
	}
	d.registry.ClearStop(taskID)

	d.mu.Lock()
	delete(d.running, taskID)
	d.mu.Unlock()
}

func (d *Dispatcher) leaseDuration() time.Duration {
	if d.cfg.LeaseSeconds > 0 {
		return time.Duration(d.cfg.LeaseSeconds) * time.Second
	}
	return 600 * time.Second
}

// newWorkerID builds the identity written into owned rows: host, pid, and a
// short random suffix so restarts on the same host are distinguishable.
func newWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	suffix := shortUUID()
	return fmt.Sprintf("%s:%d:%s", host, os.Getpid(), suffix)
}

func shortUUID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err == nil {
			return hex.EncodeToString(buf)
		}
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return id.String()[:8]
}
