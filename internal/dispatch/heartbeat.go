package dispatch

import (
	"context"
	"time"

	"github.com/yehx1/video-translate/internal/logging"
)

// runHeartbeat extends the task's lease on a fixed interval while its stage
// goroutine runs. The loop exits when ctx is cancelled (stage finished) or
// the refresh reports ownership lost, meaning the row was stopped or rescued
// out from under us.
func (d *Dispatcher) runHeartbeat(ctx context.Context, taskID int64) {
	interval := time.Duration(d.cfg.HeartbeatSeconds) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			leaseUntil := time.Now().UTC().Add(d.leaseDuration())
			refreshCtx, cancelFn := context.WithTimeout(context.Background(), 5*time.Second)
			owned, err := d.store.RefreshHeartbeat(refreshCtx, taskID, d.workerID, leaseUntil)
			cancelFn()
			if err != nil {
				d.logger.Warn("heartbeat refresh failed",
					logging.Int64(logging.FieldTaskID, taskID),
					logging.Error(err))
				continue
			}
			if !owned {
				d.logger.Warn("ownership lost, heartbeat exiting",
					logging.Int64(logging.FieldTaskID, taskID))
				return
			}
		}
	}
}
